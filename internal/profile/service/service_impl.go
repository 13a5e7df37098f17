package service

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/profile/domain"
	"github.com/smallbiznis/storefront/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("profile.service"),
		repo:  p.Repo,
		clock: p.Clock,
	}
}

// Get returns a zero-valued profile for users who have never completed an
// order, so callers never need a not-found branch.
func (s *Service) Get(ctx context.Context, userID int64) (*domain.Response, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUser
	}

	p, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &domain.Response{UserID: userID}, nil
	}

	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) TopSpenders(ctx context.Context, limit int) ([]domain.Response, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	items, err := s.repo.FindTopSpenders(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, toResponse(&item))
	}
	return resp, nil
}

func (s *Service) Apply(ctx context.Context, tx *gorm.DB, userID, amount int64, at time.Time) error {
	if userID <= 0 {
		return domain.ErrInvalidUser
	}
	if amount < 0 {
		return domain.ErrInvalidAmount
	}

	affected, err := s.repo.AddPurchase(ctx, tx, userID, amount, at)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	purchase := at
	err = s.repo.Insert(ctx, tx, &domain.UserProfile{
		UserID:        userID,
		TotalSpent:    amount,
		TotalOrders:   1,
		FirstPurchase: &purchase,
		LastPurchase:  &purchase,
		CreatedAt:     s.clock.Now(),
	})
	if err != nil && db.IsDuplicateKeyErr(err) {
		// Lost a race against another first purchase for the same user.
		_, err = s.repo.AddPurchase(ctx, tx, userID, amount, at)
	}
	return err
}

func toResponse(p *domain.UserProfile) domain.Response {
	return domain.Response{
		UserID:        p.UserID,
		TotalSpent:    p.TotalSpent,
		TotalOrders:   p.TotalOrders,
		FirstPurchase: p.FirstPurchase,
		LastPurchase:  p.LastPurchase,
	}
}
