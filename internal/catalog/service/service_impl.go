package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
	Shop  *config.ShopConfigHolder
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
	shop  *config.ShopConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
		shop:  p.Shop,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Price < 0 {
		return nil, domain.ErrInvalidPrice
	}
	category := domain.Category(strings.ToLower(strings.TrimSpace(req.Category)))
	if !category.Valid() {
		return nil, domain.ErrInvalidCategory
	}
	if req.Stock < 0 {
		return nil, domain.ErrInvalidStock
	}

	description := strings.TrimSpace(ptrToString(req.Description))
	var descriptionPtr *string
	if description != "" {
		descriptionPtr = &description
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:          s.genID.Generate().Int64(),
		Code:        slug.Make(name),
		Name:        name,
		Description: descriptionPtr,
		Price:       req.Price,
		Category:    category,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The initial stock log rides the creation transaction; a product row
	// never exists without its paired ledger entry.
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, p); err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return err
			}
			// Codes derive from names, so collide on similar names.
			p.Code = fmt.Sprintf("%s-%s", p.Code, snowflake.ID(p.ID).String())
			if err := s.repo.Create(ctx, tx, p); err != nil {
				return err
			}
		}
		if p.Stock > 0 {
			reason := "initial stock"
			return s.appendLog(ctx, tx, p.ID, domain.ChangeIncrease, p.Stock, 0, p.Stock, &reason, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("product created",
		zap.Int64("product_id", p.ID),
		zap.String("category", string(category)),
		zap.Int64("stock", p.Stock),
	)

	resp := s.toResponse(p)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListRequest{
		Category: strings.ToLower(strings.TrimSpace(req.Category)),
		Active:   req.Active,
		SortBy:   strings.TrimSpace(req.SortBy),
		OrderBy:  strings.TrimSpace(req.OrderBy),
	}
	if filter.Category != "" && !domain.Category(filter.Category).Valid() {
		return nil, domain.ErrInvalidCategory
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, s.toResponse(&item))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, productID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateRequest) (*domain.Response, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, productID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			item.Description = nil
		} else {
			item.Description = &description
		}
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, domain.ErrInvalidPrice
		}
		item.Price = *req.Price
	}
	if req.Category != nil {
		category := domain.Category(strings.ToLower(strings.TrimSpace(*req.Category)))
		if !category.Valid() {
			return nil, domain.ErrInvalidCategory
		}
		item.Category = category
	}
	if req.ImageURL != nil {
		item.ImageURL = req.ImageURL
	}
	if req.Active != nil {
		item.Active = *req.Active
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) Archive(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, productID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	item.Active = false
	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	s.log.Info("product archived", zap.Int64("product_id", item.ID))

	resp := s.toResponse(item)
	return &resp, nil
}

// AdjustStock overwrites the stock count and records the delta, so manual
// corrections stay visible in the movement history.
func (s *Service) AdjustStock(ctx context.Context, id string, req domain.AdjustStockRequest) (*domain.Response, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	if req.Stock < 0 {
		return nil, domain.ErrInvalidStock
	}

	var item *domain.Product
	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		move, err := s.repo.SetStock(ctx, tx, productID.Int64(), req.Stock, now)
		if err != nil {
			return err
		}

		changeType := domain.ChangeIncrease
		delta := move.NewStock - move.OldStock
		if delta < 0 {
			changeType = domain.ChangeDecrease
		}
		if delta != 0 {
			if err := s.appendLog(ctx, tx, productID.Int64(), changeType, delta, move.OldStock, move.NewStock, req.Reason, req.AdminID); err != nil {
				return err
			}
		}

		item, err = s.repo.FindByID(ctx, tx, productID.Int64())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("stock adjusted",
		zap.Int64("product_id", item.ID),
		zap.Int64("stock", item.Stock),
	)

	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) History(ctx context.Context, id string, limit int) ([]domain.LogEntry, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	item, err := s.repo.FindByID(ctx, s.db, productID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	logs, err := s.repo.FindLogs(ctx, s.db, productID.Int64(), limit)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LogEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, domain.LogEntry{
			ID:             snowflake.ID(l.ID).String(),
			ProductID:      snowflake.ID(l.ProductID).String(),
			ChangeType:     l.ChangeType,
			QuantityChange: l.QuantityChange,
			OldStock:       l.OldStock,
			NewStock:       l.NewStock,
			Reason:         l.Reason,
			AdminID:        l.AdminID,
			CreatedAt:      l.CreatedAt,
		})
	}
	return entries, nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.Response, error) {
	threshold := int64(s.shop.Get().LowStockThreshold)

	items, err := s.repo.FindLowStock(ctx, s.db, threshold)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, s.toResponse(&item))
	}
	return resp, nil
}

func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, productID, qty int64, reason string) (*domain.Product, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidStock
	}

	now := s.clock.Now()
	move, err := s.repo.ReserveStock(ctx, tx, productID, qty, now)
	if err != nil {
		return nil, err
	}

	if err := s.appendLog(ctx, tx, productID, domain.ChangeDecrease, -qty, move.OldStock, move.NewStock, &reason, nil); err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, tx, productID)
}

func (s *Service) Release(ctx context.Context, tx *gorm.DB, productID, qty int64, reason string) error {
	if qty <= 0 {
		return domain.ErrInvalidStock
	}

	now := s.clock.Now()
	move, err := s.repo.ReleaseStock(ctx, tx, productID, qty, now)
	if err != nil {
		return err
	}

	return s.appendLog(ctx, tx, productID, domain.ChangeIncrease, qty, move.OldStock, move.NewStock, &reason, nil)
}

func (s *Service) appendLog(ctx context.Context, db *gorm.DB, productID int64, changeType domain.ChangeType, delta, oldStock, newStock int64, reason *string, adminID *int64) error {
	return s.repo.AppendLog(ctx, db, &domain.InventoryLog{
		ID:             s.genID.Generate().Int64(),
		ProductID:      productID,
		ChangeType:     changeType,
		QuantityChange: delta,
		OldStock:       oldStock,
		NewStock:       newStock,
		Reason:         reason,
		AdminID:        adminID,
		CreatedAt:      s.clock.Now(),
	})
}

func (s *Service) toResponse(p *domain.Product) domain.Response {
	return domain.Response{
		ID:          snowflake.ID(p.ID).String(),
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func ptrToString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
