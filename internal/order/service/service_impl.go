package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/smallbiznis/storefront/internal/order/domain"
	profiledomain "github.com/smallbiznis/storefront/internal/profile/domain"
	"github.com/smallbiznis/storefront/pkg/db"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxTokenAttempts bounds retries when a freshly minted order token collides
// with an existing one.
const maxTokenAttempts = 5

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	Catalog  catalogdomain.Service
	Profile  profiledomain.Service
	Clock    clock.Clock
	Shop     *config.ShopConfigHolder
	Metrics  *metrics.Metrics      `optional:"true"`
	Notifier domain.Notifier       `optional:"true"`
	Settler  domain.PaymentSettler `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	catalog  catalogdomain.Service
	profile  profiledomain.Service
	clock    clock.Clock
	shop     *config.ShopConfigHolder
	metrics  *metrics.Metrics
	notifier domain.Notifier
	settler  domain.PaymentSettler
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("order.service"),
		repo:     p.Repo,
		catalog:  p.Catalog,
		profile:  p.Profile,
		clock:    p.Clock,
		shop:     p.Shop,
		metrics:  p.Metrics,
		notifier: p.Notifier,
		settler:  p.Settler,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	if req.UserID <= 0 {
		return nil, domain.ErrInvalidUser
	}
	if req.Quantity < domain.MinQuantity || req.Quantity > domain.MaxQuantity {
		return nil, domain.ErrInvalidQuantity
	}
	method := domain.Method(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if !method.Valid() {
		return nil, domain.ErrInvalidPaymentMethod
	}
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil {
		return nil, catalogdomain.ErrInvalidID
	}

	var order *domain.Order
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token := newToken()

		// Reservation and order insert share one transaction: a token
		// collision rolls the stock movement back with it.
		err = s.db.Transaction(func(tx *gorm.DB) error {
			product, err := s.catalog.Reserve(ctx, tx, productID.Int64(), req.Quantity, fmt.Sprintf("order %s created", token))
			if err != nil {
				return err
			}

			now := s.clock.Now()
			order = &domain.Order{
				ID:            token,
				UserID:        req.UserID,
				ProductID:     product.ID,
				ProductName:   product.Name,
				Quantity:      req.Quantity,
				UnitPrice:     product.Price,
				Total:         product.Price * req.Quantity,
				PaymentMethod: method,
				Status:        domain.StatusPending,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			return s.repo.Create(ctx, tx, order)
		})
		if err == nil {
			break
		}
		if db.IsDuplicateKeyErr(err) {
			s.log.Warn("order token collision", zap.String("token", token))
			err = domain.ErrTokenExhausted
			continue
		}
		if errors.Is(err, catalogdomain.ErrInsufficientStock) {
			s.metrics.RecordStockConflict()
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderCreated(string(method))
	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int64("product_id", order.ProductID),
		zap.Int64("quantity", order.Quantity),
		zap.Int64("total", order.Total),
		zap.String("payment_method", string(method)),
	)

	resp := toResponse(order)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, token string) (*domain.Response, error) {
	order, err := s.findOrder(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	resp := toResponse(order)
	return &resp, nil
}

// GetForUser hides other buyers' orders behind not-found rather than
// confirming the token exists.
func (s *Service) GetForUser(ctx context.Context, token string, userID int64) (*domain.Response, error) {
	order, err := s.findOrder(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(order)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.Page, error) {
	filter := domain.ListFilter{
		Since: req.Since,
		Until: req.Until,
	}
	if v := strings.TrimSpace(req.UserID); v != "" {
		id, err := snowflake.ParseString(v)
		if err != nil {
			return nil, domain.ErrInvalidUser
		}
		uid := id.Int64()
		filter.UserID = &uid
	}
	if v := strings.TrimSpace(req.Status); v != "" {
		status := domain.Status(v)
		if !status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		before, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		filter.Before = &before
		filter.BeforeID = cursor.ID
	}

	size := req.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	filter.Limit = size + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	page := &domain.Page{}
	page.PageInfo.HasMore = len(items) > size
	if page.PageInfo.HasMore {
		items = items[:size]
		last := items[len(items)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID,
			CreatedAt: last.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		page.PageInfo.NextPageToken = token
	}
	page.Orders = toResponses(items)
	return page, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64, status domain.Status) ([]domain.Response, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUser
	}
	if status != "" && !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{UserID: &userID, Status: status, Limit: 100})
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}

func (s *Service) MarkProcessing(ctx context.Context, token string, paymentID *string) (*domain.Response, error) {
	var order *domain.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.findOrder(ctx, tx, token)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		affected, err := s.repo.Transition(ctx, tx, order.ID, domain.StatusPending, domain.StatusProcessing, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return s.transitionError(ctx, tx, order.ID, domain.StatusProcessing)
		}

		if paymentID != nil {
			if err := s.repo.SetPaymentID(ctx, tx, order.ID, *paymentID, now); err != nil {
				return err
			}
			order.PaymentID = paymentID
		}
		order.Status = domain.StatusProcessing
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order processing", zap.String("order_id", order.ID))

	resp := toResponse(order)
	return &resp, nil
}

func (s *Service) Complete(ctx context.Context, token string, deliveryInfo *string) (*domain.Response, error) {
	var order *domain.Order
	alreadyCompleted := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.findOrder(ctx, tx, token)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		affected, err := s.repo.Transition(ctx, tx, order.ID, domain.StatusProcessing, domain.StatusCompleted, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			// A completed order stays completed; the retry is a no-op
			// rather than an error so confirmations can be replayed.
			if order.Status == domain.StatusCompleted {
				alreadyCompleted = true
				return nil
			}
			return s.transitionError(ctx, tx, order.ID, domain.StatusCompleted)
		}

		if err := s.repo.Finalize(ctx, tx, order.ID, now, deliveryInfo); err != nil {
			return err
		}
		if err := s.profile.Apply(ctx, tx, order.UserID, order.Total, now); err != nil {
			return err
		}

		order.Status = domain.StatusCompleted
		order.UpdatedAt = now
		order.CompletedAt = &now
		if deliveryInfo != nil {
			order.DeliveryInfo = deliveryInfo
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(order)
	if alreadyCompleted {
		return &resp, nil
	}

	s.metrics.RecordOrderCompleted()
	s.log.Info("order completed",
		zap.String("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int64("total", order.Total),
	)
	if s.notifier != nil {
		s.notifier.OrderCompleted(ctx, resp)
	}
	return &resp, nil
}

func (s *Service) Cancel(ctx context.Context, token string, reason string) (*domain.Response, error) {
	resp, err := s.cancel(ctx, token, reason, "manual")
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) cancel(ctx context.Context, token, reason, cause string) (*domain.Response, error) {
	var order *domain.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.findOrder(ctx, tx, token)
		if err != nil {
			return err
		}
		if !domain.CanTransition(order.Status, domain.StatusCancelled) {
			if order.Status.Terminal() {
				return domain.ErrOrderTerminal
			}
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now()
		affected, err := s.repo.Transition(ctx, tx, order.ID, order.Status, domain.StatusCancelled, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return s.transitionError(ctx, tx, order.ID, domain.StatusCancelled)
		}

		// The release rides the cancelling transaction; stock and status
		// never diverge.
		release := fmt.Sprintf("order %s cancelled", order.ID)
		if reason != "" {
			release = fmt.Sprintf("%s: %s", release, reason)
		}
		if err := s.catalog.Release(ctx, tx, order.ProductID, order.Quantity, release); err != nil {
			return err
		}

		// A dead order leaves no attempt dangling in pending.
		if s.settler != nil {
			if err := s.settler.VoidOpen(ctx, tx, order.ID, cause, now); err != nil {
				return err
			}
		}

		order.Status = domain.StatusCancelled
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderCancelled(cause)
	s.log.Info("order cancelled",
		zap.String("order_id", order.ID),
		zap.String("cause", cause),
		zap.String("reason", reason),
	)

	resp := toResponse(order)
	if s.notifier != nil {
		s.notifier.OrderCancelled(ctx, resp, reason)
	}
	return &resp, nil
}

func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.shop.Get().PaymentWindow())

	stale, err := s.repo.FindStalePending(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, o := range stale {
		if _, err := s.cancel(ctx, o.ID, "payment window expired", "expired"); err != nil {
			// Races with a buyer finishing checkout are expected; the
			// next sweep catches anything transient.
			if errors.Is(err, domain.ErrOrderTerminal) || errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			s.log.Error("stale order sweep failed", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		swept++
	}
	return swept, nil
}

// transitionError reloads the row to explain why a conditional transition
// matched nothing.
func (s *Service) transitionError(ctx context.Context, tx *gorm.DB, id string, to domain.Status) error {
	current, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return domain.ErrNotFound
	}
	if current.Status.Terminal() {
		return domain.ErrOrderTerminal
	}
	if !domain.CanTransition(current.Status, to) {
		return domain.ErrInvalidTransition
	}
	return domain.ErrInvalidTransition
}

func (s *Service) findOrder(ctx context.Context, tx *gorm.DB, token string) (*domain.Order, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return nil, domain.ErrNotFound
	}
	order, err := s.repo.FindByID(ctx, tx, token)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

// newToken mints the 8-character order token buyers quote in payment notes.
func newToken() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

func toResponse(o *domain.Order) domain.Response {
	return domain.Response{
		ID:            o.ID,
		UserID:        o.UserID,
		ProductID:     snowflake.ID(o.ProductID).String(),
		ProductName:   o.ProductName,
		Quantity:      o.Quantity,
		UnitPrice:     o.UnitPrice,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		PaymentID:     o.PaymentID,
		DeliveryInfo:  o.DeliveryInfo,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		CompletedAt:   o.CompletedAt,
	}
}

func toResponses(items []domain.Order) []domain.Response {
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp
}
