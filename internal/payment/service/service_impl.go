package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/payment/adapters"
	"github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// confirmLockTTL bounds how long a confirmation holds the per-order lock.
const confirmLockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Orders   orderdomain.Service
	Registry *adapters.Registry
	Clock    clock.Clock
	Shop     *config.ShopConfigHolder
	Metrics  *metrics.Metrics  `optional:"true"`
	Locker   *ratelimit.Locker `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	orders   orderdomain.Service
	registry *adapters.Registry
	clock    clock.Clock
	shop     *config.ShopConfigHolder
	metrics  *metrics.Metrics
	locker   *ratelimit.Locker
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		orders:   p.Orders,
		registry: p.Registry,
		clock:    p.Clock,
		shop:     p.Shop,
		metrics:  p.Metrics,
		locker:   p.Locker,
	}
}

func (s *Service) Start(ctx context.Context, req domain.StartRequest) (*domain.StartResponse, error) {
	order, err := s.orders.GetForUser(ctx, req.Token, req.UserID)
	if err != nil {
		return nil, err
	}
	if order.Status != orderdomain.StatusPending {
		if order.Status.Terminal() {
			return nil, orderdomain.ErrOrderTerminal
		}
		return nil, orderdomain.ErrInvalidTransition
	}

	adapter, err := s.registry.Adapter(order.PaymentMethod)
	if err != nil {
		return nil, err
	}

	// Provider calls happen before any row is written; a failed initiate
	// leaves the order pending and retryable.
	instructions, err := adapter.Initiate(ctx, domain.Intent{
		OrderID: order.ID,
		Amount:  order.Total,
		Method:  order.PaymentMethod,
	})
	if err != nil {
		s.metrics.RecordPaymentFailure(string(order.PaymentMethod), "initiate")
		return nil, err
	}

	// Initiation is not confirmation: the order stays pending until a
	// verified signal arrives, so the payment-window sweep still covers
	// it. A restarted checkout supersedes the previous attempt.
	now := s.clock.Now()
	if _, err := s.repo.VoidOpenByOrder(ctx, s.db, order.ID, domain.StatusFailed, now); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:             s.genID.Generate().Int64(),
		OrderID:        order.ID,
		Method:         order.PaymentMethod,
		ExternalID:     instructions.ExternalID,
		Amount:         order.Total,
		CryptoAmount:   instructions.CryptoAmount,
		CryptoCurrency: instructions.CryptoCurrency,
		Status:         domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, s.db, payment); err != nil {
		return nil, err
	}

	s.log.Info("payment started",
		zap.String("order_id", order.ID),
		zap.String("method", string(order.PaymentMethod)),
		zap.String("kind", instructions.Kind),
	)

	return &domain.StartResponse{
		Payment:      toResponse(payment),
		Instructions: instructions,
		ExpiresAt:    order.CreatedAt.Add(s.shop.Get().PaymentWindow()),
	}, nil
}

func (s *Service) HandleReturn(ctx context.Context, token, externalID string) (*domain.Response, error) {
	unlock, err := s.acquireConfirmLock(ctx, token)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.orders.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	payment, err := s.openPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.registry.Adapter(payment.Method)
	if err != nil {
		return nil, err
	}

	result, err := adapter.Verify(ctx, payment, domain.VerifyInput{ExternalID: externalID})
	if err != nil {
		s.metrics.RecordPaymentFailure(string(payment.Method), "provider_error")
		return nil, err
	}
	if !result.Confirmed {
		s.metrics.RecordPaymentFailure(string(payment.Method), result.FailureKind)
		s.log.Warn("payment verification rejected",
			zap.String("order_id", order.ID),
			zap.String("method", string(payment.Method)),
			zap.String("kind", result.FailureKind),
		)
		return nil, domain.ErrVerificationMatch
	}

	return s.markVerified(ctx, payment, result.TxHash)
}

func (s *Service) VerifyCrypto(ctx context.Context, req domain.VerifyCryptoRequest) (*domain.Response, error) {
	txHash := strings.TrimSpace(req.TxHash)
	if txHash == "" {
		return nil, domain.ErrInvalidTxHash
	}

	unlock, err := s.acquireConfirmLock(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.orders.GetForUser(ctx, req.Token, req.UserID)
	if err != nil {
		return nil, err
	}

	payment, err := s.openPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if !payment.Method.Crypto() {
		return nil, domain.ErrMethodNotSupported
	}

	// One transfer settles one order.
	used, err := s.repo.FindConfirmedByTxHash(ctx, s.db, txHash)
	if err != nil {
		return nil, err
	}
	if used != nil {
		s.metrics.RecordPaymentFailure(string(payment.Method), "tx_replayed")
		return nil, domain.ErrInvalidTxHash
	}

	adapter, err := s.registry.Adapter(payment.Method)
	if err != nil {
		return nil, err
	}

	result, err := adapter.Verify(ctx, payment, domain.VerifyInput{
		ExternalID: txHash,
		Tolerance:  s.shop.Get().CryptoMatchTolerance,
	})
	if err != nil {
		s.metrics.RecordPaymentFailure(string(payment.Method), "provider_error")
		return nil, err
	}
	if !result.Confirmed {
		s.metrics.RecordPaymentFailure(string(payment.Method), result.FailureKind)
		s.log.Warn("crypto verification rejected",
			zap.String("order_id", order.ID),
			zap.String("kind", result.FailureKind),
		)
		return nil, domain.ErrVerificationMatch
	}

	return s.markVerified(ctx, payment, result.TxHash)
}

func (s *Service) SubmitProof(ctx context.Context, req domain.SubmitProofRequest) (*domain.Response, error) {
	note := strings.TrimSpace(req.Note)
	if note == "" {
		return nil, domain.ErrInvalidProof
	}

	order, err := s.orders.GetForUser(ctx, req.Token, req.UserID)
	if err != nil {
		return nil, err
	}

	payment, err := s.openPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if payment.Method != orderdomain.MethodCashApp {
		return nil, domain.ErrMethodNotSupported
	}

	now := s.clock.Now()
	metadata := map[string]any{
		"proof_note":   note,
		"submitted_at": now.Format(time.RFC3339),
	}
	if err := s.repo.SetMetadata(ctx, s.db, payment.ID, metadata, now); err != nil {
		return nil, err
	}

	s.log.Info("payment proof submitted", zap.String("order_id", order.ID))

	refreshed, err := s.repo.FindByID(ctx, s.db, payment.ID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(refreshed)
	return &resp, nil
}

func (s *Service) ConfirmManual(ctx context.Context, req domain.ConfirmManualRequest) (*domain.Response, error) {
	unlock, err := s.acquireConfirmLock(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.orders.Get(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	payment, err := s.openPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("manual confirmation",
		zap.String("order_id", order.ID),
		zap.Int64("admin_id", req.AdminID),
	)

	return s.completeManual(ctx, order, payment, req.DeliveryInfo)
}

func (s *Service) ListByOrder(ctx context.Context, token string) ([]domain.Response, error) {
	order, err := s.orders.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.FindByOrderID(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

// markVerified records a verified confirmation: the order advances to
// processing and the attempt settles as confirmed. Fulfillment into
// completed stays a separate step.
func (s *Service) markVerified(ctx context.Context, payment *domain.Payment, txHash *string) (*domain.Response, error) {
	paymentID := snowflake.ID(payment.ID).String()
	if _, err := s.orders.MarkProcessing(ctx, payment.OrderID, &paymentID); err != nil {
		return nil, err
	}
	return s.settle(ctx, payment, txHash)
}

// completeManual is the admin oracle for methods with no automatic
// verification: it walks the order through processing to completed and
// settles the open attempt.
func (s *Service) completeManual(ctx context.Context, order *orderdomain.Response, payment *domain.Payment, deliveryInfo *string) (*domain.Response, error) {
	if order.Status == orderdomain.StatusPending {
		paymentID := snowflake.ID(payment.ID).String()
		if _, err := s.orders.MarkProcessing(ctx, order.ID, &paymentID); err != nil {
			return nil, err
		}
	}
	if _, err := s.orders.Complete(ctx, payment.OrderID, deliveryInfo); err != nil {
		return nil, err
	}
	return s.settle(ctx, payment, nil)
}

// settle flips the attempt to confirmed; the conditional update under it
// is the idempotency guard against replayed signals.
func (s *Service) settle(ctx context.Context, payment *domain.Payment, txHash *string) (*domain.Response, error) {
	now := s.clock.Now()
	affected, err := s.repo.Settle(ctx, s.db, payment.ID, domain.StatusConfirmed, txHash, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrAlreadySettled
	}

	s.metrics.RecordPaymentConfirmation(string(payment.Method))
	s.log.Info("payment confirmed",
		zap.String("order_id", payment.OrderID),
		zap.String("method", string(payment.Method)),
	)

	refreshed, err := s.repo.FindByID(ctx, s.db, payment.ID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(refreshed)
	return &resp, nil
}

func (s *Service) openPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	payment, err := s.repo.FindOpenByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrNoOpenPayment
	}
	return payment, nil
}

// acquireConfirmLock is a fast-path guard against double submissions; the
// conditional updates underneath stay correct without it.
func (s *Service) acquireConfirmLock(ctx context.Context, token string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := "payment:confirm:" + strings.ToUpper(strings.TrimSpace(token))
	lease, err := s.locker.TryLock(ctx, key, confirmLockTTL)
	if err != nil {
		s.log.Warn("confirm lock unavailable", zap.Error(err))
		return func() {}, nil
	}
	if lease == nil {
		return nil, domain.ErrConfirmInFlight
	}
	return func() {
		if err := lease.Release(ctx); err != nil {
			s.log.Warn("confirm lock release failed", zap.Error(err))
		}
	}, nil
}

func toResponse(p *domain.Payment) domain.Response {
	return domain.Response{
		ID:             snowflake.ID(p.ID).String(),
		OrderID:        p.OrderID,
		Method:         p.Method,
		ExternalID:     p.ExternalID,
		Amount:         p.Amount,
		CryptoAmount:   p.CryptoAmount,
		CryptoCurrency: p.CryptoCurrency,
		Status:         p.Status,
		TxHash:         p.TxHash,
		CreatedAt:      p.CreatedAt,
		CompletedAt:    p.CompletedAt,
	}
}
