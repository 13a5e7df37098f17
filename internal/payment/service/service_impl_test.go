package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/storefront/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/storefront/internal/catalog/service"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	orderrepo "github.com/smallbiznis/storefront/internal/order/repository"
	orderservice "github.com/smallbiznis/storefront/internal/order/service"
	"github.com/smallbiznis/storefront/internal/payment/adapters"
	"github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/internal/payment/repository"
	profiledomain "github.com/smallbiznis/storefront/internal/profile/domain"
	profilerepo "github.com/smallbiznis/storefront/internal/profile/repository"
	profileservice "github.com/smallbiznis/storefront/internal/profile/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Stub adapter --

type stubAdapter struct {
	method       orderdomain.Method
	instructions *domain.Instructions
	result       *domain.VerifyResult
	verifyErr    error
	verifyCalls  int
}

func (a *stubAdapter) Method() orderdomain.Method { return a.method }

func (a *stubAdapter) Initiate(ctx context.Context, intent domain.Intent) (*domain.Instructions, error) {
	return a.instructions, nil
}

func (a *stubAdapter) Verify(ctx context.Context, payment *domain.Payment, input domain.VerifyInput) (*domain.VerifyResult, error) {
	a.verifyCalls++
	if a.verifyErr != nil {
		return nil, a.verifyErr
	}
	if a.result != nil && a.result.Confirmed && a.result.TxHash == nil && input.ExternalID != "" {
		hash := input.ExternalID
		return &domain.VerifyResult{Confirmed: true, TxHash: &hash}, nil
	}
	return a.result, nil
}

func redirectStub() *stubAdapter {
	external := "PAY-123"
	redirect := "https://example.test/approve/PAY-123"
	return &stubAdapter{
		method: orderdomain.MethodPayPal,
		instructions: &domain.Instructions{
			Kind:        domain.KindRedirect,
			ExternalID:  &external,
			RedirectURL: &redirect,
		},
		result: &domain.VerifyResult{Confirmed: true},
	}
}

func cryptoStub() *stubAdapter {
	address := "0xWALLET"
	amount := 0.00699
	currency := "ETH"
	return &stubAdapter{
		method: orderdomain.MethodETH,
		instructions: &domain.Instructions{
			Kind:           domain.KindCrypto,
			Address:        &address,
			CryptoAmount:   &amount,
			CryptoCurrency: &currency,
		},
		result: &domain.VerifyResult{Confirmed: true},
	}
}

func manualStub() *stubAdapter {
	cashtag := "$shopkeeper"
	return &stubAdapter{
		method:       orderdomain.MethodCashApp,
		instructions: &domain.Instructions{Kind: domain.KindManual, Cashtag: &cashtag},
	}
}

// -- Stack --

type stack struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	catalog  catalogdomain.Service
	orders   orderdomain.Service
	profile  profiledomain.Service
	payments *Service
	paypal   *stubAdapter
	eth      *stubAdapter
	cashapp  *stubAdapter
}

func newTestStack(t *testing.T) *stack {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:paymentsvc?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Product{},
		&catalogdomain.InventoryLog{},
		&orderdomain.Order{},
		&profiledomain.UserProfile{},
		&domain.Payment{},
	))
	t.Cleanup(func() {
		db.Exec("DELETE FROM payments")
		db.Exec("DELETE FROM orders")
		db.Exec("DELETE FROM inventory_logs")
		db.Exec("DELETE FROM products")
		db.Exec("DELETE FROM user_profiles")
	})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	shop := config.NewStaticShopConfigHolder(config.DefaultShopConfig())
	logger := zap.NewNop()

	catalogSvc := catalogservice.New(catalogservice.Params{
		DB: db, Log: logger, GenID: node, Repo: catalogrepo.Provide(), Clock: fake, Shop: shop,
	})
	profileSvc := profileservice.New(profileservice.Params{
		DB: db, Log: logger, Repo: profilerepo.Provide(), Clock: fake,
	})
	paymentRepo := repository.Provide()
	orderSvc := orderservice.New(orderservice.Params{
		DB: db, Log: logger, Repo: orderrepo.Provide(),
		Catalog: catalogSvc, Profile: profileSvc, Clock: fake, Shop: shop,
		Settler: NewSettler(paymentRepo),
	})

	paypalStub := redirectStub()
	ethStub := cryptoStub()
	cashappStub := manualStub()

	paymentSvc := New(Params{
		DB:       db,
		Log:      logger,
		GenID:    node,
		Repo:     paymentRepo,
		Orders:   orderSvc,
		Registry: adapters.NewRegistry(paypalStub, ethStub, cashappStub),
		Clock:    fake,
		Shop:     shop,
	})

	return &stack{
		db:       db,
		clock:    fake,
		catalog:  catalogSvc,
		orders:   orderSvc,
		profile:  profileSvc,
		payments: paymentSvc.(*Service),
		paypal:   paypalStub,
		eth:      ethStub,
		cashapp:  cashappStub,
	}
}

func (s *stack) newOrder(t *testing.T, userID int64, method string) *orderdomain.Response {
	t.Helper()
	product, err := s.catalog.Create(context.Background(), catalogdomain.CreateRequest{
		Name: "1000 Robux", Price: 699, Category: "robux", Stock: 25,
	})
	require.NoError(t, err)

	order, err := s.orders.Create(context.Background(), orderdomain.CreateRequest{
		UserID: userID, ProductID: product.ID, Quantity: 2, PaymentMethod: method,
	})
	require.NoError(t, err)
	return order
}

// -- Tests --

func TestStart_OpensAttemptAndKeepsOrderPending(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	order := s.newOrder(t, 7, "paypal")

	resp, err := s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 7})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, resp.Payment.Status)
	assert.EqualValues(t, 1398, resp.Payment.Amount)
	require.NotNil(t, resp.Instructions.RedirectURL)
	assert.Equal(t, order.CreatedAt.Add(30*time.Minute), resp.ExpiresAt)

	// Initiation alone never advances the order; only a verified
	// confirmation does.
	got, err := s.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPending, got.Status)
	assert.Nil(t, got.PaymentID)
}

func TestStart_OwnershipAndRestart(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	order := s.newOrder(t, 7, "paypal")

	_, err := s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 99})
	assert.ErrorIs(t, err, orderdomain.ErrNotFound)

	_, err = s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 7})
	require.NoError(t, err)

	// A restarted checkout supersedes the earlier attempt.
	_, err = s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 7})
	require.NoError(t, err)

	items, err := s.payments.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.StatusPending, items[0].Status)
	assert.Equal(t, domain.StatusFailed, items[1].Status)
}

func TestStart_UnpaidOrderStillSweptAfterWindow(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	product, err := s.catalog.Create(ctx, catalogdomain.CreateRequest{
		Name: "1000 Robux", Price: 699, Category: "robux", Stock: 25,
	})
	require.NoError(t, err)

	order, err := s.orders.Create(ctx, orderdomain.CreateRequest{
		UserID: 7, ProductID: product.ID, Quantity: 2, PaymentMethod: "paypal",
	})
	require.NoError(t, err)

	_, err = s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 7})
	require.NoError(t, err)

	s.clock.Advance(time.Hour)

	swept, err := s.orders.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := s.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCancelled, got.Status)

	restocked, err := s.catalog.Get(ctx, product.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 25, restocked.Stock)

	items, err := s.payments.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.StatusExpired, items[0].Status)
}

func TestCancel_VoidsOpenAttempt(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	order := s.newOrder(t, 7, "paypal")

	_, err := s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 7})
	require.NoError(t, err)

	_, err = s.orders.Cancel(ctx, order.ID, "changed my mind")
	require.NoError(t, err)

	items, err := s.payments.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.StatusFailed, items[0].Status)
}

func TestHandleReturn_AdvancesOrderToProcessing(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	order := s.newOrder(t, 7, "paypal")

	_, err := s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 7})
	require.NoError(t, err)

	resp, err := s.payments.HandleReturn(ctx, order.ID, "PAY-123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, resp.Status)
	require.NotNil(t, resp.CompletedAt)

	// Payment confirmation parks the order in processing; fulfillment is
	// a separate admin step, so the profile has not moved yet.
	got, err := s.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusProcessing, got.Status)
	require.NotNil(t, got.PaymentID)

	p, err := s.profile.Get(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 0, p.TotalOrders)

	delivery := "code: WXYZ-1234"
	completed, err := s.orders.Complete(ctx, order.ID, &delivery)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, completed.Status)

	p, err = s.profile.Get(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 1398, p.TotalSpent)
	assert.EqualValues(t, 1, p.TotalOrders)

	// replayed return finds no open attempt
	_, err = s.payments.HandleReturn(ctx, order.ID, "PAY-123")
	assert.ErrorIs(t, err, domain.ErrNoOpenPayment)
}

func TestHandleReturn_RejectionKeepsOrderPending(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	order := s.newOrder(t, 7, "paypal")

	_, err := s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 7})
	require.NoError(t, err)

	s.paypal.result = &domain.VerifyResult{FailureKind: "capture_declined"}
	_, err = s.payments.HandleReturn(ctx, order.ID, "PAY-123")
	assert.ErrorIs(t, err, domain.ErrVerificationMatch)

	got, err := s.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPending, got.Status)

	// provider recovers, retry succeeds
	s.paypal.result = &domain.VerifyResult{Confirmed: true}
	resp, err := s.payments.HandleReturn(ctx, order.ID, "PAY-123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, resp.Status)
}

func TestVerifyCrypto_ConfirmsAndBlocksReplay(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	first := s.newOrder(t, 7, "eth")
	_, err := s.payments.Start(ctx, domain.StartRequest{Token: first.ID, UserID: 7})
	require.NoError(t, err)

	resp, err := s.payments.VerifyCrypto(ctx, domain.VerifyCryptoRequest{
		Token: first.ID, UserID: 7, TxHash: "0xabc123",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, resp.Status)
	require.NotNil(t, resp.TxHash)
	assert.Equal(t, "0xabc123", *resp.TxHash)

	// the same transfer cannot settle a second order
	second := s.newOrder(t, 8, "eth")
	_, err = s.payments.Start(ctx, domain.StartRequest{Token: second.ID, UserID: 8})
	require.NoError(t, err)

	_, err = s.payments.VerifyCrypto(ctx, domain.VerifyCryptoRequest{
		Token: second.ID, UserID: 8, TxHash: "0xabc123",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTxHash)
}

func TestVerifyCrypto_Validation(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	order := s.newOrder(t, 7, "paypal")

	_, err := s.payments.VerifyCrypto(ctx, domain.VerifyCryptoRequest{Token: order.ID, UserID: 7, TxHash: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidTxHash)

	_, err = s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 7})
	require.NoError(t, err)

	// paypal attempts do not take tx hashes
	_, err = s.payments.VerifyCrypto(ctx, domain.VerifyCryptoRequest{Token: order.ID, UserID: 7, TxHash: "0xabc"})
	assert.ErrorIs(t, err, domain.ErrMethodNotSupported)
}

func TestSubmitProofAndConfirmManual(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	order := s.newOrder(t, 7, "cashapp")

	_, err := s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 7})
	require.NoError(t, err)

	_, err = s.payments.SubmitProof(ctx, domain.SubmitProofRequest{Token: order.ID, UserID: 7, Note: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidProof)

	_, err = s.payments.SubmitProof(ctx, domain.SubmitProofRequest{
		Token: order.ID, UserID: 7, Note: "sent $13.98, note AB12CD34",
	})
	require.NoError(t, err)

	// Buyer evidence alone proves nothing; the order waits for an admin.
	got, err := s.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPending, got.Status)

	delivery := "code: WXYZ-1234"
	resp, err := s.payments.ConfirmManual(ctx, domain.ConfirmManualRequest{
		Token: order.ID, AdminID: 1, DeliveryInfo: &delivery,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, resp.Status)

	got, err = s.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, got.Status)
	require.NotNil(t, got.DeliveryInfo)
	assert.Equal(t, delivery, *got.DeliveryInfo)

	// settled orders have nothing left to confirm
	_, err = s.payments.ConfirmManual(ctx, domain.ConfirmManualRequest{Token: order.ID, AdminID: 1})
	assert.ErrorIs(t, err, domain.ErrNoOpenPayment)
}

func TestListByOrder(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	order := s.newOrder(t, 7, "paypal")

	_, err := s.payments.Start(ctx, domain.StartRequest{Token: order.ID, UserID: 7})
	require.NoError(t, err)

	items, err := s.payments.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, order.ID, items[0].OrderID)
}
