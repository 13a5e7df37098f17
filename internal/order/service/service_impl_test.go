package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/storefront/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/storefront/internal/catalog/service"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/order/repository"
	profiledomain "github.com/smallbiznis/storefront/internal/profile/domain"
	profilerepo "github.com/smallbiznis/storefront/internal/profile/repository"
	profileservice "github.com/smallbiznis/storefront/internal/profile/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stack struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	catalog catalogdomain.Service
	profile profiledomain.Service
	orders  *Service
}

func newTestStack(t *testing.T) *stack {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:ordersvc?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Product{},
		&catalogdomain.InventoryLog{},
		&domain.Order{},
		&profiledomain.UserProfile{},
	))
	t.Cleanup(func() {
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
		DB:    db,
		Log:   logger,
		GenID: node,
		Repo:  catalogrepo.Provide(),
		Clock: fake,
		Shop:  shop,
	})
	profileSvc := profileservice.New(profileservice.Params{
		DB:    db,
		Log:   logger,
		Repo:  profilerepo.Provide(),
		Clock: fake,
	})
	orderSvc := New(Params{
		DB:      db,
		Log:     logger,
		Repo:    repository.Provide(),
		Catalog: catalogSvc,
		Profile: profileSvc,
		Clock:   fake,
		Shop:    shop,
	})

	return &stack{
		db:      db,
		clock:   fake,
		catalog: catalogSvc,
		profile: profileSvc,
		orders:  orderSvc.(*Service),
	}
}

func (s *stack) newProduct(t *testing.T, price, stock int64) *catalogdomain.Response {
	t.Helper()
	resp, err := s.catalog.Create(context.Background(), catalogdomain.CreateRequest{
		Name:     "1000 Robux",
		Price:    price,
		Category: "robux",
		Stock:    stock,
	})
	require.NoError(t, err)
	return resp
}

func (s *stack) newOrder(t *testing.T, userID int64, productID string, qty int64) *domain.Response {
	t.Helper()
	resp, err := s.orders.Create(context.Background(), domain.CreateRequest{
		UserID:        userID,
		ProductID:     productID,
		Quantity:      qty,
		PaymentMethod: "paypal",
	})
	require.NoError(t, err)
	return resp
}

func (s *stack) productStock(t *testing.T, id string) int64 {
	t.Helper()
	got, err := s.catalog.Get(context.Background(), id)
	require.NoError(t, err)
	return got.Stock
}

func TestCreateOrder_Validation(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	product := s.newProduct(t, 699, 10)

	_, err := s.orders.Create(ctx, domain.CreateRequest{UserID: 0, ProductID: product.ID, Quantity: 1, PaymentMethod: "paypal"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = s.orders.Create(ctx, domain.CreateRequest{UserID: 7, ProductID: product.ID, Quantity: 0, PaymentMethod: "paypal"})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = s.orders.Create(ctx, domain.CreateRequest{UserID: 7, ProductID: product.ID, Quantity: 11, PaymentMethod: "paypal"})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = s.orders.Create(ctx, domain.CreateRequest{UserID: 7, ProductID: product.ID, Quantity: 1, PaymentMethod: "venmo"})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	missing := snowflake.ID(999999999).String()
	_, err = s.orders.Create(ctx, domain.CreateRequest{UserID: 7, ProductID: missing, Quantity: 1, PaymentMethod: "paypal"})
	assert.ErrorIs(t, err, catalogdomain.ErrNotFound)
}

func TestCreateOrder_ReservesStockAndSnapshotsPrice(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	product := s.newProduct(t, 699, 5)

	order := s.newOrder(t, 7, product.ID, 2)

	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{8}$`), order.ID)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.EqualValues(t, 1398, order.Total)
	assert.EqualValues(t, 3, s.productStock(t, product.ID))

	// Catalog edits after checkout never reprice the order.
	newPrice := int64(999)
	_, err := s.catalog.Update(ctx, product.ID, catalogdomain.UpdateRequest{Price: &newPrice})
	require.NoError(t, err)

	got, err := s.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 699, got.UnitPrice)
	assert.EqualValues(t, 1398, got.Total)
	assert.Equal(t, "1000 Robux", got.ProductName)
}

func TestCreateOrder_Oversell(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	product := s.newProduct(t, 699, 1)

	s.newOrder(t, 7, product.ID, 1)

	_, err := s.orders.Create(ctx, domain.CreateRequest{
		UserID:        8,
		ProductID:     product.ID,
		Quantity:      1,
		PaymentMethod: "eth",
	})
	assert.ErrorIs(t, err, catalogdomain.ErrInsufficientStock)
	assert.EqualValues(t, 0, s.productStock(t, product.ID))
}

func TestCreateOrder_ConcurrentOversell(t *testing.T) {
	s := newTestStack(t)
	product := s.newProduct(t, 699, 3)

	// One connection forces the two reservations to serialize; the
	// conditional stock decrement then admits exactly one of them.
	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.orders.Create(context.Background(), domain.CreateRequest{
				UserID:        int64(10 + i),
				ProductID:     product.ID,
				Quantity:      2,
				PaymentMethod: "paypal",
			})
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, catalogdomain.ErrInsufficientStock):
			lost++
		default:
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
	assert.EqualValues(t, 1, s.productStock(t, product.ID))
}

func TestStateMachine_Transitions(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	product := s.newProduct(t, 699, 10)
	order := s.newOrder(t, 7, product.ID, 1)

	// pending cannot jump straight to completed
	_, err := s.orders.Complete(ctx, order.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	processing, err := s.orders.MarkProcessing(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, processing.Status)

	// processing twice is rejected
	_, err = s.orders.MarkProcessing(ctx, order.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	completed, err := s.orders.Complete(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	// terminal states reject everything but are stable under retry
	_, err = s.orders.Cancel(ctx, order.ID, "changed my mind")
	assert.ErrorIs(t, err, domain.ErrOrderTerminal)
	_, err = s.orders.MarkProcessing(ctx, order.ID, nil)
	assert.ErrorIs(t, err, domain.ErrOrderTerminal)
}

func TestComplete_AppliesProfileExactlyOnce(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	product := s.newProduct(t, 500, 10)
	order := s.newOrder(t, 42, product.ID, 2)

	_, err := s.orders.MarkProcessing(ctx, order.ID, nil)
	require.NoError(t, err)

	delivery := "code: ABCD-EFGH"
	first, err := s.orders.Complete(ctx, order.ID, &delivery)
	require.NoError(t, err)
	require.NotNil(t, first.DeliveryInfo)
	assert.Equal(t, delivery, *first.DeliveryInfo)

	// replayed confirmation settles once
	second, err := s.orders.Complete(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, second.Status)

	p, err := s.profile.Get(ctx, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, p.TotalSpent)
	assert.EqualValues(t, 1, p.TotalOrders)
	require.NotNil(t, p.FirstPurchase)
	require.NotNil(t, p.LastPurchase)
}

func TestCancel_RestoresStock(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	product := s.newProduct(t, 699, 5)
	order := s.newOrder(t, 7, product.ID, 3)
	assert.EqualValues(t, 2, s.productStock(t, product.ID))

	cancelled, err := s.orders.Cancel(ctx, order.ID, "buyer request")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.EqualValues(t, 5, s.productStock(t, product.ID))

	// cancelling again must not release twice
	_, err = s.orders.Cancel(ctx, order.ID, "again")
	assert.ErrorIs(t, err, domain.ErrOrderTerminal)
	assert.EqualValues(t, 5, s.productStock(t, product.ID))

	// no profile impact from a cancelled order
	p, err := s.profile.Get(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 0, p.TotalSpent)
	assert.EqualValues(t, 0, p.TotalOrders)
}

func TestExpireStale_SweepsOnlyExpiredPending(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	product := s.newProduct(t, 699, 10)

	stale := s.newOrder(t, 7, product.ID, 2)
	s.clock.Advance(31 * time.Minute)
	fresh := s.newOrder(t, 8, product.ID, 1)

	processing := s.newOrder(t, 9, product.ID, 1)
	_, err := s.orders.MarkProcessing(ctx, processing.ID, nil)
	require.NoError(t, err)

	swept, err := s.orders.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := s.orders.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	got, err = s.orders.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)

	got, err = s.orders.Get(ctx, processing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)

	// 10 - 2(stale, released) - 1(fresh) - 1(processing) + 2(release)
	assert.EqualValues(t, 8, s.productStock(t, product.ID))
}

func TestList_PaginatesNewestFirst(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	product := s.newProduct(t, 699, 10)

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		order := s.newOrder(t, 7, product.ID, 1)
		ids = append(ids, order.ID)
		s.clock.Advance(time.Minute)
	}

	page, err := s.orders.List(ctx, domain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.True(t, page.PageInfo.HasMore)
	require.NotEmpty(t, page.PageInfo.NextPageToken)

	seen := make([]string, 0, 5)
	for _, o := range page.Orders {
		seen = append(seen, o.ID)
	}
	for page.PageInfo.HasMore {
		page, err = s.orders.List(ctx, domain.ListRequest{
			PageSize:  2,
			PageToken: page.PageInfo.NextPageToken,
		})
		require.NoError(t, err)
		for _, o := range page.Orders {
			seen = append(seen, o.ID)
		}
	}

	require.Len(t, seen, 5)
	for i, id := range seen {
		assert.Equal(t, ids[len(ids)-1-i], id)
	}

	_, err = s.orders.List(ctx, domain.ListRequest{PageToken: "not a cursor"})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestList_FiltersByUserAndStatus(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	product := s.newProduct(t, 699, 10)

	mine := s.newOrder(t, 7, product.ID, 1)
	s.clock.Advance(time.Minute)
	other := s.newOrder(t, 8, product.ID, 1)
	_, err := s.orders.Cancel(ctx, other.ID, "buyer request")
	require.NoError(t, err)

	page, err := s.orders.List(ctx, domain.ListRequest{UserID: "7"})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, mine.ID, page.Orders[0].ID)
	assert.False(t, page.PageInfo.HasMore)

	page, err = s.orders.List(ctx, domain.ListRequest{Status: "cancelled"})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, other.ID, page.Orders[0].ID)

	_, err = s.orders.List(ctx, domain.ListRequest{Status: "refunded"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestGetForUser_HidesForeignOrders(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	product := s.newProduct(t, 699, 5)
	order := s.newOrder(t, 7, product.ID, 1)

	got, err := s.orders.GetForUser(ctx, order.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = s.orders.GetForUser(ctx, order.ID, 8)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
