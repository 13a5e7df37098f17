package scheduler

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
	profiledomain "github.com/smallbiznis/storefront/internal/profile/domain"
	profilerepo "github.com/smallbiznis/storefront/internal/profile/repository"
	profileservice "github.com/smallbiznis/storefront/internal/profile/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sweepStack struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	catalog catalogdomain.Service
	orders  orderdomain.Service
	sched   *Scheduler
}

func newSweepStack(t *testing.T, cfg Config) *sweepStack {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:schedsvc?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Product{},
		&catalogdomain.InventoryLog{},
		&orderdomain.Order{},
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
	orderSvc := orderservice.New(orderservice.Params{
		DB:      db,
		Log:     logger,
		Repo:    orderrepo.Provide(),
		Catalog: catalogSvc,
		Profile: profileSvc,
		Clock:   fake,
		Shop:    shop,
	})

	sched := New(Params{
		Config: cfg,
		Log:    logger,
		Clock:  fake,
		Orders: orderSvc,
	})

	return &sweepStack{
		db:      db,
		clock:   fake,
		catalog: catalogSvc,
		orders:  orderSvc,
		sched:   sched,
	}
}

func (s *sweepStack) newOrder(t *testing.T, userID int64) *orderdomain.Response {
	t.Helper()
	product, err := s.catalog.Create(context.Background(), catalogdomain.CreateRequest{
		Name:     "Nitro Monthly",
		Price:    999,
		Category: "nitro",
		Stock:    10,
	})
	require.NoError(t, err)
	order, err := s.orders.Create(context.Background(), orderdomain.CreateRequest{
		UserID:        userID,
		ProductID:     product.ID,
		Quantity:      1,
		PaymentMethod: "paypal",
	})
	require.NoError(t, err)
	return order
}

func TestRunOnce_ExpiresStaleOrders(t *testing.T) {
	s := newSweepStack(t, Config{})
	ctx := context.Background()

	stale := s.newOrder(t, 101)

	s.clock.Advance(config.DefaultShopConfig().PaymentWindow() + time.Minute)
	fresh := s.newOrder(t, 102)

	require.NoError(t, s.sched.RunOnce(ctx))

	got, err := s.orders.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", string(got.Status))

	got, err = s.orders.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(got.Status))
}

func TestRunOnce_SweepIsIdempotent(t *testing.T) {
	s := newSweepStack(t, Config{})
	ctx := context.Background()

	order := s.newOrder(t, 201)
	s.clock.Advance(config.DefaultShopConfig().PaymentWindow() + time.Minute)

	require.NoError(t, s.sched.RunOnce(ctx))
	require.NoError(t, s.sched.RunOnce(ctx))

	got, err := s.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", string(got.Status))

	product, err := s.catalog.Get(ctx, got.ProductID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), product.Stock)
}

func TestRunOnce_SkipsDisabledJobs(t *testing.T) {
	s := newSweepStack(t, Config{EnabledJobs: []string{"something_else"}})
	ctx := context.Background()

	order := s.newOrder(t, 301)
	s.clock.Advance(config.DefaultShopConfig().PaymentWindow() + time.Minute)

	require.NoError(t, s.sched.RunOnce(ctx))

	got, err := s.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(got.Status))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)

	cfg = Config{RunInterval: 5 * time.Second, JobTimeout: time.Second}.withDefaults()
	assert.Equal(t, 5*time.Second, cfg.RunInterval)
	assert.Equal(t, time.Second, cfg.JobTimeout)
}
