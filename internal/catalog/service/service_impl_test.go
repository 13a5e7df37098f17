package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/catalog/repository"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:catalogsvc?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Product{}, &domain.InventoryLog{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM inventory_logs")
		db.Exec("DELETE FROM products")
	})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: fake,
		Shop:  config.NewStaticShopConfigHolder(config.DefaultShopConfig()),
	})
	return svc.(*Service), db, fake
}

func createProduct(t *testing.T, svc *Service, name string, price, stock int64) *domain.Response {
	t.Helper()
	resp, err := svc.Create(context.Background(), domain.CreateRequest{
		Name:     name,
		Price:    price,
		Category: "robux",
		Stock:    stock,
	})
	require.NoError(t, err)
	return resp
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Name: "  ", Price: 100, Category: "robux"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "800 Robux", Price: -1, Category: "robux"})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "800 Robux", Price: 100, Category: "gift-cards"})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "800 Robux", Price: 100, Category: "robux", Stock: -5})
	assert.ErrorIs(t, err, domain.ErrInvalidStock)
}

func TestCreate_SlugCodeAndInitialStockLog(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp := createProduct(t, svc, "800 Robux", 699, 10)
	assert.Equal(t, "800-robux", resp.Code)
	assert.True(t, resp.Active)
	assert.EqualValues(t, 10, resp.Stock)

	entries, err := svc.History(context.Background(), resp.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ChangeIncrease, entries[0].ChangeType)
	assert.EqualValues(t, 10, entries[0].QuantityChange)
	assert.EqualValues(t, 0, entries[0].OldStock)
	assert.EqualValues(t, 10, entries[0].NewStock)
}

func TestCreate_RollsBackWhenStockLogFails(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, db.Exec("DROP TABLE inventory_logs").Error)
	t.Cleanup(func() {
		require.NoError(t, db.AutoMigrate(&domain.InventoryLog{}))
	})

	_, err := svc.Create(ctx, domain.CreateRequest{
		Name: "Orphan Pack", Price: 499, Category: "robux", Stock: 5,
	})
	require.Error(t, err)

	// the product row must not outlive its missing ledger entry
	products, err := svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCreate_DuplicateNameGetsSuffixedCode(t *testing.T) {
	svc, _, _ := newTestService(t)

	first := createProduct(t, svc, "Nitro Monthly", 999, 0)
	second := createProduct(t, svc, "Nitro Monthly", 999, 0)

	assert.Equal(t, "nitro-monthly", first.Code)
	assert.NotEqual(t, first.Code, second.Code)
	assert.Contains(t, second.Code, "nitro-monthly-")
}

func TestReserve_GuardsStock(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	resp := createProduct(t, svc, "Decoration Pack", 499, 3)
	id, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	granted := 0
	for i := 0; i < 5; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := svc.Reserve(ctx, tx, id.Int64(), 1, "order test")
			return err
		})
		if err == nil {
			granted++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 3, granted)

	got, err := svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.Stock)
}

func TestReserve_InactiveProduct(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	resp := createProduct(t, svc, "Old Bundle", 199, 5)
	_, err := svc.Archive(ctx, resp.ID)
	require.NoError(t, err)

	id, _ := snowflake.ParseString(resp.ID)
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Reserve(ctx, tx, id.Int64(), 1, "order test")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrProductInactive)
}

func TestRelease_RestoresStock(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	resp := createProduct(t, svc, "1000 Robux", 899, 4)
	id, _ := snowflake.ParseString(resp.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Reserve(ctx, tx, id.Int64(), 3, "order test")
		return err
	})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Release(ctx, tx, id.Int64(), 3, "order cancelled")
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.Stock)
}

func TestInventoryLog_ReplaysToLiveStock(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	resp := createProduct(t, svc, "Nitro Yearly", 9999, 8)
	id, _ := snowflake.ParseString(resp.ID)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Reserve(ctx, tx, id.Int64(), 2, "order a")
		return err
	}))
	_, err := svc.AdjustStock(ctx, resp.ID, domain.AdjustStockRequest{Stock: 20})
	require.NoError(t, err)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Release(ctx, tx, id.Int64(), 1, "order b cancelled")
	}))

	entries, err := svc.History(ctx, resp.ID, 50)
	require.NoError(t, err)

	var sum int64
	for _, e := range entries {
		assert.Equal(t, e.QuantityChange, e.NewStock-e.OldStock)
		sum += e.QuantityChange
	}

	got, err := svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Stock, sum)
}

func TestAdjustStock_RecordsSignedDelta(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	resp := createProduct(t, svc, "Server Banner", 299, 10)

	reason := "damaged units"
	_, err := svc.AdjustStock(ctx, resp.ID, domain.AdjustStockRequest{Stock: 6, Reason: &reason})
	require.NoError(t, err)

	entries, err := svc.History(ctx, resp.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	latest := entries[0]
	assert.Equal(t, domain.ChangeDecrease, latest.ChangeType)
	assert.EqualValues(t, -4, latest.QuantityChange)
	assert.EqualValues(t, 10, latest.OldStock)
	assert.EqualValues(t, 6, latest.NewStock)
	require.NotNil(t, latest.Reason)
	assert.Equal(t, reason, *latest.Reason)
}

func TestLowStock_UsesThreshold(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	low := createProduct(t, svc, "Rare Decoration", 1299, 2)
	createProduct(t, svc, "Common Decoration", 199, 50)
	archived := createProduct(t, svc, "Retired Decoration", 99, 0)
	_, err := svc.Archive(ctx, archived.ID)
	require.NoError(t, err)

	items, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, low.ID, items[0].ID)
}

func TestUpdate_PartialFields(t *testing.T) {
	svc, _, fake := newTestService(t)
	ctx := context.Background()

	resp := createProduct(t, svc, "Nitro Basic", 299, 5)
	fake.Advance(time.Hour)

	newPrice := int64(399)
	updated, err := svc.Update(ctx, resp.ID, domain.UpdateRequest{Price: &newPrice})
	require.NoError(t, err)

	assert.EqualValues(t, 399, updated.Price)
	assert.Equal(t, resp.Name, updated.Name)
	assert.True(t, updated.UpdatedAt.After(resp.UpdatedAt))

	_, err = svc.Update(ctx, "not-a-snowflake", domain.UpdateRequest{Price: &newPrice})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
