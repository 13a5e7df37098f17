package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// StockMove is the before/after snapshot of a single stock mutation, used to
// build the matching inventory log row.
type StockMove struct {
	OldStock int64
	NewStock int64
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Product, error)
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	SetActive(ctx context.Context, db *gorm.DB, id int64, active bool, now time.Time) (int64, error)

	// ReserveStock decrements stock only when the product is active and has
	// at least qty units. Zero rows affected means the caller must look at
	// the product row to tell not-found, inactive and insufficient apart.
	ReserveStock(ctx context.Context, db *gorm.DB, id, qty int64, now time.Time) (*StockMove, error)
	// ReleaseStock unconditionally adds qty back.
	ReleaseStock(ctx context.Context, db *gorm.DB, id, qty int64, now time.Time) (*StockMove, error)
	// SetStock overwrites the count regardless of its current value.
	SetStock(ctx context.Context, db *gorm.DB, id, stock int64, now time.Time) (*StockMove, error)

	AppendLog(ctx context.Context, db *gorm.DB, log *InventoryLog) error
	FindLogs(ctx context.Context, db *gorm.DB, productID int64, limit int) ([]InventoryLog, error)
	FindLowStock(ctx context.Context, db *gorm.DB, threshold int64) ([]Product, error)
}
