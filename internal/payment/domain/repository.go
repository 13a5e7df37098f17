package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Payment, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) ([]Payment, error)
	// FindOpenByOrderID returns the latest pending attempt for the order.
	FindOpenByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Payment, error)
	// FindConfirmedByTxHash detects a transaction hash being replayed
	// across orders.
	FindConfirmedByTxHash(ctx context.Context, db *gorm.DB, txHash string) (*Payment, error)

	// Settle flips a pending attempt to its terminal status; zero rows
	// affected means another confirmation already landed.
	Settle(ctx context.Context, db *gorm.DB, id int64, status Status, txHash *string, now time.Time) (int64, error)
	// VoidOpenByOrder closes every pending attempt on the order, used when
	// the order is cancelled or swept by the payment window.
	VoidOpenByOrder(ctx context.Context, db *gorm.DB, orderID string, status Status, now time.Time) (int64, error)
	SetExternalID(ctx context.Context, db *gorm.DB, id int64, externalID string, now time.Time) error
	SetMetadata(ctx context.Context, db *gorm.DB, id int64, metadata map[string]any, now time.Time) error
}
