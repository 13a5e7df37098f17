package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ListFilter struct {
	UserID *int64
	Status Status
	Since  *time.Time
	Until  *time.Time

	// Before and BeforeID carry the decoded page cursor; rows at or past
	// that position in (created_at DESC, id DESC) order are skipped.
	Before   *time.Time
	BeforeID string
	Limit    int
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, error)

	// Transition flips status only when the row still holds `from`; zero
	// rows affected means a concurrent writer got there first.
	Transition(ctx context.Context, db *gorm.DB, id string, from, to Status, now time.Time) (int64, error)
	SetPaymentID(ctx context.Context, db *gorm.DB, id, paymentID string, now time.Time) error
	// Finalize stamps completion time and, when provided, delivery info.
	Finalize(ctx context.Context, db *gorm.DB, id string, completedAt time.Time, deliveryInfo *string) error

	// FindStalePending returns pending orders created before the cutoff.
	FindStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]Order, error)
}
