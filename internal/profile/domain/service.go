package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Service interface {
	Get(ctx context.Context, userID int64) (*Response, error)
	TopSpenders(ctx context.Context, limit int) ([]Response, error)

	// Apply runs inside the caller's transaction so the profile update
	// commits atomically with the order completion that caused it.
	Apply(ctx context.Context, tx *gorm.DB, userID, amount int64, at time.Time) error
}

type Response struct {
	UserID        int64      `json:"user_id"`
	TotalSpent    int64      `json:"total_spent"`
	TotalOrders   int64      `json:"total_orders"`
	FirstPurchase *time.Time `json:"first_purchase,omitempty"`
	LastPurchase  *time.Time `json:"last_purchase,omitempty"`
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidAmount = errors.New("invalid_amount")
)
