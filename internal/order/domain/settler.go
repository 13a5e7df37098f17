package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// PaymentSettler closes open payment attempts when their order dies, inside
// the cancelling transaction so the attempt and the order settle together.
type PaymentSettler interface {
	VoidOpen(ctx context.Context, tx *gorm.DB, orderID, cause string, now time.Time) error
}
