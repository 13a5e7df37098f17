package domain

import (
	"time"

	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Payment is one attempt to settle an order. An order can accumulate several
// failed attempts but at most one confirmed one.
type Payment struct {
	ID             int64              `json:"id" gorm:"primaryKey"`
	OrderID        string             `json:"order_id" gorm:"type:text;not null;index"`
	Method         orderdomain.Method `json:"method" gorm:"type:text;not null"`
	ExternalID     *string            `json:"external_id,omitempty" gorm:"type:text"`
	Amount         int64              `json:"amount" gorm:"not null"`
	CryptoAmount   *float64           `json:"crypto_amount,omitempty"`
	CryptoCurrency *string            `json:"crypto_currency,omitempty" gorm:"type:text"`
	Status         Status             `json:"status" gorm:"type:text;not null;default:pending;index"`
	TxHash         *string            `json:"tx_hash,omitempty" gorm:"type:text"`
	Metadata       datatypes.JSONMap  `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time          `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
}

func (Payment) TableName() string { return "payments" }
