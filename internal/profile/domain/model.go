package domain

import "time"

// UserProfile is a running aggregate over completed orders only; pending and
// cancelled orders never touch it.
type UserProfile struct {
	UserID        int64      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	TotalSpent    int64      `json:"total_spent" gorm:"not null;default:0"`
	TotalOrders   int64      `json:"total_orders" gorm:"not null;default:0"`
	FirstPurchase *time.Time `json:"first_purchase,omitempty"`
	LastPurchase  *time.Time `json:"last_purchase,omitempty"`
	CreatedAt     time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (UserProfile) TableName() string { return "user_profiles" }
