package domain

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// transitions is the full state machine. Completion requires the order to
// have passed through processing first.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Method string

const (
	MethodPayPal  Method = "paypal"
	MethodETH     Method = "eth"
	MethodLTC     Method = "ltc"
	MethodCashApp Method = "cashapp"
)

func (m Method) Valid() bool {
	switch m {
	case MethodPayPal, MethodETH, MethodLTC, MethodCashApp:
		return true
	}
	return false
}

func (m Method) Crypto() bool { return m == MethodETH || m == MethodLTC }

// Order keys on a short human-readable token rather than a numeric id; the
// token is what buyers quote in payment notes and support requests.
// ProductName and UnitPrice are copied at creation so later catalog edits
// never change what was sold.
type Order struct {
	ID            string     `json:"id" gorm:"primaryKey;type:text"`
	UserID        int64      `json:"user_id" gorm:"not null;index"`
	ProductID     int64      `json:"product_id" gorm:"not null"`
	ProductName   string     `json:"product_name" gorm:"type:text;not null"`
	Quantity      int64      `json:"quantity" gorm:"not null"`
	UnitPrice     int64      `json:"unit_price" gorm:"not null"`
	Total         int64      `json:"total" gorm:"not null"`
	PaymentMethod Method     `json:"payment_method" gorm:"type:text;not null"`
	Status        Status     `json:"status" gorm:"type:text;not null;default:pending;index"`
	PaymentID     *string    `json:"payment_id,omitempty" gorm:"type:text"`
	DeliveryInfo  *string    `json:"delivery_info,omitempty" gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (Order) TableName() string { return "orders" }
