package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, token string) (*Response, error)
	GetForUser(ctx context.Context, token string, userID int64) (*Response, error)
	List(ctx context.Context, req ListRequest) (*Page, error)
	ListByUser(ctx context.Context, userID int64, status Status) ([]Response, error)

	// MarkProcessing moves a pending order into processing once a payment
	// attempt is underway.
	MarkProcessing(ctx context.Context, token string, paymentID *string) (*Response, error)
	// Complete finalizes a processing order, stamps delivery info and folds
	// the sale into the buyer's profile. Calling it twice settles once.
	Complete(ctx context.Context, token string, deliveryInfo *string) (*Response, error)
	// Cancel aborts a pending or processing order and puts the reserved
	// units back on the shelf.
	Cancel(ctx context.Context, token string, reason string) (*Response, error)
	// ExpireStale cancels pending orders older than the payment window and
	// reports how many were swept.
	ExpireStale(ctx context.Context) (int, error)
}

type CreateRequest struct {
	UserID        int64  `json:"-"`
	ProductID     string `json:"product_id"`
	Quantity      int64  `json:"quantity"`
	PaymentMethod string `json:"payment_method"`
}

type ListRequest struct {
	UserID string
	Status string
	Since  *time.Time
	Until  *time.Time

	PageToken string
	PageSize  int
}

type Page struct {
	Orders   []Response          `json:"orders"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID            string     `json:"id"`
	UserID        int64      `json:"user_id"`
	ProductID     string     `json:"product_id"`
	ProductName   string     `json:"product_name"`
	Quantity      int64      `json:"quantity"`
	UnitPrice     int64      `json:"unit_price"`
	Total         int64      `json:"total"`
	PaymentMethod Method     `json:"payment_method"`
	Status        Status     `json:"status"`
	PaymentID     *string    `json:"payment_id,omitempty"`
	DeliveryInfo  *string    `json:"delivery_info,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

const (
	MinQuantity = 1
	MaxQuantity = 10
)

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrNotFound             = errors.New("not_found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrOrderTerminal        = errors.New("order_terminal")
	ErrTokenExhausted       = errors.New("token_exhausted")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
)
