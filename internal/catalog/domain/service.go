package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Response, error)
	Archive(ctx context.Context, id string) (*Response, error)
	AdjustStock(ctx context.Context, id string, req AdjustStockRequest) (*Response, error)
	History(ctx context.Context, id string, limit int) ([]LogEntry, error)
	LowStock(ctx context.Context) ([]Response, error)

	// Reserve and Release run inside the caller's transaction so an order
	// and its stock movement commit or roll back together.
	Reserve(ctx context.Context, tx *gorm.DB, productID, qty int64, reason string) (*Product, error)
	Release(ctx context.Context, tx *gorm.DB, productID, qty int64, reason string) error
}

type ListRequest struct {
	Category string
	Active   *bool
	SortBy   string
	OrderBy  string
}

type CreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       int64   `json:"price"`
	Category    string  `json:"category"`
	Stock       int64   `json:"stock"`
	ImageURL    *string `json:"image_url"`
}

type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
	Category    *string `json:"category"`
	ImageURL    *string `json:"image_url"`
	Active      *bool   `json:"active"`
}

type AdjustStockRequest struct {
	Stock   int64   `json:"stock"`
	Reason  *string `json:"reason"`
	AdminID *int64  `json:"-"`
}

type Response struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Price       int64     `json:"price"`
	Category    Category  `json:"category"`
	Stock       int64     `json:"stock"`
	ImageURL    *string   `json:"image_url,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type LogEntry struct {
	ID             string     `json:"id"`
	ProductID      string     `json:"product_id"`
	ChangeType     ChangeType `json:"change_type"`
	QuantityChange int64      `json:"quantity_change"`
	OldStock       int64      `json:"old_stock"`
	NewStock       int64      `json:"new_stock"`
	Reason         *string    `json:"reason,omitempty"`
	AdminID        *int64     `json:"admin_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

var (
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrInvalidCategory   = errors.New("invalid_category")
	ErrInvalidStock      = errors.New("invalid_stock")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("not_found")
	ErrProductInactive   = errors.New("product_inactive")
	ErrInsufficientStock = errors.New("insufficient_stock")
)
