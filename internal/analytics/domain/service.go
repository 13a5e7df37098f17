package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// SalesSummary aggregates completed sales inside the window; only
	// orders placed in [Since, Until) count, whenever they completed.
	SalesSummary(ctx context.Context, req SummaryRequest) (*Summary, error)
	TopProducts(ctx context.Context, req SummaryRequest) ([]ProductSales, error)
}

type SummaryRequest struct {
	Since *time.Time
	Until *time.Time
}

type Summary struct {
	Revenue         int64            `json:"revenue"`
	CompletedOrders int64            `json:"completed_orders"`
	UnitsSold       int64            `json:"units_sold"`
	StatusCounts    map[string]int64 `json:"status_counts"`
	ByCategory      []CategorySales  `json:"by_category"`
	TopProducts     []ProductSales   `json:"top_products"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

type CategorySales struct {
	Category   string `json:"category"`
	OrderCount int64  `json:"order_count"`
	Revenue    int64  `json:"revenue"`
}

type ProductSales struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	OrderCount  int64  `json:"order_count"`
	UnitsSold   int64  `json:"units_sold"`
	Revenue     int64  `json:"revenue"`
}

var ErrInvalidWindow = errors.New("invalid_window")
