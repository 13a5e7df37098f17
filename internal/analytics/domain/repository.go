package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type SalesTotals struct {
	Revenue   int64
	Orders    int64
	UnitsSold int64
}

type StatusCount struct {
	Status string
	Count  int64
}

type CategoryTotals struct {
	Category   string
	OrderCount int64
	Revenue    int64
}

type ProductTotals struct {
	ProductID   int64
	ProductName string
	OrderCount  int64
	UnitsSold   int64
	Revenue     int64
}

type Repository interface {
	CompletedTotals(ctx context.Context, db *gorm.DB, since, until *time.Time) (*SalesTotals, error)
	StatusCounts(ctx context.Context, db *gorm.DB, since, until *time.Time) ([]StatusCount, error)
	CategorySales(ctx context.Context, db *gorm.DB, since, until *time.Time) ([]CategoryTotals, error)
	TopProducts(ctx context.Context, db *gorm.DB, since, until *time.Time, limit int) ([]ProductTotals, error)
}
