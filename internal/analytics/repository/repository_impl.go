package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/internal/analytics/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CompletedTotals(ctx context.Context, db *gorm.DB, since, until *time.Time) (*domain.SalesTotals, error) {
	query := `SELECT COALESCE(SUM(total), 0) AS revenue, COUNT(*) AS orders, COALESCE(SUM(quantity), 0) AS units_sold
		 FROM orders WHERE status = 'completed'`
	args := []any{}
	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *since)
	}
	if until != nil {
		query += ` AND created_at < ?`
		args = append(args, *until)
	}

	var totals domain.SalesTotals
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&totals).Error; err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *repo) StatusCounts(ctx context.Context, db *gorm.DB, since, until *time.Time) ([]domain.StatusCount, error) {
	query := `SELECT status, COUNT(*) AS count FROM orders WHERE 1=1`
	args := []any{}
	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *since)
	}
	if until != nil {
		query += ` AND created_at < ?`
		args = append(args, *until)
	}
	query += ` GROUP BY status`

	var counts []domain.StatusCount
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *repo) CategorySales(ctx context.Context, db *gorm.DB, since, until *time.Time) ([]domain.CategoryTotals, error) {
	query := `SELECT p.category, COUNT(*) AS order_count, COALESCE(SUM(o.total), 0) AS revenue
		 FROM orders o JOIN products p ON p.id = o.product_id
		 WHERE o.status = 'completed'`
	args := []any{}
	if since != nil {
		query += ` AND o.created_at >= ?`
		args = append(args, *since)
	}
	if until != nil {
		query += ` AND o.created_at < ?`
		args = append(args, *until)
	}
	query += ` GROUP BY p.category ORDER BY order_count DESC, revenue DESC`

	var totals []domain.CategoryTotals
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repo) TopProducts(ctx context.Context, db *gorm.DB, since, until *time.Time, limit int) ([]domain.ProductTotals, error) {
	query := `SELECT product_id, product_name, COUNT(*) AS order_count, COALESCE(SUM(quantity), 0) AS units_sold, COALESCE(SUM(total), 0) AS revenue
		 FROM orders WHERE status = 'completed'`
	args := []any{}
	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *since)
	}
	if until != nil {
		query += ` AND created_at < ?`
		args = append(args, *until)
	}
	query += ` GROUP BY product_id, product_name ORDER BY order_count DESC, revenue DESC LIMIT ?`
	args = append(args, limit)

	var totals []domain.ProductTotals
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}
