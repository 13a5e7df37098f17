package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, user_id, product_id, product_name, quantity, unit_price, total, payment_method, status, payment_id, delivery_info, created_at, updated_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.UserID,
		order.ProductID,
		order.ProductName,
		order.Quantity,
		order.UnitPrice,
		order.Total,
		order.PaymentMethod,
		order.Status,
		order.PaymentID,
		order.DeliveryInfo,
		order.CreatedAt,
		order.UpdatedAt,
		order.CompletedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, product_id, product_name, quantity, unit_price, total, payment_method, status, payment_id, delivery_info, created_at, updated_at, completed_at
		 FROM orders WHERE id = ?`,
		id,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == "" {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Order, error) {
	var items []domain.Order
	stmt := db.WithContext(ctx).Model(&domain.Order{})

	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Since != nil {
		stmt = stmt.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		stmt = stmt.Where("created_at < ?", *filter.Until)
	}
	if filter.Before != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", *filter.Before, *filter.Before, filter.BeforeID)
	}

	stmt = stmt.Order("created_at DESC, id DESC")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, id string, from, to domain.Status, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, id, from,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) SetPaymentID(ctx context.Context, db *gorm.DB, id, paymentID string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET payment_id = ?, updated_at = ? WHERE id = ?`,
		paymentID, now, id,
	).Error
}

func (r *repo) Finalize(ctx context.Context, db *gorm.DB, id string, completedAt time.Time, deliveryInfo *string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET completed_at = ?, delivery_info = COALESCE(?, delivery_info), updated_at = ? WHERE id = ?`,
		completedAt, deliveryInfo, completedAt, id,
	).Error
}

func (r *repo) FindStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, product_id, product_name, quantity, unit_price, total, payment_method, status, payment_id, delivery_info, created_at, updated_at, completed_at
		 FROM orders WHERE status = ? AND created_at < ? ORDER BY created_at ASC`,
		domain.StatusPending, cutoff,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
