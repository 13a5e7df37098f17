package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/internal/profile/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID int64) (*domain.UserProfile, error) {
	var p domain.UserProfile
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, total_spent, total_orders, first_purchase, last_purchase, created_at
		 FROM user_profiles WHERE user_id = ?`,
		userID,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.UserID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, profile *domain.UserProfile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO user_profiles (user_id, total_spent, total_orders, first_purchase, last_purchase, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		profile.UserID,
		profile.TotalSpent,
		profile.TotalOrders,
		profile.FirstPurchase,
		profile.LastPurchase,
		profile.CreatedAt,
	).Error
}

func (r *repo) AddPurchase(ctx context.Context, db *gorm.DB, userID, amount int64, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE user_profiles
		 SET total_spent = total_spent + ?, total_orders = total_orders + 1, last_purchase = ?
		 WHERE user_id = ?`,
		amount, at, userID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) FindTopSpenders(ctx context.Context, db *gorm.DB, limit int) ([]domain.UserProfile, error) {
	var items []domain.UserProfile
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, total_spent, total_orders, first_purchase, last_purchase, created_at
		 FROM user_profiles ORDER BY total_spent DESC, user_id ASC LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
