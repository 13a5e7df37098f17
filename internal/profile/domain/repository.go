package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByUserID(ctx context.Context, db *gorm.DB, userID int64) (*UserProfile, error)
	Insert(ctx context.Context, db *gorm.DB, profile *UserProfile) error
	// AddPurchase folds one completed sale into an existing profile. Zero
	// rows affected means the profile does not exist yet.
	AddPurchase(ctx context.Context, db *gorm.DB, userID, amount int64, at time.Time) (int64, error)
	FindTopSpenders(ctx context.Context, db *gorm.DB, limit int) ([]UserProfile, error)
}
