package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/internal/payment/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, order_id, method, external_id, amount, crypto_amount, crypto_currency, status, tx_hash, metadata, created_at, updated_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.OrderID,
		payment.Method,
		payment.ExternalID,
		payment.Amount,
		payment.CryptoAmount,
		payment.CryptoCurrency,
		payment.Status,
		payment.TxHash,
		payment.Metadata,
		payment.CreatedAt,
		payment.UpdatedAt,
		payment.CompletedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, method, external_id, amount, crypto_amount, crypto_currency, status, tx_hash, metadata, created_at, updated_at, completed_at
		 FROM payments WHERE id = ?`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, method, external_id, amount, crypto_amount, crypto_currency, status, tx_hash, metadata, created_at, updated_at, completed_at
		 FROM payments WHERE order_id = ? ORDER BY created_at DESC, id DESC`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindOpenByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, method, external_id, amount, crypto_amount, crypto_currency, status, tx_hash, metadata, created_at, updated_at, completed_at
		 FROM payments WHERE order_id = ? AND status = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		orderID, domain.StatusPending,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindConfirmedByTxHash(ctx context.Context, db *gorm.DB, txHash string) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, method, external_id, amount, crypto_amount, crypto_currency, status, tx_hash, metadata, created_at, updated_at, completed_at
		 FROM payments WHERE tx_hash = ? AND status = ? LIMIT 1`,
		txHash, domain.StatusConfirmed,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) Settle(ctx context.Context, db *gorm.DB, id int64, status domain.Status, txHash *string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, tx_hash = COALESCE(?, tx_hash), completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, txHash, now, now, id, domain.StatusPending,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) VoidOpenByOrder(ctx context.Context, db *gorm.DB, orderID string, status domain.Status, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, updated_at = ? WHERE order_id = ? AND status = ?`,
		status, now, orderID, domain.StatusPending,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) SetExternalID(ctx context.Context, db *gorm.DB, id int64, externalID string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET external_id = ?, updated_at = ? WHERE id = ?`,
		externalID, now, id,
	).Error
}

func (r *repo) SetMetadata(ctx context.Context, db *gorm.DB, id int64, metadata map[string]any, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET metadata = ?, updated_at = ? WHERE id = ?`,
		datatypes.JSONMap(metadata), now, id,
	).Error
}
