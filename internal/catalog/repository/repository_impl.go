package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, code, name, description, price, category, stock, image_url, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Code,
		product.Name,
		product.Description,
		product.Price,
		product.Category,
		product.Stock,
		product.ImageURL,
		product.Active,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, description, price, category, stock, image_url, active, created_at, updated_at
		 FROM products WHERE id = ?`,
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

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).Model(&domain.Product{})

	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}

	stmt = stmt.Order(sortClause(filter.SortBy, filter.OrderBy))

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func sortClause(sortBy, orderBy string) string {
	allowed := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
		"price":      true,
		"stock":      true,
	}
	if !allowed[sortBy] {
		sortBy = "created_at"
	}
	if orderBy != "desc" {
		orderBy = "asc"
	}
	return sortBy + " " + orderBy
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET name = ?, description = ?, price = ?, category = ?, image_url = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		product.Name,
		product.Description,
		product.Price,
		product.Category,
		product.ImageURL,
		product.Active,
		product.UpdatedAt,
		product.ID,
	).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id int64, active bool, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE products SET active = ?, updated_at = ? WHERE id = ?`,
		active, now, id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ReserveStock(ctx context.Context, db *gorm.DB, id, qty int64, now time.Time) (*domain.StockMove, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE products
		 SET stock = stock - ?, updated_at = ?
		 WHERE id = ? AND active = ? AND stock >= ?`,
		qty, now, id, true, qty,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		p, err := r.FindByID(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, domain.ErrNotFound
		}
		if !p.Active {
			return nil, domain.ErrProductInactive
		}
		return nil, domain.ErrInsufficientStock
	}

	var stock int64
	if err := db.WithContext(ctx).Raw(`SELECT stock FROM products WHERE id = ?`, id).Scan(&stock).Error; err != nil {
		return nil, err
	}
	return &domain.StockMove{OldStock: stock + qty, NewStock: stock}, nil
}

func (r *repo) ReleaseStock(ctx context.Context, db *gorm.DB, id, qty int64, now time.Time) (*domain.StockMove, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?`,
		qty, now, id,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	var stock int64
	if err := db.WithContext(ctx).Raw(`SELECT stock FROM products WHERE id = ?`, id).Scan(&stock).Error; err != nil {
		return nil, err
	}
	return &domain.StockMove{OldStock: stock - qty, NewStock: stock}, nil
}

func (r *repo) SetStock(ctx context.Context, db *gorm.DB, id, stock int64, now time.Time) (*domain.StockMove, error) {
	p, err := r.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}

	res := db.WithContext(ctx).Exec(
		`UPDATE products SET stock = ?, updated_at = ? WHERE id = ?`,
		stock, now, id,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	return &domain.StockMove{OldStock: p.Stock, NewStock: stock}, nil
}

func (r *repo) AppendLog(ctx context.Context, db *gorm.DB, log *domain.InventoryLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO inventory_logs (id, product_id, change_type, quantity_change, old_stock, new_stock, reason, admin_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.ProductID,
		log.ChangeType,
		log.QuantityChange,
		log.OldStock,
		log.NewStock,
		log.Reason,
		log.AdminID,
		log.CreatedAt,
	).Error
}

func (r *repo) FindLogs(ctx context.Context, db *gorm.DB, productID int64, limit int) ([]domain.InventoryLog, error) {
	var items []domain.InventoryLog
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, change_type, quantity_change, old_stock, new_stock, reason, admin_id, created_at
		 FROM inventory_logs WHERE product_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		productID, limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindLowStock(ctx context.Context, db *gorm.DB, threshold int64) ([]domain.Product, error) {
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, description, price, category, stock, image_url, active, created_at, updated_at
		 FROM products WHERE active = ? AND stock <= ? ORDER BY stock ASC, name ASC`,
		true, threshold,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
