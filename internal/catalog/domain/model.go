package domain

import "time"

type Category string

const (
	CategoryRobux       Category = "robux"
	CategoryNitro       Category = "nitro"
	CategoryDecorations Category = "decorations"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryRobux, CategoryNitro, CategoryDecorations:
		return true
	}
	return false
}

type ChangeType string

const (
	ChangeIncrease ChangeType = "increase"
	ChangeDecrease ChangeType = "decrease"
)

// Product is the sellable unit. Price is stored in minor units (cents) and
// Stock counts available units; reserved units are already subtracted.
type Product struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"type:text;not null;uniqueIndex:ux_products_code"`
	Name        string    `json:"name" gorm:"type:text;not null"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	Price       int64     `json:"price" gorm:"not null"`
	Category    Category  `json:"category" gorm:"type:text;not null;index"`
	Stock       int64     `json:"stock" gorm:"not null;default:0"`
	ImageURL    *string   `json:"image_url,omitempty" gorm:"type:text"`
	Active      bool      `json:"active" gorm:"not null;default:true;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }

// InventoryLog records one stock movement. QuantityChange is signed and
// NewStock-OldStock always equals it, so the log replays to the live count.
type InventoryLog struct {
	ID             int64      `json:"id" gorm:"primaryKey"`
	ProductID      int64      `json:"product_id" gorm:"not null;index:idx_inventory_logs_product_id,priority:1"`
	ChangeType     ChangeType `json:"change_type" gorm:"type:text;not null"`
	QuantityChange int64      `json:"quantity_change" gorm:"not null"`
	OldStock       int64      `json:"old_stock" gorm:"not null"`
	NewStock       int64      `json:"new_stock" gorm:"not null"`
	Reason         *string    `json:"reason,omitempty" gorm:"type:text"`
	AdminID        *int64     `json:"admin_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_inventory_logs_product_id,priority:2"`
}

func (InventoryLog) TableName() string { return "inventory_logs" }
