package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingUnit is a sellable unit of a product with independently tracked
// stock. A nil Stock means the unit is untracked: numeric adjustments are
// skipped but audit rows are still written. Stock is only ever mutated by the
// inventory ledger so the StockHistory trail stays consistent.
type PricingUnit struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID         uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Label             string          `gorm:"column:label;not null"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock             *int            `gorm:"column:stock"`
	LowStockThreshold int             `gorm:"column:low_stock_threshold;not null;default:5"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
