package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// StockHistory is the immutable audit row written for every stock adjustment.
// It is the source of truth for reconciling disputes about stock drift.
type StockHistory struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PricingUnitID uuid.UUID             `gorm:"column:pricing_unit_id;type:uuid;not null;index"`
	OrderID       *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	ChangeType    enums.StockChangeType `gorm:"column:change_type;type:text;not null"`
	PreviousStock *int                  `gorm:"column:previous_stock"`
	NewStock      *int                  `gorm:"column:new_stock"`
	Delta         int                   `gorm:"column:delta;not null"`
	Notes         *string               `gorm:"column:notes"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}
