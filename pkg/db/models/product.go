package models

import (
	"time"

	"github.com/google/uuid"
)

// Product groups the sellable pricing units of a shop listing.
type Product struct {
	ID           uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID       uuid.UUID     `gorm:"column:shop_id;type:uuid;not null"`
	Name         string        `gorm:"column:name;not null"`
	Description  *string       `gorm:"column:description"`
	PricingUnits []PricingUnit `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
