package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Order is the buyer's purchase from a single shop. OrderNumber doubles as the
// gateway payment reference. Items are fixed at creation time and immutable
// once the order is paid.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber  string            `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID      uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	ShopID       uuid.UUID         `gorm:"column:shop_id;type:uuid;not null"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Currency     enums.Currency    `gorm:"column:currency;type:text;not null;default:'NGN'"`
	Subtotal     decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	PlatformFee  decimal.Decimal   `gorm:"column:platform_fee;type:numeric(12,2);not null"`
	DeliveryFee  decimal.Decimal   `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Total        decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Address      string            `gorm:"column:address;not null"`
	Latitude     *float64          `gorm:"column:latitude"`
	Longitude    *float64          `gorm:"column:longitude"`
	CancelReason *string           `gorm:"column:cancel_reason"`
	CancelledAt  *time.Time        `gorm:"column:cancelled_at"`
	DeliveredAt  *time.Time        `gorm:"column:delivered_at"`
	Items        []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment      *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Delivery     *Delivery         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
