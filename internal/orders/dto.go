package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Actor identifies the authenticated caller for authorization decisions.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
	ShopID *uuid.UUID
}

// ItemInput is one requested pricing unit and quantity.
type ItemInput struct {
	PricingUnitID uuid.UUID
	Quantity      int
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	BuyerID   uuid.UUID
	Items     []ItemInput
	Address   string
	Latitude  *float64
	Longitude *float64
}

// PricingUnitDetail joins a pricing unit with the product and shop it
// belongs to, for snapshotting at order creation.
type PricingUnitDetail struct {
	Unit        models.PricingUnit
	ProductName string
	ShopID      uuid.UUID
}

// ListFilter narrows order listings.
type ListFilter struct {
	BuyerID *uuid.UUID
	ShopID  *uuid.UUID
	Status  *enums.OrderStatus
}

// ListParams configures an order listing.
type ListParams struct {
	Actor  Actor
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// ListResult wraps a page of orders and the next-page cursor.
type ListResult struct {
	Items  []models.Order `json:"items"`
	Cursor string         `json:"cursor"`
}

// Totals is the monetary breakdown computed at creation time.
type Totals struct {
	Subtotal    decimal.Decimal
	PlatformFee decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}
