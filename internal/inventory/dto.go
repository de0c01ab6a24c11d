package inventory

import (
	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// AdjustStockInput describes a single ledger adjustment.
type AdjustStockInput struct {
	PricingUnitID uuid.UUID
	Delta         int
	ChangeType    enums.StockChangeType
	OrderID       *uuid.UUID
	Notes         *string
}

// Adjustment reports the ledger outcome. Previous and New are nil for
// untracked units, which skip the numeric change but still get an audit row.
type Adjustment struct {
	PricingUnitID uuid.UUID
	Previous      *int
	New           *int
	Tracked       bool
}

// LowStockContext carries the denormalized fields needed to alert a shop owner.
type LowStockContext struct {
	OwnerID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	UnitLabel   string
	ShopName    string
}
