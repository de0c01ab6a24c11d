package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
)

// Repository defines persistence operations for the stock ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPricingUnit(ctx context.Context, id uuid.UUID) (*models.PricingUnit, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock int) error
	CreateStockHistory(ctx context.Context, entry *models.StockHistory) error
	FindLowStockContext(ctx context.Context, unitID uuid.UUID) (*LowStockContext, error)
}
