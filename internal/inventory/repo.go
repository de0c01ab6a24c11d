package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPricingUnit(ctx context.Context, id uuid.UUID) (*models.PricingUnit, error) {
	var unit models.PricingUnit
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&unit).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	return r.db.WithContext(ctx).
		Model(&models.PricingUnit{}).
		Where("id = ?", id).
		Update("stock", stock).Error
}

func (r *repository) CreateStockHistory(ctx context.Context, entry *models.StockHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindLowStockContext(ctx context.Context, unitID uuid.UUID) (*LowStockContext, error) {
	var row LowStockContext
	err := r.db.WithContext(ctx).
		Table("pricing_units").
		Select(`shops.owner_id AS owner_id,
			products.id AS product_id,
			products.name AS product_name,
			pricing_units.label AS unit_label,
			shops.name AS shop_name`).
		Joins("JOIN products ON products.id = pricing_units.product_id").
		Joins("JOIN shops ON shops.id = products.shop_id").
		Where("pricing_units.id = ?", unitID).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
