package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their satellites.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	FindPricingUnitDetails(ctx context.Context, ids []uuid.UUID) ([]PricingUnitDetail, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, *pagination.Cursor, error)
	// UpdateStatus transitions the order only when its current status is one
	// of the allowed values. Returns false when the guard did not match.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, allowed []enums.OrderStatus, target enums.OrderStatus, extra map[string]any) (bool, error)
}
