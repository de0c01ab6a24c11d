package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
)

// Repository defines persistence operations for deliveries and rider state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	// FindCandidates returns approved, active, online riders.
	FindCandidates(ctx context.Context) ([]models.User, error)
	// FindActiveDelivery returns the rider's most recent delivery in an
	// active status, or gorm.ErrRecordNotFound.
	FindActiveDelivery(ctx context.Context, riderID uuid.UUID) (*models.Delivery, error)
	// Bind claims an unassigned pending delivery for the rider. Returns
	// false when another assigner won the race.
	Bind(ctx context.Context, deliveryID, riderID uuid.UUID, assignedAt time.Time) (bool, error)
	ListForRider(ctx context.Context, riderID uuid.UUID, params pagination.Params) ([]models.Delivery, *pagination.Cursor, error)
	// UpdateDeliveryStatus transitions the rider's own delivery only from
	// one of the allowed statuses.
	UpdateDeliveryStatus(ctx context.Context, deliveryID, riderID uuid.UUID, allowed []enums.DeliveryStatus, target enums.DeliveryStatus, extra map[string]any) (bool, error)
	SetRiderAvailability(ctx context.Context, riderID uuid.UUID, online bool, lat, lng *float64) error
	UpdateRiderLocation(ctx context.Context, deliveryID, riderID uuid.UUID, lat, lng float64) (bool, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, allowed []enums.OrderStatus, target enums.OrderStatus, extra map[string]any) (bool, error)
	// ReleaseEscrow moves held funds to released; a no-op for any other
	// escrow state.
	ReleaseEscrow(ctx context.Context, orderID uuid.UUID, releasedAt time.Time) (bool, error)
}
