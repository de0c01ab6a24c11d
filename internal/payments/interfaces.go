package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Repository defines the persistence surface for payment reconciliation.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	FindUserEmail(ctx context.Context, userID uuid.UUID) (string, error)
	// CompletePending flips the payment to completed with escrow held, but
	// only from pending. Returns false when another confirmation won.
	CompletePending(ctx context.Context, orderID uuid.UUID, gatewayRef string, paidAt time.Time) (bool, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, allowed []enums.OrderStatus, target enums.OrderStatus, extra map[string]any) (bool, error)
	FindDelivery(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	CreateDelivery(ctx context.Context, delivery *models.Delivery) error
	// ResetDelivery returns an existing delivery to the unassigned pending
	// state so a retried confirmation can re-run assignment.
	ResetDelivery(ctx context.Context, deliveryID uuid.UUID) error
}
