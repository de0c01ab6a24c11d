package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Repository defines persistence operations for the refund orchestrator.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// FindOrder loads the order with its items and payment.
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindOrderByRefundRef resolves a gateway refund reference back to its
	// order, for webhook handling.
	FindOrderByRefundRef(ctx context.Context, refundRef string) (*models.Order, error)
	FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	// FindOperatorIDs lists admin accounts for failure escalation.
	FindOperatorIDs(ctx context.Context) ([]uuid.UUID, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, allowed []enums.OrderStatus, target enums.OrderStatus, extra map[string]any) (bool, error)
	// SetRefundState records the gateway refund reference and status on the
	// payment row without touching escrow.
	SetRefundState(ctx context.Context, orderID uuid.UUID, refundRef *string, status enums.RefundStatus) error
	// FinalizeRefund settles the refund: escrow held -> refunded, payment ->
	// refunded. Returns false when escrow was not held, which makes retried
	// webhooks harmless.
	FinalizeRefund(ctx context.Context, orderID uuid.UUID, refundedAt time.Time) (bool, error)
}
