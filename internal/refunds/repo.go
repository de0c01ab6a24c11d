package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a refunds repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByRefundRef(ctx context.Context, refundRef string) (*models.Order, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("refund_ref = ?", refundRef).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return r.FindOrder(ctx, payment.OrderID)
}

func (r *repository) FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *repository) FindOperatorIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id").
		Where("role = ? AND is_active = ?", enums.UserRoleAdmin, true).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, allowed []enums.OrderStatus, target enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": target}
	for key, value := range extra {
		updates[key] = value
	}

	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, allowed).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetRefundState(ctx context.Context, orderID uuid.UUID, refundRef *string, status enums.RefundStatus) error {
	updates := map[string]any{"refund_status": status}
	if refundRef != nil {
		updates["refund_ref"] = *refundRef
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) FinalizeRefund(ctx context.Context, orderID uuid.UUID, refundedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND escrow_status = ?", orderID, enums.EscrowStatusHeld).
		Updates(map[string]any{
			"status":        enums.PaymentStatusRefunded,
			"escrow_status": enums.EscrowStatusRefunded,
			"refund_status": enums.RefundStatusProcessed,
			"refunded_at":   refundedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
