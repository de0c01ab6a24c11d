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

type repository struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *repository) FindCandidates(ctx context.Context) ([]models.User, error) {
	var riders []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND rider_status = ? AND is_active = ? AND is_online = ?",
			enums.UserRoleRider, enums.RiderStatusApproved, true, true).
		Find(&riders).Error
	if err != nil {
		return nil, err
	}
	return riders, nil
}

func (r *repository) FindActiveDelivery(ctx context.Context, riderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("rider_id = ? AND status IN ?", riderID, enums.ActiveDeliveryStatuses).
		Order("updated_at DESC").
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) Bind(ctx context.Context, deliveryID, riderID uuid.UUID, assignedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND rider_id IS NULL AND status = ?", deliveryID, enums.DeliveryStatusPending).
		Updates(map[string]any{
			"rider_id":    riderID,
			"status":      enums.DeliveryStatusAssigned,
			"assigned_at": assignedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListForRider(ctx context.Context, riderID uuid.UUID, params pagination.Params) ([]models.Delivery, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("rider_id = ?", riderID)

	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Delivery
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[normalized-1]
		return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}

func (r *repository) UpdateDeliveryStatus(ctx context.Context, deliveryID, riderID uuid.UUID, allowed []enums.DeliveryStatus, target enums.DeliveryStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": target}
	for key, value := range extra {
		updates[key] = value
	}

	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND rider_id = ? AND status IN ?", deliveryID, riderID, allowed).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetRiderAvailability(ctx context.Context, riderID uuid.UUID, online bool, lat, lng *float64) error {
	updates := map[string]any{"is_online": online}
	if lat != nil && lng != nil {
		updates["last_latitude"] = *lat
		updates["last_longitude"] = *lng
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", riderID).
		Updates(updates).Error
}

func (r *repository) UpdateRiderLocation(ctx context.Context, deliveryID, riderID uuid.UUID, lat, lng float64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND rider_id = ? AND status IN ?", deliveryID, riderID, enums.ActiveDeliveryStatuses).
		Updates(map[string]any{
			"rider_latitude":  lat,
			"rider_longitude": lng,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", riderID).
		Updates(map[string]any{
			"last_latitude":  lat,
			"last_longitude": lng,
		}).Error
	if err != nil {
		return false, err
	}
	return true, nil
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

func (r *repository) ReleaseEscrow(ctx context.Context, orderID uuid.UUID, releasedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND escrow_status = ?", orderID, enums.EscrowStatusHeld).
		Updates(map[string]any{
			"escrow_status": enums.EscrowStatusReleased,
			"released_at":   releasedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
