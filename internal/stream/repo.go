package stream

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
)

// Repository loads the polled order projection.
type Repository interface {
	FindSnapshot(ctx context.Context, orderID uuid.UUID) (*Snapshot, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stream repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindSnapshot(ctx context.Context, orderID uuid.UUID) (*Snapshot, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Payment").
		Preload("Delivery").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		OrderID:     order.ID,
		OrderStatus: order.Status,
	}
	if order.Payment != nil {
		snapshot.PaymentStatus = order.Payment.Status
		snapshot.EscrowStatus = order.Payment.EscrowStatus
	}
	if order.Delivery != nil {
		status := order.Delivery.Status
		snapshot.DeliveryStatus = &status
		snapshot.RiderLatitude = order.Delivery.RiderLatitude
		snapshot.RiderLongitude = order.Delivery.RiderLongitude
	}
	return snapshot, nil
}
