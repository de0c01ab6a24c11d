package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Delivery is created lazily on first payment confirmation and never
// duplicated; the unique order id guards idempotent creation. Pickup
// coordinates snapshot the shop location at creation time.
type Delivery struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	RiderID          *uuid.UUID           `gorm:"column:rider_id;type:uuid"`
	Status           enums.DeliveryStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PickupLatitude   *float64             `gorm:"column:pickup_latitude"`
	PickupLongitude  *float64             `gorm:"column:pickup_longitude"`
	DropoffLatitude  *float64             `gorm:"column:dropoff_latitude"`
	DropoffLongitude *float64             `gorm:"column:dropoff_longitude"`
	RiderLatitude    *float64             `gorm:"column:rider_latitude"`
	RiderLongitude   *float64             `gorm:"column:rider_longitude"`
	EstimatedMinutes *int                 `gorm:"column:estimated_minutes"`
	AssignedAt       *time.Time           `gorm:"column:assigned_at"`
	PickedUpAt       *time.Time           `gorm:"column:picked_up_at"`
	DeliveredAt      *time.Time           `gorm:"column:delivered_at"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
