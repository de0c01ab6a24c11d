package stream

import (
	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Event names emitted on the order stream.
const (
	EventConnected      = "connected"
	EventOrderStatus    = "order_status_update"
	EventDeliveryStatus = "delivery_status_update"
	EventRiderLocation  = "rider_location_update"
	EventError          = "error"
)

// Event is one server-sent event frame.
type Event struct {
	Name string
	Data any
}

// Snapshot is the polled projection of an order and its satellites.
type Snapshot struct {
	OrderID        uuid.UUID             `json:"order_id"`
	OrderStatus    enums.OrderStatus     `json:"order_status"`
	PaymentStatus  enums.PaymentStatus   `json:"payment_status,omitempty"`
	EscrowStatus   enums.EscrowStatus    `json:"escrow_status,omitempty"`
	DeliveryStatus *enums.DeliveryStatus `json:"delivery_status,omitempty"`
	RiderLatitude  *float64              `json:"rider_latitude,omitempty"`
	RiderLongitude *float64              `json:"rider_longitude,omitempty"`
}

// OrderStatusPayload announces an order state transition.
type OrderStatusPayload struct {
	OrderID uuid.UUID         `json:"order_id"`
	Status  enums.OrderStatus `json:"status"`
}

// DeliveryStatusPayload announces a delivery state transition.
type DeliveryStatusPayload struct {
	OrderID uuid.UUID            `json:"order_id"`
	Status  enums.DeliveryStatus `json:"status"`
}

// RiderLocationPayload carries a rider position while in transit.
type RiderLocationPayload struct {
	OrderID   uuid.UUID `json:"order_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// ErrorPayload is the terminal frame when polling fails.
type ErrorPayload struct {
	Message string `json:"message"`
}
