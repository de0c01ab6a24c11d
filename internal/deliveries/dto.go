package deliveries

import (
	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
)

// AvailabilityInput toggles a rider's online flag, optionally refreshing
// their last known position.
type AvailabilityInput struct {
	RiderID   uuid.UUID
	Online    bool
	Latitude  *float64
	Longitude *float64
}

// LocationInput is a rider position report against an in-flight delivery.
type LocationInput struct {
	RiderID    uuid.UUID
	DeliveryID uuid.UUID
	Latitude   float64
	Longitude  float64
}

// ListParams configures a rider's delivery listing.
type ListParams struct {
	RiderID uuid.UUID
	Limit   int
	Cursor  string
}

// ListResult wraps a page of deliveries and the next-page cursor.
type ListResult struct {
	Items  []models.Delivery `json:"items"`
	Cursor string            `json:"cursor"`
}

// candidate is a rider with a derived position, ready for ranking.
type candidate struct {
	riderID    uuid.UUID
	distanceKM float64
}
