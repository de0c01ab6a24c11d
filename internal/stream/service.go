package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

// DefaultPollInterval is how often the projection is re-read per connection.
const DefaultPollInterval = 2 * time.Second

// SendFunc writes one event frame to the client. A non-nil error ends the
// stream (client gone, broken pipe).
type SendFunc func(Event) error

// Service turns the polled order projection into a delta event stream.
type Service interface {
	// Run blocks until the context is cancelled, the send function fails,
	// or polling errors out. Callers authorize access before starting.
	Run(ctx context.Context, orderID uuid.UUID, send SendFunc) error
}

type service struct {
	repo     Repository
	interval time.Duration
	logg     *logger.Logger
}

// NewService wires the stream projector.
func NewService(repo Repository, interval time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stream repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &service{repo: repo, interval: interval, logg: logg}, nil
}

func (s *service) Run(ctx context.Context, orderID uuid.UUID, send SendFunc) error {
	last, err := s.repo.FindSnapshot(ctx, orderID)
	if err != nil {
		_ = send(Event{Name: EventError, Data: ErrorPayload{Message: "order unavailable"}})
		return err
	}
	if err := send(Event{Name: EventConnected, Data: last}); err != nil {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current, err := s.repo.FindSnapshot(ctx, orderID)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logg.Error(ctx, "stream poll failed", err)
				_ = send(Event{Name: EventError, Data: ErrorPayload{Message: "stream interrupted"}})
				return err
			}

			for _, event := range diff(last, current) {
				if err := send(event); err != nil {
					return nil
				}
			}
			last = current
		}
	}
}

// diff computes the delta events between two consecutive snapshots.
func diff(prev, current *Snapshot) []Event {
	var events []Event

	if current.OrderStatus != prev.OrderStatus {
		events = append(events, Event{Name: EventOrderStatus, Data: OrderStatusPayload{
			OrderID: current.OrderID,
			Status:  current.OrderStatus,
		}})
	}

	if deliveryStatusChanged(prev, current) {
		events = append(events, Event{Name: EventDeliveryStatus, Data: DeliveryStatusPayload{
			OrderID: current.OrderID,
			Status:  *current.DeliveryStatus,
		}})
	}

	if riderMoved(prev, current) {
		events = append(events, Event{Name: EventRiderLocation, Data: RiderLocationPayload{
			OrderID:   current.OrderID,
			Latitude:  *current.RiderLatitude,
			Longitude: *current.RiderLongitude,
		}})
	}
	return events
}

func deliveryStatusChanged(prev, current *Snapshot) bool {
	if current.DeliveryStatus == nil {
		return false
	}
	return prev.DeliveryStatus == nil || *prev.DeliveryStatus != *current.DeliveryStatus
}

// riderMoved reports position deltas, but only while the rider is in transit.
func riderMoved(prev, current *Snapshot) bool {
	if current.DeliveryStatus == nil || *current.DeliveryStatus != enums.DeliveryStatusInTransit {
		return false
	}
	if current.RiderLatitude == nil || current.RiderLongitude == nil {
		return false
	}
	if prev.RiderLatitude == nil || prev.RiderLongitude == nil {
		return true
	}
	return *prev.RiderLatitude != *current.RiderLatitude || *prev.RiderLongitude != *current.RiderLongitude
}
