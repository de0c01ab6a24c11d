package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type scriptedRepo struct {
	mu        sync.Mutex
	snapshots []*Snapshot
	err       error
	calls     int
}

func (r *scriptedRepo) FindSnapshot(ctx context.Context, orderID uuid.UUID) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	idx := r.calls
	if idx >= len(r.snapshots) {
		idx = len(r.snapshots) - 1
	}
	r.calls++
	return r.snapshots[idx], nil
}

func deliveryStatus(s enums.DeliveryStatus) *enums.DeliveryStatus { return &s }
func f64Ptr(v float64) *float64                                   { return &v }

func collectEvents(t *testing.T, repo Repository, wanted int, timeout time.Duration) []Event {
	t.Helper()

	svc, err := NewService(repo, 5*time.Millisecond, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu     sync.Mutex
		events []Event
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx, uuid.New(), func(event Event) error {
			mu.Lock()
			events = append(events, event)
			count := len(events)
			mu.Unlock()
			if count >= wanted {
				cancel()
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		cancel()
		<-done
	}

	mu.Lock()
	defer mu.Unlock()
	return events
}

func TestStreamEmitsConnectedFirst(t *testing.T) {
	orderID := uuid.New()
	repo := &scriptedRepo{snapshots: []*Snapshot{
		{OrderID: orderID, OrderStatus: enums.OrderStatusPaid},
	}}

	events := collectEvents(t, repo, 1, time.Second)
	require.NotEmpty(t, events)
	assert.Equal(t, EventConnected, events[0].Name)
	snapshot, ok := events[0].Data.(*Snapshot)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusPaid, snapshot.OrderStatus)
}

func TestStreamEmitsOnlyDeltas(t *testing.T) {
	orderID := uuid.New()
	repo := &scriptedRepo{snapshots: []*Snapshot{
		{OrderID: orderID, OrderStatus: enums.OrderStatusPaid},
		{OrderID: orderID, OrderStatus: enums.OrderStatusPaid},
		{OrderID: orderID, OrderStatus: enums.OrderStatusPreparing},
	}}

	events := collectEvents(t, repo, 2, time.Second)
	require.Len(t, events, 2, "identical polls emit nothing")
	assert.Equal(t, EventOrderStatus, events[1].Name)
	payload := events[1].Data.(OrderStatusPayload)
	assert.Equal(t, enums.OrderStatusPreparing, payload.Status)
}

func TestStreamEmitsDeliveryTransitions(t *testing.T) {
	orderID := uuid.New()
	repo := &scriptedRepo{snapshots: []*Snapshot{
		{OrderID: orderID, OrderStatus: enums.OrderStatusPaid},
		{
			OrderID:        orderID,
			OrderStatus:    enums.OrderStatusPaid,
			DeliveryStatus: deliveryStatus(enums.DeliveryStatusAssigned),
		},
	}}

	events := collectEvents(t, repo, 2, time.Second)
	require.Len(t, events, 2)
	assert.Equal(t, EventDeliveryStatus, events[1].Name)
	payload := events[1].Data.(DeliveryStatusPayload)
	assert.Equal(t, enums.DeliveryStatusAssigned, payload.Status)
}

func TestStreamRiderLocationOnlyInTransit(t *testing.T) {
	orderID := uuid.New()
	repo := &scriptedRepo{snapshots: []*Snapshot{
		{
			OrderID:        orderID,
			OrderStatus:    enums.OrderStatusOutForDelivery,
			DeliveryStatus: deliveryStatus(enums.DeliveryStatusPickedUp),
			RiderLatitude:  f64Ptr(6.50),
			RiderLongitude: f64Ptr(3.35),
		},
		{
			// Position changed but rider not in transit yet: suppressed.
			OrderID:        orderID,
			OrderStatus:    enums.OrderStatusOutForDelivery,
			DeliveryStatus: deliveryStatus(enums.DeliveryStatusPickedUp),
			RiderLatitude:  f64Ptr(6.51),
			RiderLongitude: f64Ptr(3.36),
		},
		{
			OrderID:        orderID,
			OrderStatus:    enums.OrderStatusOutForDelivery,
			DeliveryStatus: deliveryStatus(enums.DeliveryStatusInTransit),
			RiderLatitude:  f64Ptr(6.52),
			RiderLongitude: f64Ptr(3.37),
		},
	}}

	events := collectEvents(t, repo, 3, time.Second)
	require.Len(t, events, 3)

	names := []string{events[0].Name, events[1].Name, events[2].Name}
	assert.Equal(t, []string{EventConnected, EventDeliveryStatus, EventRiderLocation}, names)

	location := events[2].Data.(RiderLocationPayload)
	assert.InDelta(t, 6.52, location.Latitude, 0.0001)
}

func TestStreamErrorFrameOnPollFailure(t *testing.T) {
	repo := &scriptedRepo{err: errors.New("db gone")}
	svc, err := NewService(repo, 5*time.Millisecond, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	var events []Event
	runErr := svc.Run(context.Background(), uuid.New(), func(event Event) error {
		events = append(events, event)
		return nil
	})
	require.Error(t, runErr)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Name)
}

func TestStreamStopsWhenClientDisconnects(t *testing.T) {
	orderID := uuid.New()
	repo := &scriptedRepo{snapshots: []*Snapshot{
		{OrderID: orderID, OrderStatus: enums.OrderStatusPaid},
	}}
	svc, err := NewService(repo, 5*time.Millisecond, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	runErr := svc.Run(context.Background(), orderID, func(Event) error {
		return errors.New("client went away")
	})
	assert.NoError(t, runErr, "send failure ends the loop cleanly")
}
