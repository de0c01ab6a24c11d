package deliveries

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/geo"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/metrics"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
)

// Assignment attempt outcomes, reported as the metric label.
const (
	outcomeAssigned     = "assigned"
	outcomeNoCandidates = "no_candidates"
	outcomeLostRace     = "lost_race"
)

type riderNotifier interface {
	NotifyDeliveryAssigned(ctx context.Context, riderID, orderID uuid.UUID, orderNumber string) error
	NotifyOrderDelivered(ctx context.Context, buyerID, sellerID, orderID uuid.UUID, orderNumber string) error
}

// Service runs rider auto-assignment and the rider-facing delivery
// state machine.
type Service interface {
	// AutoAssign picks the nearest eligible rider for a pending delivery.
	// Returns false without error when no rider could be bound.
	AutoAssign(ctx context.Context, deliveryID uuid.UUID) (bool, error)
	SetAvailability(ctx context.Context, input AvailabilityInput) error
	ListMine(ctx context.Context, params ListParams) (*ListResult, error)
	Pickup(ctx context.Context, riderID, deliveryID uuid.UUID) error
	StartTransit(ctx context.Context, input LocationInput) error
	ReportLocation(ctx context.Context, input LocationInput) error
	Complete(ctx context.Context, riderID, deliveryID uuid.UUID) error
}

type service struct {
	repo     Repository
	notifier riderNotifier
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

// NewService wires the deliveries service. Notifier and metrics are optional.
func NewService(repo Repository, notifier riderNotifier, m *metrics.PaymentMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, notifier: notifier, metrics: m, logg: logg}, nil
}

func (s *service) AutoAssign(ctx context.Context, deliveryID uuid.UUID) (bool, error) {
	delivery, err := s.repo.FindDelivery(ctx, deliveryID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	if delivery.RiderID != nil {
		return true, nil
	}
	if delivery.Status != enums.DeliveryStatusPending {
		return false, nil
	}

	riders, err := s.repo.FindCandidates(ctx)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rider candidates")
	}

	target := geo.PointFrom(delivery.DropoffLatitude, delivery.DropoffLongitude)
	if target == nil {
		target = geo.PointFrom(delivery.PickupLatitude, delivery.PickupLongitude)
	}

	ranked := s.rankCandidates(ctx, riders, target)
	if len(ranked) == 0 {
		s.metrics.IncAssignment(outcomeNoCandidates)
		s.logg.Info(ctx, "no eligible riders for delivery, staying pending")
		return false, nil
	}

	winner := ranked[0]
	bound, err := s.repo.Bind(ctx, deliveryID, winner.riderID, time.Now().UTC())
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind rider")
	}
	if !bound {
		s.metrics.IncAssignment(outcomeLostRace)
		s.logg.Info(ctx, "delivery was claimed by a concurrent assigner")
		return false, nil
	}

	s.metrics.IncAssignment(outcomeAssigned)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"delivery_id": deliveryID.String(),
		"rider_id":    winner.riderID.String(),
		"distance_km": winner.distanceKM,
	})
	s.logg.Info(ctx, "delivery assigned")

	if s.notifier != nil {
		order, err := s.repo.FindOrder(ctx, delivery.OrderID)
		if err != nil {
			s.logg.Error(ctx, "order lookup for assignment notification failed", err)
		} else if err := s.notifier.NotifyDeliveryAssigned(ctx, winner.riderID, order.ID, order.OrderNumber); err != nil {
			s.logg.Error(ctx, "assignment notification failed", err)
		}
	}
	return true, nil
}

// rankCandidates derives each rider's position and orders them by distance to
// the target, rider id ascending on ties. Riders without a derivable position
// are excluded. Position precedence: live coords on the rider's most recent
// active delivery, then that delivery's pickup point, then the rider's last
// reported position.
func (s *service) rankCandidates(ctx context.Context, riders []models.User, target *geo.Point) []candidate {
	candidates := make([]candidate, 0, len(riders))
	for _, rider := range riders {
		position := s.riderPosition(ctx, rider)
		if position == nil {
			continue
		}

		distance := 0.0
		if target != nil {
			distance = geo.Distance(*position, *target)
		}
		candidates = append(candidates, candidate{riderID: rider.ID, distanceKM: distance})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distanceKM != candidates[j].distanceKM {
			return candidates[i].distanceKM < candidates[j].distanceKM
		}
		return candidates[i].riderID.String() < candidates[j].riderID.String()
	})
	return candidates
}

func (s *service) riderPosition(ctx context.Context, rider models.User) *geo.Point {
	active, err := s.repo.FindActiveDelivery(ctx, rider.ID)
	if err == nil {
		if point := geo.PointFrom(active.RiderLatitude, active.RiderLongitude); point != nil {
			return point
		}
		if point := geo.PointFrom(active.PickupLatitude, active.PickupLongitude); point != nil {
			return point
		}
	} else if err != gorm.ErrRecordNotFound {
		s.logg.Error(ctx, "active delivery lookup failed", err)
		return nil
	}
	return geo.PointFrom(rider.LastLatitude, rider.LastLongitude)
}

func (s *service) SetAvailability(ctx context.Context, input AvailabilityInput) error {
	if input.RiderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "rider identity missing")
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude must be provided together")
	}
	if point := geo.PointFrom(input.Latitude, input.Longitude); input.Latitude != nil && !point.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}

	err := s.repo.SetRiderAvailability(ctx, input.RiderID, input.Online, input.Latitude, input.Longitude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update availability")
	}
	return nil
}

func (s *service) ListMine(ctx context.Context, params ListParams) (*ListResult, error) {
	rows, next, err := s.repo.ListForRider(ctx, params.RiderID, pagination.Params{
		Limit:  params.Limit,
		Cursor: params.Cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deliveries")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.Encode(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Pickup(ctx context.Context, riderID, deliveryID uuid.UUID) error {
	now := time.Now().UTC()
	ok, err := s.repo.UpdateDeliveryStatus(ctx, deliveryID, riderID,
		[]enums.DeliveryStatus{enums.DeliveryStatusAssigned}, enums.DeliveryStatusPickedUp,
		map[string]any{"picked_up_at": now})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark picked up")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery is not assigned to you or not ready for pickup")
	}
	return nil
}

func (s *service) StartTransit(ctx context.Context, input LocationInput) error {
	if !(geo.Point{Latitude: input.Latitude, Longitude: input.Longitude}).Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}

	ok, err := s.repo.UpdateDeliveryStatus(ctx, input.DeliveryID, input.RiderID,
		[]enums.DeliveryStatus{enums.DeliveryStatusPickedUp}, enums.DeliveryStatusInTransit,
		map[string]any{
			"rider_latitude":  input.Latitude,
			"rider_longitude": input.Longitude,
		})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark in transit")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery must be picked up before transit")
	}
	return nil
}

func (s *service) ReportLocation(ctx context.Context, input LocationInput) error {
	if !(geo.Point{Latitude: input.Latitude, Longitude: input.Longitude}).Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}

	ok, err := s.repo.UpdateRiderLocation(ctx, input.DeliveryID, input.RiderID, input.Latitude, input.Longitude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update location")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no active delivery to report against")
	}
	return nil
}

// Complete finishes the delivery leg: delivery -> delivered, order ->
// DELIVERED, escrow -> released, both parties notified.
func (s *service) Complete(ctx context.Context, riderID, deliveryID uuid.UUID) error {
	delivery, err := s.repo.FindDelivery(ctx, deliveryID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}

	now := time.Now().UTC()
	ok, err := s.repo.UpdateDeliveryStatus(ctx, deliveryID, riderID,
		[]enums.DeliveryStatus{enums.DeliveryStatusInTransit, enums.DeliveryStatusPickedUp},
		enums.DeliveryStatusDelivered,
		map[string]any{"delivered_at": now})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark delivered")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery is not in a deliverable state for you")
	}

	ctx = s.logg.WithOrderID(ctx, delivery.OrderID.String())

	moved, err := s.repo.UpdateOrderStatus(ctx, delivery.OrderID,
		[]enums.OrderStatus{enums.OrderStatusOutForDelivery, enums.OrderStatusPreparing, enums.OrderStatusPaid},
		enums.OrderStatusDelivered,
		map[string]any{"delivered_at": now})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
	}
	if !moved {
		s.logg.Warn(ctx, "delivery completed but order was not in an advanceable state")
	}

	released, err := s.repo.ReleaseEscrow(ctx, delivery.OrderID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release escrow")
	}
	if !released {
		s.logg.Warn(ctx, "escrow was not held at delivery completion")
	}
	s.logg.Info(ctx, "delivery completed and escrow released")

	if s.notifier != nil {
		order, err := s.repo.FindOrder(ctx, delivery.OrderID)
		if err != nil {
			s.logg.Error(ctx, "order lookup for delivered notification failed", err)
			return nil
		}
		shop, err := s.repo.FindShop(ctx, order.ShopID)
		if err != nil {
			s.logg.Error(ctx, "shop lookup for delivered notification failed", err)
			return nil
		}
		if err := s.notifier.NotifyOrderDelivered(ctx, order.BuyerID, shop.OwnerID, order.ID, order.OrderNumber); err != nil {
			s.logg.Error(ctx, "delivered notification failed", err)
		}
	}
	return nil
}
