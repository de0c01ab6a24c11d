package deliveries

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
)

type stubDeliveriesRepo struct {
	delivery         *models.Delivery
	order            *models.Order
	shop             *models.Shop
	candidates       []models.User
	activeDeliveries map[uuid.UUID]*models.Delivery
	bindOK           bool
	boundRider       *uuid.UUID
	statusOK         bool
	statusTargets    []enums.DeliveryStatus
	orderMoves       []enums.OrderStatus
	escrowReleased   int
	availability     map[uuid.UUID]bool
	locationOK       bool
}

func (s *stubDeliveriesRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubDeliveriesRepo) FindDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	if s.delivery == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.delivery, nil
}

func (s *stubDeliveriesRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubDeliveriesRepo) FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	if s.shop == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.shop, nil
}

func (s *stubDeliveriesRepo) FindCandidates(ctx context.Context) ([]models.User, error) {
	return s.candidates, nil
}

func (s *stubDeliveriesRepo) FindActiveDelivery(ctx context.Context, riderID uuid.UUID) (*models.Delivery, error) {
	if active, ok := s.activeDeliveries[riderID]; ok {
		return active, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubDeliveriesRepo) Bind(ctx context.Context, deliveryID, riderID uuid.UUID, assignedAt time.Time) (bool, error) {
	if !s.bindOK {
		return false, nil
	}
	s.boundRider = &riderID
	return true, nil
}

func (s *stubDeliveriesRepo) ListForRider(ctx context.Context, riderID uuid.UUID, params pagination.Params) ([]models.Delivery, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (s *stubDeliveriesRepo) UpdateDeliveryStatus(ctx context.Context, deliveryID, riderID uuid.UUID, allowed []enums.DeliveryStatus, target enums.DeliveryStatus, extra map[string]any) (bool, error) {
	s.statusTargets = append(s.statusTargets, target)
	return s.statusOK, nil
}

func (s *stubDeliveriesRepo) SetRiderAvailability(ctx context.Context, riderID uuid.UUID, online bool, lat, lng *float64) error {
	if s.availability == nil {
		s.availability = map[uuid.UUID]bool{}
	}
	s.availability[riderID] = online
	return nil
}

func (s *stubDeliveriesRepo) UpdateRiderLocation(ctx context.Context, deliveryID, riderID uuid.UUID, lat, lng float64) (bool, error) {
	return s.locationOK, nil
}

func (s *stubDeliveriesRepo) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, allowed []enums.OrderStatus, target enums.OrderStatus, extra map[string]any) (bool, error) {
	s.orderMoves = append(s.orderMoves, target)
	return true, nil
}

func (s *stubDeliveriesRepo) ReleaseEscrow(ctx context.Context, orderID uuid.UUID, releasedAt time.Time) (bool, error) {
	s.escrowReleased++
	return true, nil
}

type recordingRiderNotifier struct {
	assigned  []uuid.UUID
	delivered int
}

func (n *recordingRiderNotifier) NotifyDeliveryAssigned(ctx context.Context, riderID, orderID uuid.UUID, orderNumber string) error {
	n.assigned = append(n.assigned, riderID)
	return nil
}

func (n *recordingRiderNotifier) NotifyOrderDelivered(ctx context.Context, buyerID, sellerID, orderID uuid.UUID, orderNumber string) error {
	n.delivered++
	return nil
}

func f64Ptr(v float64) *float64 { return &v }

func testDeliveriesService(t *testing.T, repo Repository, notifier riderNotifier) Service {
	t.Helper()
	svc, err := NewService(repo, notifier, nil, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return svc
}

func onlineRider(id uuid.UUID, lat, lng *float64) models.User {
	return models.User{
		ID:            id,
		Role:          enums.UserRoleRider,
		RiderStatus:   enums.RiderStatusApproved,
		IsOnline:      true,
		IsActive:      true,
		LastLatitude:  lat,
		LastLongitude: lng,
	}
}

func pendingDelivery() *models.Delivery {
	return &models.Delivery{
		ID:               uuid.New(),
		OrderID:          uuid.New(),
		Status:           enums.DeliveryStatusPending,
		DropoffLatitude:  f64Ptr(6.50),
		DropoffLongitude: f64Ptr(3.35),
	}
}

func TestAutoAssignPicksNearestRider(t *testing.T) {
	near, far := uuid.New(), uuid.New()
	repo := &stubDeliveriesRepo{
		delivery: pendingDelivery(),
		order:    &models.Order{ID: uuid.New(), OrderNumber: "SOKO-9"},
		candidates: []models.User{
			onlineRider(far, f64Ptr(9.05), f64Ptr(7.49)),
			onlineRider(near, f64Ptr(6.52), f64Ptr(3.37)),
		},
		bindOK: true,
	}
	notifier := &recordingRiderNotifier{}
	svc := testDeliveriesService(t, repo, notifier)

	assigned, err := svc.AutoAssign(context.Background(), repo.delivery.ID)
	require.NoError(t, err)
	assert.True(t, assigned)
	require.NotNil(t, repo.boundRider)
	assert.Equal(t, near, *repo.boundRider)
	require.Len(t, notifier.assigned, 1)
	assert.Equal(t, near, notifier.assigned[0])
}

func TestAutoAssignPrefersActiveDeliveryPosition(t *testing.T) {
	busy, idle := uuid.New(), uuid.New()
	repo := &stubDeliveriesRepo{
		delivery: pendingDelivery(),
		order:    &models.Order{ID: uuid.New(), OrderNumber: "SOKO-10"},
		candidates: []models.User{
			// Stale last-known position far away; live position nearby.
			onlineRider(busy, f64Ptr(9.05), f64Ptr(7.49)),
			onlineRider(idle, f64Ptr(6.60), f64Ptr(3.50)),
		},
		activeDeliveries: map[uuid.UUID]*models.Delivery{
			busy: {
				RiderLatitude:  f64Ptr(6.50),
				RiderLongitude: f64Ptr(3.35),
			},
		},
		bindOK: true,
	}
	svc := testDeliveriesService(t, repo, nil)

	assigned, err := svc.AutoAssign(context.Background(), repo.delivery.ID)
	require.NoError(t, err)
	assert.True(t, assigned)
	assert.Equal(t, busy, *repo.boundRider, "live coords beat stale last-known position")
}

func TestAutoAssignTieBreaksOnRiderID(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")
	position := func() (*float64, *float64) { return f64Ptr(6.50), f64Ptr(3.35) }

	latA, lngA := position()
	latB, lngB := position()
	repo := &stubDeliveriesRepo{
		delivery: pendingDelivery(),
		order:    &models.Order{ID: uuid.New(), OrderNumber: "SOKO-11"},
		candidates: []models.User{
			onlineRider(b, latB, lngB),
			onlineRider(a, latA, lngA),
		},
		bindOK: true,
	}
	svc := testDeliveriesService(t, repo, nil)

	assigned, err := svc.AutoAssign(context.Background(), repo.delivery.ID)
	require.NoError(t, err)
	assert.True(t, assigned)
	assert.Equal(t, a, *repo.boundRider, "equal distance resolves to ascending rider id")
}

func TestAutoAssignExcludesRidersWithoutPosition(t *testing.T) {
	noPosition := uuid.New()
	repo := &stubDeliveriesRepo{
		delivery:   pendingDelivery(),
		candidates: []models.User{onlineRider(noPosition, nil, nil)},
		bindOK:     true,
	}
	svc := testDeliveriesService(t, repo, nil)

	assigned, err := svc.AutoAssign(context.Background(), repo.delivery.ID)
	require.NoError(t, err)
	assert.False(t, assigned, "no derivable position means no candidates")
	assert.Nil(t, repo.boundRider)
}

func TestAutoAssignNoCandidates(t *testing.T) {
	repo := &stubDeliveriesRepo{delivery: pendingDelivery()}
	svc := testDeliveriesService(t, repo, nil)

	assigned, err := svc.AutoAssign(context.Background(), repo.delivery.ID)
	require.NoError(t, err)
	assert.False(t, assigned)
}

func TestAutoAssignLostRace(t *testing.T) {
	repo := &stubDeliveriesRepo{
		delivery:   pendingDelivery(),
		candidates: []models.User{onlineRider(uuid.New(), f64Ptr(6.5), f64Ptr(3.4))},
		bindOK:     false,
	}
	svc := testDeliveriesService(t, repo, nil)

	assigned, err := svc.AutoAssign(context.Background(), repo.delivery.ID)
	require.NoError(t, err)
	assert.False(t, assigned)
}

func TestAutoAssignAlreadyAssignedIsIdempotent(t *testing.T) {
	riderID := uuid.New()
	delivery := pendingDelivery()
	delivery.RiderID = &riderID
	delivery.Status = enums.DeliveryStatusAssigned
	repo := &stubDeliveriesRepo{delivery: delivery}
	svc := testDeliveriesService(t, repo, nil)

	assigned, err := svc.AutoAssign(context.Background(), delivery.ID)
	require.NoError(t, err)
	assert.True(t, assigned)
	assert.Nil(t, repo.boundRider, "no rebind")
}

func TestSetAvailabilityValidatesCoordinates(t *testing.T) {
	repo := &stubDeliveriesRepo{}
	svc := testDeliveriesService(t, repo, nil)
	ctx := context.Background()
	riderID := uuid.New()

	require.NoError(t, svc.SetAvailability(ctx, AvailabilityInput{
		RiderID: riderID, Online: true, Latitude: f64Ptr(6.5), Longitude: f64Ptr(3.4),
	}))
	assert.True(t, repo.availability[riderID])

	err := svc.SetAvailability(ctx, AvailabilityInput{RiderID: riderID, Latitude: f64Ptr(6.5)})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code(), "lone latitude rejected")

	err = svc.SetAvailability(ctx, AvailabilityInput{
		RiderID: riderID, Latitude: f64Ptr(120), Longitude: f64Ptr(3.4),
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestPickupGuards(t *testing.T) {
	repo := &stubDeliveriesRepo{statusOK: false}
	svc := testDeliveriesService(t, repo, nil)

	err := svc.Pickup(context.Background(), uuid.New(), uuid.New())
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	repo.statusOK = true
	require.NoError(t, svc.Pickup(context.Background(), uuid.New(), uuid.New()))
	assert.Equal(t, []enums.DeliveryStatus{
		enums.DeliveryStatusPickedUp, enums.DeliveryStatusPickedUp,
	}, repo.statusTargets)
}

func TestStartTransitRejectsBadCoordinates(t *testing.T) {
	svc := testDeliveriesService(t, &stubDeliveriesRepo{statusOK: true}, nil)

	err := svc.StartTransit(context.Background(), LocationInput{
		RiderID: uuid.New(), DeliveryID: uuid.New(), Latitude: 99, Longitude: 200,
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestReportLocationRequiresActiveDelivery(t *testing.T) {
	repo := &stubDeliveriesRepo{locationOK: false}
	svc := testDeliveriesService(t, repo, nil)

	err := svc.ReportLocation(context.Background(), LocationInput{
		RiderID: uuid.New(), DeliveryID: uuid.New(), Latitude: 6.5, Longitude: 3.4,
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCompleteReleasesEscrowAndNotifies(t *testing.T) {
	orderID, shopID := uuid.New(), uuid.New()
	repo := &stubDeliveriesRepo{
		delivery: &models.Delivery{ID: uuid.New(), OrderID: orderID, Status: enums.DeliveryStatusInTransit},
		order:    &models.Order{ID: orderID, ShopID: shopID, BuyerID: uuid.New(), OrderNumber: "SOKO-77"},
		shop:     &models.Shop{ID: shopID, OwnerID: uuid.New()},
		statusOK: true,
	}
	notifier := &recordingRiderNotifier{}
	svc := testDeliveriesService(t, repo, notifier)

	require.NoError(t, svc.Complete(context.Background(), uuid.New(), repo.delivery.ID))

	assert.Equal(t, []enums.DeliveryStatus{enums.DeliveryStatusDelivered}, repo.statusTargets)
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusDelivered}, repo.orderMoves)
	assert.Equal(t, 1, repo.escrowReleased)
	assert.Equal(t, 1, notifier.delivered)
}

func TestCompleteRejectsForeignRider(t *testing.T) {
	repo := &stubDeliveriesRepo{
		delivery: &models.Delivery{ID: uuid.New(), OrderID: uuid.New(), Status: enums.DeliveryStatusInTransit},
		statusOK: false,
	}
	svc := testDeliveriesService(t, repo, nil)

	err := svc.Complete(context.Background(), uuid.New(), repo.delivery.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Zero(t, repo.escrowReleased, "escrow untouched on guard failure")
}
