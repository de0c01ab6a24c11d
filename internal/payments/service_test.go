package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/geo"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/paystack"
)

type stubPaymentsRepo struct {
	order           *models.Order
	shop            *models.Shop
	email           string
	completeOK      bool
	completeCalls   int
	orderMoves      []enums.OrderStatus
	delivery        *models.Delivery
	createdDelivery *models.Delivery
	resetCalls      int
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPaymentsRepo) FindOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	if s.order == nil || s.order.OrderNumber != number {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubPaymentsRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubPaymentsRepo) FindShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	if s.shop == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.shop, nil
}

func (s *stubPaymentsRepo) FindUserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	return s.email, nil
}

func (s *stubPaymentsRepo) CompletePending(ctx context.Context, orderID uuid.UUID, gatewayRef string, paidAt time.Time) (bool, error) {
	s.completeCalls++
	return s.completeOK, nil
}

func (s *stubPaymentsRepo) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, allowed []enums.OrderStatus, target enums.OrderStatus, extra map[string]any) (bool, error) {
	s.orderMoves = append(s.orderMoves, target)
	return true, nil
}

func (s *stubPaymentsRepo) FindDelivery(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	if s.delivery == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.delivery, nil
}

func (s *stubPaymentsRepo) CreateDelivery(ctx context.Context, delivery *models.Delivery) error {
	s.createdDelivery = delivery
	return nil
}

func (s *stubPaymentsRepo) ResetDelivery(ctx context.Context, deliveryID uuid.UUID) error {
	s.resetCalls++
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubGateway struct {
	auth        *paystack.Authorization
	transaction *paystack.Transaction
	initReq     *paystack.InitializeRequest
}

func (s *stubGateway) Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.Authorization, error) {
	s.initReq = &req
	return s.auth, nil
}

func (s *stubGateway) Verify(ctx context.Context, reference string) (*paystack.Transaction, error) {
	return s.transaction, nil
}

type stubAssigner struct {
	assigned []uuid.UUID
}

func (s *stubAssigner) AutoAssign(ctx context.Context, deliveryID uuid.UUID) (bool, error) {
	s.assigned = append(s.assigned, deliveryID)
	return true, nil
}

type stubPaidNotifier struct {
	calls int
}

func (s *stubPaidNotifier) NotifyOrderPaid(ctx context.Context, buyerID, sellerID, orderID uuid.UUID, orderNumber string) error {
	s.calls++
	return nil
}

func pendingOrder(total int64) (*models.Order, *models.Shop) {
	orderID := uuid.New()
	shopID := uuid.New()
	lat, lng := 6.52, 3.37
	return &models.Order{
			ID:          orderID,
			OrderNumber: "SOKO-20260301-TEST",
			BuyerID:     uuid.New(),
			ShopID:      shopID,
			Status:      enums.OrderStatusPending,
			Latitude:    &lat,
			Longitude:   &lng,
			Payment: &models.Payment{
				ID:      uuid.New(),
				OrderID: orderID,
				Status:  enums.PaymentStatusPending,
				Amount:  decimal.NewFromInt(total),
			},
		}, &models.Shop{
			ID:        shopID,
			OwnerID:   uuid.New(),
			Latitude:  &lat,
			Longitude: &lng,
		}
}

func testPaymentsService(t *testing.T, repo Repository, gw gateway, asg assigner, notifier paidNotifier) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, gw, asg, notifier, geo.DefaultPricing(), nil,
		logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return svc
}

func TestConfirmFirstTimeCompletesEverything(t *testing.T) {
	order, shop := pendingOrder(5750)
	repo := &stubPaymentsRepo{order: order, shop: shop, completeOK: true}
	asg := &stubAssigner{}
	notifier := &stubPaidNotifier{}
	svc := testPaymentsService(t, repo, nil, asg, notifier)

	err := svc.Confirm(context.Background(), ConfirmationInput{
		Reference:  order.OrderNumber,
		GatewayRef: "PSK_abc123",
		Amount:     decimal.NewFromInt(5750),
		Source:     SourceWebhook,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.completeCalls)
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusPaid}, repo.orderMoves)
	require.NotNil(t, repo.createdDelivery)
	assert.Equal(t, order.ID, repo.createdDelivery.OrderID)
	assert.Equal(t, enums.DeliveryStatusPending, repo.createdDelivery.Status)
	require.NotNil(t, repo.createdDelivery.EstimatedMinutes, "eta derived from shop and drop-off")
	require.Len(t, asg.assigned, 1)
	assert.Equal(t, repo.createdDelivery.ID, asg.assigned[0])
	assert.Equal(t, 1, notifier.calls)
}

func TestConfirmDuplicateIsNoOp(t *testing.T) {
	order, shop := pendingOrder(5750)
	repo := &stubPaymentsRepo{order: order, shop: shop, completeOK: false}
	asg := &stubAssigner{}
	notifier := &stubPaidNotifier{}
	svc := testPaymentsService(t, repo, nil, asg, notifier)

	err := svc.Confirm(context.Background(), ConfirmationInput{
		Reference: order.OrderNumber,
		Source:    SourceVerify,
	})
	require.NoError(t, err, "losing the completion race is success")

	assert.Empty(t, repo.orderMoves, "no order transition on duplicate")
	assert.Nil(t, repo.createdDelivery, "no second delivery")
	assert.Empty(t, asg.assigned)
	assert.Zero(t, notifier.calls, "no repeat notifications")
}

func TestConfirmAmountMismatchProceeds(t *testing.T) {
	order, shop := pendingOrder(5750)
	repo := &stubPaymentsRepo{order: order, shop: shop, completeOK: true}
	svc := testPaymentsService(t, repo, nil, nil, nil)

	err := svc.Confirm(context.Background(), ConfirmationInput{
		Reference: order.OrderNumber,
		Amount:    decimal.NewFromInt(100),
		Source:    SourceWebhook,
	})
	require.NoError(t, err, "mismatch warns, never blocks")
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusPaid}, repo.orderMoves)
}

func TestConfirmResetsStaleDelivery(t *testing.T) {
	order, shop := pendingOrder(5750)
	riderID := uuid.New()
	repo := &stubPaymentsRepo{
		order: order, shop: shop, completeOK: true,
		delivery: &models.Delivery{
			ID:      uuid.New(),
			OrderID: order.ID,
			RiderID: &riderID,
			Status:  enums.DeliveryStatusAssigned,
		},
	}
	asg := &stubAssigner{}
	svc := testPaymentsService(t, repo, nil, asg, nil)

	err := svc.Confirm(context.Background(), ConfirmationInput{
		Reference: order.OrderNumber,
		Source:    SourceWebhook,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.resetCalls, "existing delivery returned to pending")
	assert.Nil(t, repo.createdDelivery, "unique order delivery is reused")
	require.Len(t, asg.assigned, 1)
}

func TestConfirmUnknownReference(t *testing.T) {
	repo := &stubPaymentsRepo{}
	svc := testPaymentsService(t, repo, nil, nil, nil)

	err := svc.Confirm(context.Background(), ConfirmationInput{Reference: "SOKO-NOPE"})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestInitializeUsesOrderNumberAsReference(t *testing.T) {
	order, shop := pendingOrder(12000)
	repo := &stubPaymentsRepo{order: order, shop: shop, email: "buyer@example.com"}
	gw := &stubGateway{auth: &paystack.Authorization{AuthorizationURL: "https://checkout.paystack.com/x"}}
	svc := testPaymentsService(t, repo, gw, nil, nil)

	auth, err := svc.Initialize(context.Background(), InitializeInput{
		BuyerID: order.BuyerID,
		OrderID: order.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/x", auth.AuthorizationURL)

	require.NotNil(t, gw.initReq)
	assert.Equal(t, order.OrderNumber, gw.initReq.Reference)
	assert.Equal(t, "buyer@example.com", gw.initReq.Email)
	assert.True(t, gw.initReq.Amount.Equal(decimal.NewFromInt(12000)))
}

func TestInitializeRejectsCompletedPayment(t *testing.T) {
	order, shop := pendingOrder(12000)
	order.Payment.Status = enums.PaymentStatusCompleted
	repo := &stubPaymentsRepo{order: order, shop: shop, email: "buyer@example.com"}
	svc := testPaymentsService(t, repo, &stubGateway{}, nil, nil)

	_, err := svc.Initialize(context.Background(), InitializeInput{
		BuyerID: order.BuyerID,
		OrderID: order.ID,
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestInitializeRejectsForeignBuyer(t *testing.T) {
	order, shop := pendingOrder(12000)
	repo := &stubPaymentsRepo{order: order, shop: shop, email: "buyer@example.com"}
	svc := testPaymentsService(t, repo, &stubGateway{}, nil, nil)

	_, err := svc.Initialize(context.Background(), InitializeInput{
		BuyerID: uuid.New(),
		OrderID: order.ID,
	})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestVerifySuccessConfirms(t *testing.T) {
	order, shop := pendingOrder(5750)
	repo := &stubPaymentsRepo{order: order, shop: shop, completeOK: true}
	gw := &stubGateway{transaction: &paystack.Transaction{
		Reference: "PSK_verify",
		Status:    "success",
		Amount:    decimal.NewFromInt(5750),
	}}
	svc := testPaymentsService(t, repo, gw, nil, nil)

	payment, err := svc.Verify(context.Background(), order.BuyerID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, 1, repo.completeCalls, "success verify feeds reconciliation")
}

func TestVerifyNonSuccessLeavesPaymentAlone(t *testing.T) {
	order, shop := pendingOrder(5750)
	repo := &stubPaymentsRepo{order: order, shop: shop}
	gw := &stubGateway{transaction: &paystack.Transaction{Status: "abandoned"}}
	svc := testPaymentsService(t, repo, gw, nil, nil)

	payment, err := svc.Verify(context.Background(), order.BuyerID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.Zero(t, repo.completeCalls)
}
