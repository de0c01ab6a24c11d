package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/geo"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/metrics"
	"github.com/sokoplace/sokoplace-backend/pkg/paystack"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.Authorization, error)
	Verify(ctx context.Context, reference string) (*paystack.Transaction, error)
}

type assigner interface {
	AutoAssign(ctx context.Context, deliveryID uuid.UUID) (bool, error)
}

type paidNotifier interface {
	NotifyOrderPaid(ctx context.Context, buyerID, sellerID, orderID uuid.UUID, orderNumber string) error
}

// Service reconciles gateway payment reports into the escrow ledger and
// initializes hosted-checkout sessions.
type Service interface {
	Initialize(ctx context.Context, input InitializeInput) (*paystack.Authorization, error)
	Verify(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Payment, error)
	Confirm(ctx context.Context, input ConfirmationInput) error
}

type service struct {
	repo     Repository
	tx       txRunner
	gateway  gateway
	assigner assigner
	notifier paidNotifier
	pricing  geo.PricingModel
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

// NewService wires the payments service. Gateway, assigner, notifier and
// metrics are optional; reconciliation itself only needs repo, tx and logger.
func NewService(
	repo Repository,
	tx txRunner,
	gw gateway,
	asg assigner,
	notifier paidNotifier,
	pricing geo.PricingModel,
	m *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		gateway:  gw,
		assigner: asg,
		notifier: notifier,
		pricing:  pricing,
		metrics:  m,
		logg:     logg,
	}, nil
}

func (s *service) Initialize(ctx context.Context, input InitializeInput) (*paystack.Authorization, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	if order.Payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment record")
	}
	if order.Payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is already %s", order.Payment.Status))
	}

	email, err := s.repo.FindUserEmail(ctx, input.BuyerID)
	if err != nil || email == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve buyer email")
	}

	auth, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      order.Payment.Amount,
		Reference:   order.OrderNumber,
		CallbackURL: input.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "payment initialized")
	return auth, nil
}

// Verify is the client-side confirmation channel. It asks the gateway for the
// transaction state and, on success, funnels into the same reconciliation
// path as the webhook.
func (s *service) Verify(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Payment, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}

	transaction, err := s.gateway.Verify(ctx, order.OrderNumber)
	if err != nil {
		return nil, err
	}

	if transaction.Status == "success" {
		if err := s.Confirm(ctx, ConfirmationInput{
			Reference:  order.OrderNumber,
			GatewayRef: transaction.Reference,
			Amount:     transaction.Amount,
			Source:     SourceVerify,
		}); err != nil {
			return nil, err
		}
	}

	refreshed, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if refreshed.Payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return refreshed.Payment, nil
}

// Confirm applies a gateway success report exactly once. The pending->completed
// conditional update is the idempotency gate: losing it means another channel
// already reconciled this payment and the call degrades to a no-op success.
func (s *service) Confirm(ctx context.Context, input ConfirmationInput) error {
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	order, err := s.repo.FindOrderByNumber(ctx, reference)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for reference")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Payment == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment record")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if input.Amount.IsPositive() && !input.Amount.Equal(order.Payment.Amount) {
		s.metrics.IncAmountMismatch()
		fields := s.logg.WithFields(ctx, map[string]any{
			"expected_amount": order.Payment.Amount.String(),
			"reported_amount": input.Amount.String(),
		})
		s.logg.Warn(fields, "gateway amount does not match order total")
	}

	var (
		duplicate bool
		delivery  *models.Delivery
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		won, err := repo.CompletePending(ctx, order.ID, input.GatewayRef, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment")
		}
		if !won {
			duplicate = true
			return nil
		}

		moved, err := repo.UpdateOrderStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusPaid, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !moved {
			s.logg.Warn(ctx, "payment completed but order left pending state already")
		}

		delivery, err = s.ensureDelivery(ctx, repo, order)
		return err
	})
	if err != nil {
		return err
	}

	if duplicate {
		s.metrics.IncDuplicate()
		s.logg.Info(ctx, "duplicate payment confirmation ignored")
		return nil
	}

	s.metrics.IncConfirmation(input.Source)
	s.logg.Info(ctx, "payment confirmed")

	if s.assigner != nil && delivery != nil {
		if _, err := s.assigner.AutoAssign(ctx, delivery.ID); err != nil {
			s.logg.Error(ctx, "auto-assignment failed after payment", err)
		}
	}

	if s.notifier != nil {
		shop, err := s.repo.FindShop(ctx, order.ShopID)
		if err != nil {
			s.logg.Error(ctx, "seller lookup for paid notification failed", err)
		} else if err := s.notifier.NotifyOrderPaid(ctx, order.BuyerID, shop.OwnerID, order.ID, order.OrderNumber); err != nil {
			s.logg.Error(ctx, "paid notification failed", err)
		}
	}
	return nil
}

// ensureDelivery creates the order's delivery exactly once. A leftover row in
// a non-pending state from an earlier aborted run is returned to pending so
// assignment can retry.
func (s *service) ensureDelivery(ctx context.Context, repo Repository, order *models.Order) (*models.Delivery, error) {
	existing, err := repo.FindDelivery(ctx, order.ID)
	if err == nil {
		if existing.Status != enums.DeliveryStatusPending {
			if err := repo.ResetDelivery(ctx, existing.ID); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset delivery")
			}
			existing.Status = enums.DeliveryStatusPending
			existing.RiderID = nil
		}
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}

	delivery := &models.Delivery{
		ID:               uuid.New(),
		OrderID:          order.ID,
		Status:           enums.DeliveryStatusPending,
		DropoffLatitude:  order.Latitude,
		DropoffLongitude: order.Longitude,
	}

	shop, err := repo.FindShop(ctx, order.ShopID)
	if err != nil {
		s.logg.Warn(ctx, "shop lookup failed, delivery created without pickup coordinates")
	} else {
		delivery.PickupLatitude = shop.Latitude
		delivery.PickupLongitude = shop.Longitude
		if quote, ok := s.pricing.QuoteFor(
			geo.PointFrom(shop.Latitude, shop.Longitude),
			geo.PointFrom(order.Latitude, order.Longitude),
		); ok {
			minutes := quote.EstimatedMinutes
			delivery.EstimatedMinutes = &minutes
		}
	}

	if err := repo.CreateDelivery(ctx, delivery); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
	}
	return delivery, nil
}
