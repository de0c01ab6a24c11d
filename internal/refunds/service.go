package refunds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/internal/inventory"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/metrics"
	"github.com/sokoplace/sokoplace-backend/pkg/paystack"
)

const refundStatusProcessed = "processed"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type refundGateway interface {
	CreateRefund(ctx context.Context, req paystack.RefundRequest) (*paystack.Refund, error)
}

type cancelNotifier interface {
	NotifyOrderCancelled(ctx context.Context, buyerID, sellerID, orderID uuid.UUID, orderNumber, reason string) error
	NotifyRefundProcessed(ctx context.Context, buyerID, orderID uuid.UUID, orderNumber string) error
	NotifyRefundFailed(ctx context.Context, operatorID, orderID uuid.UUID, orderNumber string) error
}

// Service orchestrates order cancellation, gateway refunds and refund
// webhooks. Escrow settlement is guarded by the held -> refunded conditional
// update, which makes every path here retry-safe.
type Service interface {
	CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) error
	HandleRefundProcessed(ctx context.Context, refundRef string) error
	HandleRefundFailed(ctx context.Context, refundRef string) error
	AdminRefund(ctx context.Context, input AdminRefundInput) error
	ResolveDispute(ctx context.Context, actor Actor, orderID uuid.UUID, resolution, reason string) error
}

type service struct {
	repo          Repository
	tx            txRunner
	gateway       refundGateway
	inventory     inventory.Service
	notifier      cancelNotifier
	metrics       *metrics.PaymentMetrics
	blockOnRefund bool
	logg          *logger.Logger
}

// NewService wires the refund orchestrator. Gateway, notifier and metrics are
// optional; without a gateway, completed payments cannot be cancelled.
func NewService(
	repo Repository,
	tx txRunner,
	gw refundGateway,
	inv inventory.Service,
	notifier cancelNotifier,
	m *metrics.PaymentMetrics,
	blockOnRefund bool,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:          repo,
		tx:            tx,
		gateway:       gw,
		inventory:     inv,
		notifier:      notifier,
		metrics:       m,
		blockOnRefund: blockOnRefund,
		logg:          logg,
	}, nil
}

func (s *service) CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	reason = strings.TrimSpace(reason)

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if err := authorizeCancel(actor, order, reason); err != nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	needsRefund := order.Payment != nil &&
		order.Payment.Status == enums.PaymentStatusCompleted &&
		order.Payment.PaystackRef != nil

	settled := !needsRefund
	if needsRefund {
		outcome, err := s.requestRefund(ctx, order, reason)
		if err != nil {
			if s.blockOnRefund {
				return err
			}
			s.logg.Error(ctx, "gateway refund failed, cancelling anyway", err)
		} else if outcome == refundStatusProcessed {
			settled = true
		} else if s.blockOnRefund {
			// Cancellation completes when the refund webhook settles.
			s.logg.Info(ctx, "cancellation deferred until refund settles")
			return nil
		}
	}

	if err := s.cancel(ctx, order, actor, reason, settled, needsRefund); err != nil {
		return err
	}

	s.notifyCancelled(ctx, order, reason)
	if settled && needsRefund {
		s.notifyRefunded(ctx, order)
	}
	return nil
}

// requestRefund asks the gateway to return the buyer's money and records the
// outcome on the payment row. Returns the gateway refund status.
func (s *service) requestRefund(ctx context.Context, order *models.Order, reason string) (string, error) {
	if s.gateway == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "refund gateway not configured")
	}

	refund, err := s.gateway.CreateRefund(ctx, paystack.RefundRequest{
		TransactionRef: *order.Payment.PaystackRef,
		Reason:         reason,
	})
	if err != nil {
		s.metrics.IncRefund("failed")
		if stateErr := s.repo.SetRefundState(ctx, order.ID, nil, enums.RefundStatusFailed); stateErr != nil {
			s.logg.Error(ctx, "record refund failure state failed", stateErr)
		}
		s.escalateRefundFailure(ctx, order)
		return "", err
	}

	status := enums.RefundStatusPending
	if refund.Status == refundStatusProcessed {
		status = enums.RefundStatusProcessed
		s.metrics.IncRefund("processed")
	}
	if err := s.repo.SetRefundState(ctx, order.ID, &refund.Reference, status); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund state")
	}
	return refund.Status, nil
}

// cancel flips the order to cancelled and, when the refund already settled
// (or none was needed), finalizes escrow and restores stock in the same
// transaction. An unsettled refund leaves both to the settlement site so
// stock is returned exactly once.
func (s *service) cancel(ctx context.Context, order *models.Order, actor Actor, reason string, settled, needsRefund bool) error {
	allowed := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusPaid,
		enums.OrderStatusPreparing,
		enums.OrderStatusOutForDelivery,
	}
	if actor.Role == enums.UserRoleAdmin {
		allowed = append(allowed, enums.OrderStatusDisputed)
	}

	extra := map[string]any{"cancelled_at": time.Now().UTC()}
	if reason != "" {
		extra["cancel_reason"] = reason
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.UpdateOrderStatus(ctx, order.ID, allowed, enums.OrderStatusCancelled, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
		}

		if settled && needsRefund {
			if _, err := repo.FinalizeRefund(ctx, order.ID, time.Now().UTC()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize refund")
			}
		}
		if settled {
			return s.restoreStock(ctx, tx, order)
		}
		return nil
	})
}

// HandleRefundProcessed settles a deferred refund reported by the gateway.
// The escrow conditional update makes retries no-ops.
func (s *service) HandleRefundProcessed(ctx context.Context, refundRef string) error {
	order, err := s.findByRefundRef(ctx, refundRef)
	if err != nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	var settled bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		won, err := repo.FinalizeRefund(ctx, order.ID, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize refund")
		}
		if !won {
			return nil
		}
		settled = true

		// A deferred cancellation completes here; no rows affected when the
		// order was already cancelled up front.
		if _, err := repo.UpdateOrderStatus(ctx, order.ID,
			[]enums.OrderStatus{
				enums.OrderStatusPending,
				enums.OrderStatusPaid,
				enums.OrderStatusPreparing,
				enums.OrderStatusOutForDelivery,
				enums.OrderStatusDisputed,
			},
			enums.OrderStatusCancelled,
			map[string]any{"cancelled_at": time.Now().UTC()},
		); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order on refund settlement")
		}

		return s.restoreStock(ctx, tx, order)
	})
	if err != nil {
		return err
	}

	if !settled {
		s.logg.Info(ctx, "refund already settled, webhook ignored")
		return nil
	}

	s.metrics.IncRefund("processed")
	s.logg.Info(ctx, "refund settled")
	s.notifyRefunded(ctx, order)
	return nil
}

// HandleRefundFailed records a gateway refund failure and escalates to
// operators. The order stays cancelled; money movement needs a human.
func (s *service) HandleRefundFailed(ctx context.Context, refundRef string) error {
	order, err := s.findByRefundRef(ctx, refundRef)
	if err != nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if err := s.repo.SetRefundState(ctx, order.ID, nil, enums.RefundStatusFailed); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund failure")
	}

	s.metrics.IncRefund("failed")
	s.logg.Warn(ctx, "gateway reported refund failure")
	s.escalateRefundFailure(ctx, order)
	return nil
}

// AdminRefund is the manual escape hatch for refunds the automated path could
// not settle. A partial amount leaves escrow and stock untouched.
func (s *service) AdminRefund(ctx context.Context, input AdminRefundInput) error {
	if s.gateway == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "refund gateway not configured")
	}
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Payment == nil || order.Payment.Status == enums.PaymentStatusPending || order.Payment.PaystackRef == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no refundable payment")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	req := paystack.RefundRequest{
		TransactionRef: *order.Payment.PaystackRef,
		Reason:         input.Reason,
	}
	partial := input.Amount != nil && input.Amount.IsPositive() && input.Amount.LessThan(order.Payment.Amount)
	if input.Amount != nil {
		req.Amount = *input.Amount
	}

	refund, err := s.gateway.CreateRefund(ctx, req)
	if err != nil {
		s.metrics.IncRefund("failed")
		return err
	}

	status := enums.RefundStatusPending
	if refund.Status == refundStatusProcessed {
		status = enums.RefundStatusProcessed
	}
	if err := s.repo.SetRefundState(ctx, order.ID, &refund.Reference, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund state")
	}

	if refund.Status != refundStatusProcessed || partial {
		s.logg.Info(ctx, "manual refund submitted")
		return nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		won, err := repo.FinalizeRefund(ctx, order.ID, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize refund")
		}
		if won && order.Status == enums.OrderStatusCancelled {
			return s.restoreStock(ctx, tx, order)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncRefund("processed")
	s.logg.Info(ctx, "manual refund settled")
	s.notifyRefunded(ctx, order)
	return nil
}

// ResolveDispute closes a dispute either by resuming the paid flow or by
// cancelling with a full refund.
func (s *service) ResolveDispute(ctx context.Context, actor Actor, orderID uuid.UUID, resolution, reason string) error {
	if actor.Role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins resolve disputes")
	}

	switch resolution {
	case ResolutionResume:
		ok, err := s.repo.UpdateOrderStatus(ctx, orderID,
			[]enums.OrderStatus{enums.OrderStatusDisputed}, enums.OrderStatusPaid, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resume order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not disputed")
		}
		ctx = s.logg.WithOrderID(ctx, orderID.String())
		s.logg.Info(ctx, "dispute resolved, order resumed")
		return nil
	case ResolutionCancelAndRefund:
		return s.CancelOrder(ctx, actor, orderID, reason)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("resolution must be %s or %s", ResolutionResume, ResolutionCancelAndRefund))
	}
}

func authorizeCancel(actor Actor, order *models.Order, reason string) error {
	switch actor.Role {
	case enums.UserRoleBuyer:
		if actor.UserID != order.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
	case enums.UserRoleSeller:
		if actor.ShopID == nil || *actor.ShopID != order.ShopID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
		}
		if reason == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "sellers must provide a cancellation reason")
		}
		if order.Status == enums.OrderStatusOutForDelivery {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "sellers cannot cancel once the order is out for delivery")
		}
	case enums.UserRoleAdmin:
		// unrestricted
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot cancel orders")
	}

	switch order.Status {
	case enums.OrderStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already cancelled")
	case enums.OrderStatusDelivered:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "delivered orders cannot be cancelled")
	case enums.OrderStatusDisputed:
		if actor.Role != enums.UserRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "disputed orders are resolved by an admin")
		}
	}
	return nil
}

func (s *service) restoreStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		if _, err := s.inventory.AdjustStock(ctx, tx, inventory.AdjustStockInput{
			PricingUnitID: item.PricingUnitID,
			Delta:         item.Quantity,
			ChangeType:    enums.StockChangeTypeOrderCancelled,
			OrderID:       &order.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) findByRefundRef(ctx context.Context, refundRef string) (*models.Order, error) {
	trimmed := strings.TrimSpace(refundRef)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reference required")
	}

	order, err := s.repo.FindOrderByRefundRef(ctx, trimmed)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment for refund reference")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve refund reference")
	}
	return order, nil
}

func (s *service) notifyCancelled(ctx context.Context, order *models.Order, reason string) {
	if s.notifier == nil {
		return
	}
	shop, err := s.repo.FindShop(ctx, order.ShopID)
	if err != nil {
		s.logg.Error(ctx, "shop lookup for cancellation notification failed", err)
		return
	}
	if err := s.notifier.NotifyOrderCancelled(ctx, order.BuyerID, shop.OwnerID, order.ID, order.OrderNumber, reason); err != nil {
		s.logg.Error(ctx, "cancellation notification failed", err)
	}
}

func (s *service) notifyRefunded(ctx context.Context, order *models.Order) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRefundProcessed(ctx, order.BuyerID, order.ID, order.OrderNumber); err != nil {
		s.logg.Error(ctx, "refund notification failed", err)
	}
}

func (s *service) escalateRefundFailure(ctx context.Context, order *models.Order) {
	if s.notifier == nil {
		return
	}
	operators, err := s.repo.FindOperatorIDs(ctx)
	if err != nil {
		s.logg.Error(ctx, "operator lookup failed", err)
		return
	}
	for _, operatorID := range operators {
		if err := s.notifier.NotifyRefundFailed(ctx, operatorID, order.ID, order.OrderNumber); err != nil {
			s.logg.Error(ctx, "refund failure escalation failed", err)
		}
	}
}
