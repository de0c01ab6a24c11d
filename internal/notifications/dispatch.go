package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/internal/inventory"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Dispatcher persists typed notifications and mirrors them to email
// best-effort. Delivery failures are logged and never block the caller's
// flow; the persisted row is the durable record.
type Dispatcher struct {
	repo   Repository
	mailer mailer
	logg   *logger.Logger
}

// NewDispatcher wires the notification dispatcher. The mailer is optional;
// without it only rows are written.
func NewDispatcher(repo Repository, mail mailer, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{repo: repo, mailer: mail, logg: logg}, nil
}

// NotifyOrderPaid informs buyer and seller that payment was confirmed.
func (d *Dispatcher) NotifyOrderPaid(ctx context.Context, buyerID, sellerID, orderID uuid.UUID, orderNumber string) error {
	buyerErr := d.dispatch(ctx, models.Notification{
		UserID:  buyerID,
		Type:    enums.NotificationTypeOrderPaid,
		Title:   "Payment confirmed",
		Body:    fmt.Sprintf("Your payment for order %s has been confirmed.", orderNumber),
		OrderID: &orderID,
	})
	sellerErr := d.dispatch(ctx, models.Notification{
		UserID:  sellerID,
		Type:    enums.NotificationTypeOrderPaid,
		Title:   "New paid order",
		Body:    fmt.Sprintf("Order %s has been paid. Start preparing it.", orderNumber),
		OrderID: &orderID,
	})
	if buyerErr != nil {
		return buyerErr
	}
	return sellerErr
}

// NotifyOrderCancelled informs both parties of a cancellation.
func (d *Dispatcher) NotifyOrderCancelled(ctx context.Context, buyerID, sellerID, orderID uuid.UUID, orderNumber, reason string) error {
	body := fmt.Sprintf("Order %s was cancelled.", orderNumber)
	if reason != "" {
		body = fmt.Sprintf("Order %s was cancelled: %s", orderNumber, reason)
	}
	buyerErr := d.dispatch(ctx, models.Notification{
		UserID:  buyerID,
		Type:    enums.NotificationTypeOrderCancelled,
		Title:   "Order cancelled",
		Body:    body,
		OrderID: &orderID,
	})
	sellerErr := d.dispatch(ctx, models.Notification{
		UserID:  sellerID,
		Type:    enums.NotificationTypeOrderCancelled,
		Title:   "Order cancelled",
		Body:    body,
		OrderID: &orderID,
	})
	if buyerErr != nil {
		return buyerErr
	}
	return sellerErr
}

// NotifyDeliveryAssigned informs a rider about a new assignment.
func (d *Dispatcher) NotifyDeliveryAssigned(ctx context.Context, riderID, orderID uuid.UUID, orderNumber string) error {
	return d.dispatch(ctx, models.Notification{
		UserID:  riderID,
		Type:    enums.NotificationTypeDeliveryAssigned,
		Title:   "New delivery assigned",
		Body:    fmt.Sprintf("You have been assigned the delivery for order %s.", orderNumber),
		OrderID: &orderID,
	})
}

// NotifyOrderDelivered informs buyer and seller of delivery completion.
func (d *Dispatcher) NotifyOrderDelivered(ctx context.Context, buyerID, sellerID, orderID uuid.UUID, orderNumber string) error {
	buyerErr := d.dispatch(ctx, models.Notification{
		UserID:  buyerID,
		Type:    enums.NotificationTypeOrderDelivered,
		Title:   "Order delivered",
		Body:    fmt.Sprintf("Order %s has been delivered.", orderNumber),
		OrderID: &orderID,
	})
	sellerErr := d.dispatch(ctx, models.Notification{
		UserID:  sellerID,
		Type:    enums.NotificationTypeOrderDelivered,
		Title:   "Order delivered",
		Body:    fmt.Sprintf("Order %s was delivered and escrow has been released.", orderNumber),
		OrderID: &orderID,
	})
	if buyerErr != nil {
		return buyerErr
	}
	return sellerErr
}

// NotifyRefundProcessed informs the buyer their refund settled.
func (d *Dispatcher) NotifyRefundProcessed(ctx context.Context, buyerID, orderID uuid.UUID, orderNumber string) error {
	return d.dispatch(ctx, models.Notification{
		UserID:  buyerID,
		Type:    enums.NotificationTypeRefundProcessed,
		Title:   "Refund processed",
		Body:    fmt.Sprintf("Your refund for order %s has been processed.", orderNumber),
		OrderID: &orderID,
	})
}

// NotifyRefundFailed alerts the given operator account that a gateway refund
// failed and needs manual follow-up.
func (d *Dispatcher) NotifyRefundFailed(ctx context.Context, operatorID, orderID uuid.UUID, orderNumber string) error {
	return d.dispatch(ctx, models.Notification{
		UserID:  operatorID,
		Type:    enums.NotificationTypeRefundFailed,
		Title:   "Refund failed",
		Body:    fmt.Sprintf("The gateway refund for order %s failed and requires manual resolution.", orderNumber),
		OrderID: &orderID,
	})
}

// NotifyDisputeOpened informs the counterparty that a dispute was opened.
func (d *Dispatcher) NotifyDisputeOpened(ctx context.Context, counterpartyID, orderID uuid.UUID, orderNumber string) error {
	return d.dispatch(ctx, models.Notification{
		UserID:  counterpartyID,
		Type:    enums.NotificationTypeDisputeOpened,
		Title:   "Dispute opened",
		Body:    fmt.Sprintf("A dispute has been opened on order %s.", orderNumber),
		OrderID: &orderID,
	})
}

// NotifyLowStock implements inventory.LowStockNotifier.
func (d *Dispatcher) NotifyLowStock(ctx context.Context, info inventory.LowStockContext, stockLeft int) error {
	return d.dispatch(ctx, models.Notification{
		UserID: info.OwnerID,
		Type:   enums.NotificationTypeLowStock,
		Title:  "Low stock",
		Body: fmt.Sprintf("%s (%s) is down to %d in stock at %s.",
			info.ProductName, info.UnitLabel, stockLeft, info.ShopName),
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, notification models.Notification) error {
	if notification.UserID == uuid.Nil {
		return fmt.Errorf("notification recipient required")
	}

	if err := d.repo.Create(ctx, &notification); err != nil {
		d.logg.Error(ctx, "persist notification failed", err)
		return err
	}

	d.sendEmail(ctx, notification)
	return nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, notification models.Notification) {
	if d.mailer == nil {
		return
	}

	to, err := d.repo.FindUserEmail(ctx, notification.UserID)
	if err != nil || to == "" {
		d.logg.Warn(ctx, "notification email skipped: recipient email unavailable")
		return
	}

	body := fmt.Sprintf("<p>%s</p>", notification.Body)
	if err := d.mailer.Send(ctx, to, notification.Title, body); err != nil {
		d.logg.Error(ctx, "notification email failed", err)
	}
}
