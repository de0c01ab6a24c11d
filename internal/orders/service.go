package orders

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/internal/inventory"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/geo"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
)

const orderNumberAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type disputeNotifier interface {
	NotifyDisputeOpened(ctx context.Context, counterpartyID, orderID uuid.UUID, orderNumber string) error
}

// Service defines buyer/seller order operations. Payment, delivery and
// cancellation transitions live in their owning services; this one owns
// creation, reads, seller fulfilment transitions and disputes.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	SellerUpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus) error
	OpenDispute(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) error
}

type service struct {
	repo       Repository
	tx         txRunner
	inventory  inventory.Service
	pricing    geo.PricingModel
	feePercent decimal.Decimal
	notifier   disputeNotifier
	logg       *logger.Logger
}

// NewService builds the orders service.
func NewService(
	repo Repository,
	tx txRunner,
	inv inventory.Service,
	pricing geo.PricingModel,
	platformFeePercent float64,
	notifier disputeNotifier,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
		repo:       repo,
		tx:         tx,
		inventory:  inv,
		pricing:    pricing,
		feePercent: decimal.NewFromFloat(platformFeePercent),
		notifier:   notifier,
		logg:       logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}

	quantities := make(map[uuid.UUID]int, len(input.Items))
	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.PricingUnitID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "pricing unit id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if _, seen := quantities[item.PricingUnitID]; seen {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate pricing unit in items")
		}
		quantities[item.PricingUnitID] = item.Quantity
		ids = append(ids, item.PricingUnitID)
	}

	details, err := s.repo.FindPricingUnitDetails(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pricing units")
	}
	if len(details) != len(ids) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more pricing units not found")
	}

	shopID := details[0].ShopID
	for _, detail := range details {
		if detail.ShopID != shopID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "all items must belong to the same shop")
		}
		qty := quantities[detail.Unit.ID]
		if detail.Unit.Stock != nil && *detail.Unit.Stock < qty {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("insufficient stock for %q", detail.Unit.Label))
		}
	}

	shop, err := s.repo.FindShop(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}

	items, subtotal := snapshotItems(details, quantities)
	totals := s.computeTotals(subtotal, shop, input.Latitude, input.Longitude)

	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: newOrderNumber(),
		BuyerID:     input.BuyerID,
		ShopID:      shopID,
		Status:      enums.OrderStatusPending,
		Currency:    enums.CurrencyNGN,
		Subtotal:    totals.Subtotal,
		PlatformFee: totals.PlatformFee,
		DeliveryFee: totals.DeliveryFee,
		Total:       totals.Total,
		Address:     strings.TrimSpace(input.Address),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		for _, item := range items {
			if _, err := s.inventory.AdjustStock(ctx, tx, inventory.AdjustStockInput{
				PricingUnitID: item.PricingUnitID,
				Delta:         -item.Quantity,
				ChangeType:    enums.StockChangeTypeOrderPlaced,
				OrderID:       &order.ID,
			}); err != nil {
				return err
			}
		}

		payment := &models.Payment{
			ID:           uuid.New(),
			OrderID:      order.ID,
			Status:       enums.PaymentStatusPending,
			EscrowStatus: enums.EscrowStatusNone,
			RefundStatus: enums.RefundStatusNone,
			Amount:       totals.Total,
			Currency:     enums.CurrencyNGN,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		order.Items = items
		order.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order created")
	return order, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if err := authorizeRead(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	filter := ListFilter{Status: params.Status}

	switch params.Actor.Role {
	case enums.UserRoleBuyer:
		buyerID := params.Actor.UserID
		filter.BuyerID = &buyerID
	case enums.UserRoleSeller:
		if params.Actor.ShopID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing")
		}
		filter.ShopID = params.Actor.ShopID
	case enums.UserRoleAdmin:
		// unrestricted
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list orders")
	}

	rows, next, err := s.repo.List(ctx, filter, pagination.Params{Limit: params.Limit, Cursor: params.Cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.Encode(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// SellerUpdateStatus advances the fulfilment leg the seller owns:
// paid -> preparing -> out_for_delivery. Repeating the current status is an
// idempotent no-op.
func (s *service) SellerUpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var allowed []enums.OrderStatus
	switch target {
	case enums.OrderStatusPreparing:
		allowed = []enums.OrderStatus{enums.OrderStatusPaid}
	case enums.OrderStatusOutForDelivery:
		allowed = []enums.OrderStatus{enums.OrderStatusPreparing}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "target status must be preparing or out_for_delivery")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if actor.Role != enums.UserRoleSeller || actor.ShopID == nil || *actor.ShopID != order.ShopID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
	}
	if order.Status == target {
		return nil
	}

	ok, err := s.repo.UpdateStatus(ctx, orderID, allowed, target, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order cannot move to %s from %s", target, order.Status))
	}

	ctx = s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(ctx, fmt.Sprintf("order moved to %s", target))
	return nil
}

// OpenDispute freezes the order in disputed until an admin resolves it.
// Reachable from any non-terminal state.
func (s *service) OpenDispute(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	isBuyer := actor.Role == enums.UserRoleBuyer && actor.UserID == order.BuyerID
	isSeller := actor.Role == enums.UserRoleSeller && actor.ShopID != nil && *actor.ShopID == order.ShopID
	if !isBuyer && !isSeller {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer or seller can open a dispute")
	}

	if order.Status == enums.OrderStatusDisputed {
		return nil
	}
	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "completed orders cannot be disputed")
	}

	nonTerminal := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusPaid,
		enums.OrderStatusPreparing,
		enums.OrderStatusOutForDelivery,
	}
	ok, err := s.repo.UpdateStatus(ctx, orderID, nonTerminal, enums.OrderStatusDisputed, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order disputed")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be disputed")
	}

	ctx = s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Warn(ctx, "dispute opened")

	if s.notifier != nil {
		counterparty := order.BuyerID
		if isBuyer {
			shop, err := s.repo.FindShop(ctx, order.ShopID)
			if err != nil {
				s.logg.Error(ctx, "dispute counterparty lookup failed", err)
				return nil
			}
			counterparty = shop.OwnerID
		}
		if err := s.notifier.NotifyDisputeOpened(ctx, counterparty, order.ID, order.OrderNumber); err != nil {
			s.logg.Error(ctx, "dispute notification failed", err)
		}
	}
	return nil
}

func authorizeRead(actor Actor, order *models.Order) error {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleBuyer:
		if actor.UserID == order.BuyerID {
			return nil
		}
	case enums.UserRoleSeller:
		if actor.ShopID != nil && *actor.ShopID == order.ShopID {
			return nil
		}
	case enums.UserRoleRider:
		if order.Delivery != nil && order.Delivery.RiderID != nil && *order.Delivery.RiderID == actor.UserID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this order")
}

func snapshotItems(details []PricingUnitDetail, quantities map[uuid.UUID]int) ([]models.OrderItem, decimal.Decimal) {
	items := make([]models.OrderItem, 0, len(details))
	subtotal := decimal.Zero
	for _, detail := range details {
		qty := quantities[detail.Unit.ID]
		lineTotal := detail.Unit.Price.Mul(decimal.NewFromInt(int64(qty)))
		items = append(items, models.OrderItem{
			ID:            uuid.New(),
			PricingUnitID: detail.Unit.ID,
			ProductName:   detail.ProductName,
			UnitLabel:     detail.Unit.Label,
			UnitPrice:     detail.Unit.Price,
			Quantity:      qty,
			LineTotal:     lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}
	return items, subtotal
}

// computeTotals derives the monetary breakdown. Without a resolvable
// shop/drop-off pair the delivery fee falls back to the model minimum.
func (s *service) computeTotals(subtotal decimal.Decimal, shop *models.Shop, lat, lng *float64) Totals {
	platformFee := subtotal.Mul(s.feePercent).Div(decimal.NewFromInt(100)).Round(2)

	deliveryFee := s.pricing.MinFee
	if quote, ok := s.pricing.QuoteFor(geo.PointFrom(shop.Latitude, shop.Longitude), geo.PointFrom(lat, lng)); ok {
		deliveryFee = quote.Fee
	}

	return Totals{
		Subtotal:    subtotal,
		PlatformFee: platformFee,
		DeliveryFee: deliveryFee,
		Total:       subtotal.Add(platformFee).Add(deliveryFee),
	}
}

func newOrderNumber() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("SOKO-%d", time.Now().UnixNano())
	}
	code := make([]byte, 8)
	for i, b := range buf {
		code[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("SOKO-%s-%s", time.Now().UTC().Format("20060102"), string(code))
}
