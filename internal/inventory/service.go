package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

const lowStockAlertTTL = time.Hour

type alertLimiter interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	LowStockAlertKey(productID string) string
}

// LowStockNotifier alerts a shop owner that a unit dropped to or below its
// threshold. Implementations must be best-effort; errors are logged here.
type LowStockNotifier interface {
	NotifyLowStock(ctx context.Context, info LowStockContext, stockLeft int) error
}

// Service is the single writer for pricing-unit stock. All stock mutations go
// through AdjustStock so the audit trail stays complete.
type Service interface {
	AdjustStock(ctx context.Context, tx *gorm.DB, input AdjustStockInput) (*Adjustment, error)
}

type service struct {
	repo     Repository
	limiter  alertLimiter
	notifier LowStockNotifier
	logg     *logger.Logger
}

// NewService builds the inventory ledger. The limiter and notifier are
// optional; without them low-stock alerts are skipped.
func NewService(repo Repository, limiter alertLimiter, notifier LowStockNotifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		limiter:  limiter,
		notifier: notifier,
		logg:     logg,
	}, nil
}

func (s *service) AdjustStock(ctx context.Context, tx *gorm.DB, input AdjustStockInput) (*Adjustment, error) {
	if input.PricingUnitID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pricing unit id required")
	}
	if !input.ChangeType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid stock change type")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}

	repo := s.repo.WithTx(tx)

	unit, err := repo.FindPricingUnit(ctx, input.PricingUnitID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pricing unit not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pricing unit")
	}

	entry := &models.StockHistory{
		PricingUnitID: unit.ID,
		OrderID:       input.OrderID,
		ChangeType:    input.ChangeType,
		Delta:         input.Delta,
		Notes:         input.Notes,
	}

	// Untracked units keep the audit trail without a numeric balance.
	if unit.Stock == nil {
		if err := repo.CreateStockHistory(ctx, entry); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write stock history")
		}
		return &Adjustment{PricingUnitID: unit.ID, Tracked: false}, nil
	}

	previous := *unit.Stock
	next := previous + input.Delta
	if next < 0 {
		next = 0
	}

	if err := repo.UpdateStock(ctx, unit.ID, next); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock")
	}

	entry.PreviousStock = &previous
	entry.NewStock = &next
	if err := repo.CreateStockHistory(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write stock history")
	}

	if input.Delta < 0 && next <= unit.LowStockThreshold {
		s.maybeAlertLowStock(ctx, unit.ID, next)
	}

	return &Adjustment{
		PricingUnitID: unit.ID,
		Previous:      &previous,
		New:           &next,
		Tracked:       true,
	}, nil
}

// maybeAlertLowStock is best-effort: a failed alert never fails the
// adjustment. Alerts are debounced per product via redis SetNX.
func (s *service) maybeAlertLowStock(ctx context.Context, unitID uuid.UUID, stockLeft int) {
	if s.limiter == nil || s.notifier == nil {
		return
	}

	info, err := s.repo.FindLowStockContext(ctx, unitID)
	if err != nil {
		s.logg.Error(ctx, "low stock context lookup failed", err)
		return
	}

	ok, err := s.limiter.SetNX(ctx, s.limiter.LowStockAlertKey(info.ProductID.String()), "1", lowStockAlertTTL)
	if err != nil {
		s.logg.Error(ctx, "low stock debounce failed", err)
		return
	}
	if !ok {
		return
	}

	if err := s.notifier.NotifyLowStock(ctx, *info, stockLeft); err != nil {
		s.logg.Error(ctx, "low stock notification failed", err)
	}
}
