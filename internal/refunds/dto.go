package refunds

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Actor identifies the caller requesting a cancellation or refund.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
	ShopID *uuid.UUID
}

// Dispute resolutions an admin can apply.
const (
	ResolutionResume          = "resume"
	ResolutionCancelAndRefund = "cancel_and_refund"
)

// AdminRefundInput triggers a manual gateway refund. A nil Amount refunds the
// full transaction.
type AdminRefundInput struct {
	AdminID uuid.UUID
	OrderID uuid.UUID
	Amount  *decimal.Decimal
	Reason  string
}
