package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Payment is the 1:1 escrow record for an order. Status is the single source
// of truth for payment-confirmation idempotency: the completed transition is
// applied with a conditional update against the pending status.
// Invariants: escrow held implies status completed; status refunded implies
// the order is cancelled; escrow never regresses from released/refunded.
type Payment struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status       enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	EscrowStatus enums.EscrowStatus  `gorm:"column:escrow_status;type:text;not null;default:'none'"`
	Amount       decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency     enums.Currency      `gorm:"column:currency;type:text;not null;default:'NGN'"`
	PaystackRef  *string             `gorm:"column:paystack_ref"`
	RefundRef    *string             `gorm:"column:refund_ref"`
	RefundStatus enums.RefundStatus  `gorm:"column:refund_status;type:text;not null;default:'none'"`
	PaidAt       *time.Time          `gorm:"column:paid_at"`
	ReleasedAt   *time.Time          `gorm:"column:released_at"`
	RefundedAt   *time.Time          `gorm:"column:refunded_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
