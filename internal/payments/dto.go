package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Confirmation sources. Webhook and client-side verify race against each
// other; the conditional completion update makes the race harmless.
const (
	SourceWebhook = "webhook"
	SourceVerify  = "verify"
)

// ConfirmationInput carries a gateway success report into reconciliation.
// Reference is the order number used as the gateway transaction reference.
type ConfirmationInput struct {
	Reference  string
	GatewayRef string
	Amount     decimal.Decimal
	Source     string
}

// InitializeInput starts a hosted-checkout session for the buyer's own order.
type InitializeInput struct {
	BuyerID     uuid.UUID
	OrderID     uuid.UUID
	CallbackURL string
}
