package paystackwebhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Webhook event names the platform reacts to. Everything else is
// acknowledged and dropped.
const (
	EventChargeSuccess   = "charge.success"
	EventRefundProcessed = "refund.processed"
	EventRefundFailed    = "refund.failed"
)

// Event is the outer webhook envelope.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChargeData is the subset of the charge payload reconciliation needs.
// Amount is in kobo.
type ChargeData struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	Channel   string `json:"channel"`
	PaidAt    string `json:"paid_at"`
}

// RefundData is the subset of the refund payload settlement needs.
type RefundData struct {
	ID                   int64  `json:"id"`
	Reference            string `json:"reference"`
	TransactionReference string `json:"transaction_reference"`
	Amount               int64  `json:"amount"`
	Status               string `json:"status"`
}

// DedupeID builds a stable identifier for the idempotency guard. Paystack
// retries deliver the same payload, so event name plus payload id is stable.
func (e *Event) DedupeID() string {
	var probe struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
	}
	_ = json.Unmarshal(e.Data, &probe)

	if probe.ID != 0 {
		return fmt.Sprintf("%s:%d", e.Event, probe.ID)
	}
	if ref := strings.TrimSpace(probe.Reference); ref != "" {
		return e.Event + ":" + ref
	}
	return ""
}
