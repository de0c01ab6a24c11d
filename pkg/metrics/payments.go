package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics counts payment-reconciliation and delivery-assignment events.
type PaymentMetrics struct {
	confirmations    *prometheus.CounterVec
	duplicateEvents  prometheus.Counter
	amountMismatches prometheus.Counter
	refunds          *prometheus.CounterVec
	assignments      *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmations_total",
		Help: "Payment confirmations by source channel (webhook or client verify).",
	}, []string{"source"})
	duplicateEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_duplicate_confirmations_total",
		Help: "Confirmations that arrived after the payment was already completed.",
	})
	amountMismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_amount_mismatches_total",
		Help: "Gateway-confirmed amounts that did not match the order total.",
	})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_refunds_total",
		Help: "Refund outcomes by terminal status.",
	}, []string{"status"})
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_assignment_attempts_total",
		Help: "Rider auto-assignment attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(confirmations, duplicateEvents, amountMismatches, refunds, assignments)
	return &PaymentMetrics{
		confirmations:    confirmations,
		duplicateEvents:  duplicateEvents,
		amountMismatches: amountMismatches,
		refunds:          refunds,
		assignments:      assignments,
	}
}

// IncConfirmation counts a successful confirmation from the named source.
func (m *PaymentMetrics) IncConfirmation(source string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncDuplicate counts a confirmation that lost the completion race.
func (m *PaymentMetrics) IncDuplicate() {
	if m == nil || m.duplicateEvents == nil {
		return
	}
	m.duplicateEvents.Inc()
}

// IncAmountMismatch counts a gateway amount that disagreed with the order total.
func (m *PaymentMetrics) IncAmountMismatch() {
	if m == nil || m.amountMismatches == nil {
		return
	}
	m.amountMismatches.Inc()
}

// IncRefund counts a refund reaching the named terminal status.
func (m *PaymentMetrics) IncRefund(status string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncAssignment counts an auto-assignment attempt outcome
// (assigned, no_candidates, lost_race).
func (m *PaymentMetrics) IncAssignment(outcome string) {
	if m == nil || m.assignments == nil {
		return
	}
	m.assignments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
