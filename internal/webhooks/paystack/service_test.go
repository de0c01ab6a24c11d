package paystackwebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokoplace/sokoplace-backend/internal/payments"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type stubConfirmer struct {
	inputs []payments.ConfirmationInput
	err    error
}

func (s *stubConfirmer) Confirm(ctx context.Context, input payments.ConfirmationInput) error {
	s.inputs = append(s.inputs, input)
	return s.err
}

type stubSettler struct {
	processed []string
	failed    []string
}

func (s *stubSettler) HandleRefundProcessed(ctx context.Context, refundRef string) error {
	s.processed = append(s.processed, refundRef)
	return nil
}

func (s *stubSettler) HandleRefundFailed(ctx context.Context, refundRef string) error {
	s.failed = append(s.failed, refundRef)
	return nil
}

func newWebhookService(t *testing.T, confirmer *stubConfirmer, settler *stubSettler) *Service {
	t.Helper()
	svc, err := NewService(confirmer, settler, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return svc
}

func TestHandleEventChargeSuccess(t *testing.T) {
	confirmer := &stubConfirmer{}
	settler := &stubSettler{}
	svc := newWebhookService(t, confirmer, settler)

	event := &Event{
		Event: EventChargeSuccess,
		Data:  json.RawMessage(`{"id": 12345, "reference": "SOKO-20260801-ABCD1234", "amount": 500000, "status": "success"}`),
	}
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, confirmer.inputs, 1)
	input := confirmer.inputs[0]
	assert.Equal(t, "SOKO-20260801-ABCD1234", input.Reference)
	assert.Equal(t, payments.SourceWebhook, input.Source)
	assert.True(t, input.Amount.Equal(decimal.NewFromInt(5000)), "500,000 kobo is 5,000 naira, got %s", input.Amount)
}

func TestHandleEventChargeNonSuccessIgnored(t *testing.T) {
	confirmer := &stubConfirmer{}
	svc := newWebhookService(t, confirmer, &stubSettler{})

	event := &Event{
		Event: EventChargeSuccess,
		Data:  json.RawMessage(`{"id": 1, "reference": "SOKO-X", "amount": 1000, "status": "failed"}`),
	}
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, confirmer.inputs)
}

func TestHandleEventRefundProcessed(t *testing.T) {
	settler := &stubSettler{}
	svc := newWebhookService(t, &stubConfirmer{}, settler)

	event := &Event{
		Event: EventRefundProcessed,
		Data:  json.RawMessage(`{"id": 77, "reference": "RF_abc123", "status": "processed"}`),
	}
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Equal(t, []string{"RF_abc123"}, settler.processed)
	assert.Empty(t, settler.failed)
}

func TestHandleEventRefundFailedFallsBackToTransactionReference(t *testing.T) {
	settler := &stubSettler{}
	svc := newWebhookService(t, &stubConfirmer{}, settler)

	event := &Event{
		Event: EventRefundFailed,
		Data:  json.RawMessage(`{"id": 78, "transaction_reference": "SOKO-20260801-ABCD1234", "status": "failed"}`),
	}
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Equal(t, []string{"SOKO-20260801-ABCD1234"}, settler.failed)
}

func TestHandleEventUnknownEventIgnored(t *testing.T) {
	confirmer := &stubConfirmer{}
	settler := &stubSettler{}
	svc := newWebhookService(t, confirmer, settler)

	event := &Event{
		Event: "transfer.success",
		Data:  json.RawMessage(`{"id": 9}`),
	}
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, confirmer.inputs)
	assert.Empty(t, settler.processed)
}

func TestHandleEventMissingDataRejected(t *testing.T) {
	svc := newWebhookService(t, &stubConfirmer{}, &stubSettler{})

	err := svc.HandleEvent(context.Background(), &Event{Event: EventChargeSuccess})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDedupeID(t *testing.T) {
	event := &Event{
		Event: EventChargeSuccess,
		Data:  json.RawMessage(`{"id": 12345, "reference": "SOKO-X"}`),
	}
	assert.Equal(t, "charge.success:12345", event.DedupeID())

	event = &Event{
		Event: EventRefundProcessed,
		Data:  json.RawMessage(`{"reference": "RF_abc"}`),
	}
	assert.Equal(t, "refund.processed:RF_abc", event.DedupeID())

	event = &Event{Event: EventChargeSuccess, Data: json.RawMessage(`{}`)}
	assert.Empty(t, event.DedupeID())
}

type fakeEventStore struct {
	keys map[string]bool
}

func (f *fakeEventStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeEventStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func (f *fakeEventStore) WebhookEventKey(eventID string) string {
	return "soko:webhook_event:" + eventID
}

func TestIdempotencyGuardMarksAndReleases(t *testing.T) {
	store := &fakeEventStore{}
	guard, err := NewIdempotencyGuard(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "charge.success:1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "charge.success:1")
	require.NoError(t, err)
	assert.True(t, seen, "second delivery is a duplicate")

	require.NoError(t, guard.Delete(ctx, "charge.success:1"))
	seen, err = guard.CheckAndMark(ctx, "charge.success:1")
	require.NoError(t, err)
	assert.False(t, seen, "released events can be retried")
}
