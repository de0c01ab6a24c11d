package paystackwebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sokoplace/sokoplace-backend/internal/payments"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/paystack"
)

type paymentConfirmer interface {
	Confirm(ctx context.Context, input payments.ConfirmationInput) error
}

type refundSettler interface {
	HandleRefundProcessed(ctx context.Context, refundRef string) error
	HandleRefundFailed(ctx context.Context, refundRef string) error
}

// Service routes verified gateway events into the payment and refund flows.
type Service struct {
	payments paymentConfirmer
	refunds  refundSettler
	logg     *logger.Logger
}

func NewService(confirmer paymentConfirmer, settler refundSettler, logg *logger.Logger) (*Service, error) {
	if confirmer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment confirmer required")
	}
	if settler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund settler required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: confirmer, refunds: settler, logg: logg}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil || len(event.Data) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "event data required")
	}

	switch event.Event {
	case EventChargeSuccess:
		var charge ChargeData
		if err := json.Unmarshal(event.Data, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
		}
		if charge.Status != "success" {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"reference": charge.Reference,
				"status":    charge.Status,
			}), "charge.success event with non-success status")
			return nil
		}
		return s.payments.Confirm(ctx, payments.ConfirmationInput{
			Reference:  charge.Reference,
			GatewayRef: charge.Reference,
			Amount:     paystack.FromKobo(charge.Amount),
			Source:     payments.SourceWebhook,
		})
	case EventRefundProcessed:
		ref, err := refundReference(event.Data)
		if err != nil {
			return err
		}
		return s.refunds.HandleRefundProcessed(ctx, ref)
	case EventRefundFailed:
		ref, err := refundReference(event.Data)
		if err != nil {
			return err
		}
		return s.refunds.HandleRefundFailed(ctx, ref)
	default:
		return nil
	}
}

func refundReference(data json.RawMessage) (string, error) {
	var refund RefundData
	if err := json.Unmarshal(data, &refund); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode refund event")
	}
	ref := strings.TrimSpace(refund.Reference)
	if ref == "" {
		ref = strings.TrimSpace(refund.TransactionReference)
	}
	if ref == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "refund reference missing")
	}
	return ref, nil
}
