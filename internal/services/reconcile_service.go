// Package services – ReconcileService
//
// This file implements ReconcileService, which applies verified payment
// provider events to orders and payments exactly once. Each event is checked
// against the processed-event ledger, resolved to one order, translated into
// a status transition, and committed together with its ledger entry by
// TxWriter.
//
// Transitions:
//   - checkout completed:  order PAID with the event's total and currency,
//     correlation key set if empty, payment upserted SUCCEEDED.
//   - payment succeeded:   same PAID transition, amount from amount_received,
//     then amount, then the order's own total.
//   - payment failed:      order FAILED, existing payment marked FAILED; no
//     payment row is created. A failure that matches no order is recorded
//     and acknowledged.
//   - anything else:       acknowledged, not applied, not recorded.
//
// Terminal states are not final: the most recently processed event wins, so
// out-of-order deliveries converge.
//
// Observability: Reconcile is OpenTelemetry-instrumented and reports
// webhook_events_total / webhook_reconcile_duration_seconds.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/retro-storefront/internal/domain"
	"github.com/tbourn/retro-storefront/internal/payments"
	"github.com/tbourn/retro-storefront/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/currency"
)

// Outcome reports what Reconcile did with an event. All outcomes are
// success from the provider's point of view.
type Outcome string

const (
	// OutcomeApplied means the event's transition and ledger entry committed.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the event id was already in the ledger.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means the event type is not reconciled.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnmatched means a payment failure matched no order. Its ledger
	// entry committed without any other write.
	OutcomeUnmatched Outcome = "unmatched"
)

// ReconcileService applies payment events to orders.
type ReconcileService struct {
	DB     *gorm.DB
	Writer *TxWriter

	// Timeout bounds a single reconciliation. Zero keeps the caller's deadline.
	Timeout time.Duration
}

// NewReconcileService wires a service with a Stripe ledger writer.
func NewReconcileService(db *gorm.DB, timeout time.Duration) *ReconcileService {
	return &ReconcileService{
		DB:      db,
		Writer:  NewTxWriter(db),
		Timeout: timeout,
	}
}

// Reconcile applies ev at most once.
//
// Errors:
//   - ErrOrderNotFound: no order matched; nothing was written.
//   - payments.ErrMalformedEvent: the event carried an unusable currency.
//   - ErrTransactionFailed: the write failed or timed out; nothing was written.
func (s *ReconcileService) Reconcile(ctx context.Context, ev payments.Event) (Outcome, error) {
	tr := otel.Tracer("services/ReconcileService")
	ctx, span := tr.Start(ctx, "Reconcile",
		trace.WithAttributes(
			attribute.String("event.id", ev.ID),
			attribute.String("event.type", ev.Type),
		),
	)
	defer span.End()

	start := time.Now()
	typ := metricType(ev)
	out, err := s.reconcile(ctx, ev)
	reconcileLat.WithLabelValues(typ).Observe(time.Since(start).Seconds())

	lg := zerolog.Ctx(ctx).With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()
	switch {
	case err == nil:
		webhookEvents.WithLabelValues(typ, string(out)).Inc()
		span.SetAttributes(attribute.String("reconcile.outcome", string(out)))
		lg.Info().Str("outcome", string(out)).Msg("payment event reconciled")
	case errors.Is(err, ErrOrderNotFound):
		webhookEvents.WithLabelValues(typ, outcomeNotFound).Inc()
		span.SetStatus(codes.Error, err.Error())
		lg.Warn().Msg("payment event matched no order")
	case errors.Is(err, payments.ErrMalformedEvent):
		webhookEvents.WithLabelValues(typ, outcomeMalformed).Inc()
		span.SetStatus(codes.Error, err.Error())
		lg.Warn().Err(err).Msg("payment event rejected")
	default:
		webhookEvents.WithLabelValues(typ, outcomeFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lg.Error().Err(err).Msg("payment event reconciliation failed")
	}
	return out, err
}

func (s *ReconcileService) reconcile(ctx context.Context, ev payments.Event) (Outcome, error) {
	if _, ok := ev.Payload.(payments.Unrecognized); ok || ev.Payload == nil {
		return OutcomeIgnored, nil
	}

	cur, err := eventCurrency(ev.Payload)
	if err != nil {
		return "", err
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	seen, err := repo.HasProcessedEvent(ctx, s.DB, ev.ID)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrTransactionFailed, ctx.Err())
		}
		return "", fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	if seen {
		return OutcomeDuplicate, nil
	}

	out := OutcomeApplied
	err = s.Writer.Commit(ctx, ev.ID, ev.Type, func(tx *gorm.DB) error {
		var aerr error
		out, aerr = s.apply(ctx, tx, ev.Payload, cur)
		return aerr
	})
	if errors.Is(err, ErrDuplicateEvent) {
		// Lost a race with a concurrent delivery of the same event.
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

// apply performs the transition for p inside tx. cur is the normalized event
// currency, nil when the event carried none.
func (s *ReconcileService) apply(ctx context.Context, tx *gorm.DB, p payments.Payload, cur *string) (Outcome, error) {
	switch p := p.(type) {
	case payments.CheckoutCompleted:
		order, err := Locate(ctx, tx, LookupKeys{OrderID: p.Metadata.OrderID, SessionID: &p.SessionID})
		if err != nil {
			return "", err
		}
		amount := order.TotalAmount
		if p.AmountTotal != nil {
			amount = payments.MajorUnits(*p.AmountTotal)
		}
		if err := s.attachSession(ctx, tx, order, p.SessionID); err != nil {
			return "", err
		}
		return OutcomeApplied, markPaid(ctx, tx, order, amount, cur, p.PaymentIntentID)

	case payments.PaymentSucceeded:
		order, err := Locate(ctx, tx, LookupKeys{OrderID: p.Metadata.OrderID, MetadataSessionID: p.Metadata.CheckoutSessionID})
		if err != nil {
			return "", err
		}
		amount := order.TotalAmount
		switch {
		case p.AmountReceived != nil:
			amount = payments.MajorUnits(*p.AmountReceived)
		case p.Amount != nil:
			amount = payments.MajorUnits(*p.Amount)
		}
		return OutcomeApplied, markPaid(ctx, tx, order, amount, cur, &p.IntentID)

	case payments.PaymentFailed:
		// Checkout writes only orderId onto the payment intent, so the
		// correlation key is reached through an order that already holds one.
		order, err := Locate(ctx, tx, LookupKeys{MetadataSessionID: p.Metadata.CheckoutSessionID, BoundOrderID: p.Metadata.OrderID})
		if errors.Is(err, ErrOrderNotFound) {
			return OutcomeUnmatched, nil
		}
		if err != nil {
			return "", err
		}
		if err := repo.UpdateOrderState(ctx, tx, order.ID, repo.OrderState{Status: domain.OrderFailed}); err != nil {
			return "", err
		}
		if _, err := repo.FailPayment(ctx, tx, order.ID); err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	}
	return OutcomeApplied, nil
}

// attachSession sets the correlation key when the order has none. An order
// already bound to a different session keeps its key, and a session id that
// another order already holds is not assigned twice.
func (s *ReconcileService) attachSession(ctx context.Context, tx *gorm.DB, order *domain.Order, sessionID string) error {
	lg := zerolog.Ctx(ctx).With().Str("order_id", order.ID).Str("event_session_id", sessionID).Logger()
	if order.StripeSessionID != nil {
		if *order.StripeSessionID != sessionID {
			lg.Warn().Str("stored_session_id", *order.StripeSessionID).Msg("order already bound to another checkout session")
		}
		return nil
	}
	holder, err := repo.GetOrderBySessionID(ctx, tx, sessionID)
	switch {
	case err == nil && holder.ID != order.ID:
		lg.Warn().Str("holder_order_id", holder.ID).Msg("checkout session already bound to another order")
		return nil
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return err
	}
	_, err = repo.SetOrderSessionID(ctx, tx, order.ID, sessionID)
	return err
}

// markPaid moves order to PAID with amount/currency and upserts its payment
// to SUCCEEDED with the same values.
func markPaid(ctx context.Context, tx *gorm.DB, order *domain.Order, amount decimal.Decimal, cur *string, providerRef *string) error {
	currencyCode := order.Currency
	if cur != nil {
		currencyCode = *cur
	}
	if err := repo.UpdateOrderState(ctx, tx, order.ID, repo.OrderState{
		Status:      domain.OrderPaid,
		Currency:    &currencyCode,
		TotalAmount: &amount,
	}); err != nil {
		return err
	}
	return repo.UpsertPayment(ctx, tx, &domain.Payment{
		OrderID:           order.ID,
		Status:            domain.PaymentSucceeded,
		Provider:          domain.ProviderStripe,
		ProviderPaymentID: providerRef,
		Amount:            amount,
		Currency:          currencyCode,
	})
}

// eventCurrency returns the payload's currency as an upper-case ISO 4217
// code, nil when absent, or ErrMalformedEvent when it is not a known code.
func eventCurrency(p payments.Payload) (*string, error) {
	var raw *string
	switch p := p.(type) {
	case payments.CheckoutCompleted:
		raw = p.Currency
	case payments.PaymentSucceeded:
		raw = p.Currency
	case payments.PaymentFailed:
		raw = p.Currency
	}
	if raw == nil {
		return nil, nil
	}
	code, err := NormalizeCurrency(*raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrMalformedEvent, err)
	}
	return &code, nil
}

// NormalizeCurrency validates an ISO 4217 code and returns it upper-cased.
func NormalizeCurrency(s string) (string, error) {
	u, err := currency.ParseISO(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("currency %q: %w", s, err)
	}
	return u.String(), nil
}

// metricType bounds the "type" label to the reconciled event types.
func metricType(ev payments.Event) string {
	if _, ok := ev.Payload.(payments.Unrecognized); ok || ev.Payload == nil {
		return "other"
	}
	return ev.Type
}
