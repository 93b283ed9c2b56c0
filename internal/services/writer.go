package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/retro-storefront/internal/domain"
	"github.com/tbourn/retro-storefront/internal/payments"
	"github.com/tbourn/retro-storefront/internal/repo"
)

// TxWriter commits an event's order/payment mutation and its ledger entry in
// one database transaction. Either both are durable or neither is.
type TxWriter struct {
	DB       *gorm.DB
	Provider string
}

// NewTxWriter returns a writer that records ledger entries for Stripe.
func NewTxWriter(db *gorm.DB) *TxWriter {
	return &TxWriter{DB: db, Provider: domain.ProviderStripe}
}

// Commit runs apply and then inserts the ledger entry for eventID, inside a
// single transaction.
//
// Errors:
//   - ErrDuplicateEvent when the ledger already holds eventID (the whole
//     transaction, including apply, is rolled back).
//   - ErrOrderNotFound and payments.ErrMalformedEvent from apply, unwrapped.
//   - ErrTransactionFailed for everything else, wrapping the context error
//     when the deadline expired or the request was cancelled.
func (w *TxWriter) Commit(ctx context.Context, eventID, eventType string, apply func(tx *gorm.DB) error) error {
	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := apply(tx); err != nil {
			return err
		}
		if err := repo.CreateProcessedEvent(ctx, tx, w.Provider, eventID, eventType); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateEvent
			}
			return err
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateEvent),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, payments.ErrMalformedEvent):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrTransactionFailed, ctx.Err())
	default:
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
}
