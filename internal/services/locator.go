package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/retro-storefront/internal/domain"
	"github.com/tbourn/retro-storefront/internal/repo"
)

// LookupKeys are the event fields that can identify an order. A nil field was
// absent (or blank) on the event and is skipped.
type LookupKeys struct {
	// OrderID is the internal id written into metadata at checkout.
	OrderID *string
	// SessionID is the event's own checkout session id.
	SessionID *string
	// MetadataSessionID is a session id carried in payment-intent metadata.
	MetadataSessionID *string
	// BoundOrderID is an order id from metadata that only matches an order
	// already bound to a checkout session. The correlation key is read from
	// that order rather than from the event.
	BoundOrderID *string
}

// Locate resolves keys to exactly one order, trying OrderID, then SessionID,
// then MetadataSessionID, then BoundOrderID. The two session ids are matched
// against the order's correlation key. An id that matches nothing falls
// through to the next path. Returns ErrOrderNotFound when every path misses.
func Locate(ctx context.Context, tx *gorm.DB, keys LookupKeys) (*domain.Order, error) {
	if keys.OrderID != nil {
		o, err := repo.GetOrder(ctx, tx, *keys.OrderID)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}
	for _, sid := range []*string{keys.SessionID, keys.MetadataSessionID} {
		if sid == nil {
			continue
		}
		o, err := repo.GetOrderBySessionID(ctx, tx, *sid)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}
	if keys.BoundOrderID != nil {
		o, err := repo.GetOrder(ctx, tx, *keys.BoundOrderID)
		if err == nil && o.StripeSessionID != nil {
			return o, nil
		}
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrOrderNotFound
}
