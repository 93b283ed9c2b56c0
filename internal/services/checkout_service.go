// Package services – CheckoutService
//
// This file implements CheckoutService, which turns a cart into a PENDING
// order and a hosted provider checkout session. The order id is handed to the
// provider as metadata and the session id is stored as the order's
// correlation key, which is what later lets ReconcileService find the order.
//
// Requests may carry an idempotency key; a retried request with the same key
// returns the original order and session instead of opening a second one.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
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
	"go.opentelemetry.io/otel/trace"
)

// MaxQuantity caps a single line's quantity.
const MaxQuantity = 99

// SessionCreator opens provider checkout sessions. *payments.Gateway
// satisfies it.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req payments.SessionRequest) (payments.Session, error)
}

// CheckoutItem is one requested cart line.
type CheckoutItem struct {
	ProductID string
	Quantity  int
}

// CheckoutRequest is a validated-at-transport cart submission.
type CheckoutRequest struct {
	UserID         string
	Items          []CheckoutItem
	CustomerEmail  *string
	IdempotencyKey string
}

// CheckoutResult is the created (or replayed) order and its session.
type CheckoutResult struct {
	Order     *domain.Order
	SessionID string
	URL       string
	Replayed  bool
}

// CheckoutService creates orders and provider sessions.
type CheckoutService struct {
	DB       *gorm.DB
	Sessions SessionCreator

	// Currency is the ISO code new orders are priced in.
	Currency string
	// IdempotencyTTL is how long a checkout Idempotency-Key can be replayed.
	IdempotencyTTL time.Duration
}

// NewCheckoutService constructs a CheckoutService with defaults applied.
func NewCheckoutService(db *gorm.DB, sessions SessionCreator, currency string, ttl time.Duration) *CheckoutService {
	if currency == "" {
		currency = "USD"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CheckoutService{
		DB:             db,
		Sessions:       sessions,
		Currency:       strings.ToUpper(currency),
		IdempotencyTTL: ttl,
	}
}

// Create validates the cart against the catalog, persists a PENDING order
// with item snapshots, opens the provider session and records it on the order.
func (s *CheckoutService) Create(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	tr := otel.Tracer("services/CheckoutService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.Int("cart.lines", len(req.Items)),
		),
	)
	defer span.End()

	if req.IdempotencyKey != "" {
		res, err := s.replay(ctx, req.UserID, req.IdempotencyKey)
		switch {
		case err == nil:
			return res, nil
		case !errors.Is(err, repo.ErrNotFound):
			return nil, err
		}
	}

	lines, err := mergeItems(req.Items)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := repo.GetProductsByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	if len(products) != len(lines) {
		return nil, ErrInvalidProduct
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	order := &domain.Order{
		Status:        domain.OrderPending,
		Currency:      s.Currency,
		CustomerEmail: req.CustomerEmail,
	}
	if req.UserID != "" {
		uid := req.UserID
		order.UserID = &uid
	}
	sreq := payments.SessionRequest{Currency: s.Currency, CustomerEmail: req.CustomerEmail}
	total := decimal.Zero
	for _, l := range lines {
		p := byID[l.ProductID]
		qty := decimal.NewFromInt(int64(l.Quantity))
		total = total.Add(p.Price.Mul(qty))
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			ImageURL:    p.ImageURL,
			UnitPrice:   p.Price,
			Quantity:    l.Quantity,
		})
		sreq.Items = append(sreq.Items, payments.LineItem{
			Name:        p.Name,
			Description: p.Description,
			ImageURL:    p.ImageURL,
			UnitPrice:   p.Price,
			Quantity:    int64(l.Quantity),
		})
	}
	order.TotalAmount = total

	if err := repo.CreateOrder(ctx, s.DB, order); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	sreq.OrderID = order.ID
	sess, err := s.Sessions.CreateCheckoutSession(ctx, sreq)
	if err != nil {
		if uerr := repo.UpdateOrderState(ctx, s.DB, order.ID, repo.OrderState{Status: domain.OrderFailed}); uerr != nil {
			zerolog.Ctx(ctx).Error().Err(uerr).Str("order_id", order.ID).Msg("mark order failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	if err := repo.AttachCheckoutSession(ctx, s.DB, order.ID, sess.ID, sess.URL); err != nil {
		return nil, err
	}
	order.StripeSessionID = &sess.ID
	order.CheckoutURL = &sess.URL

	if req.IdempotencyKey != "" {
		if _, err := repo.CreateIdempotency(ctx, s.DB, req.UserID, req.IdempotencyKey, order.ID, http.StatusCreated, s.IdempotencyTTL); err != nil {
			// A concurrent request with the same key won; both orders stay valid.
			zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID).Msg("store checkout idempotency key")
		}
	}

	return &CheckoutResult{Order: order, SessionID: sess.ID, URL: sess.URL}, nil
}

// replay returns the order stored under (userID, key), or repo.ErrNotFound.
func (s *CheckoutService) replay(ctx context.Context, userID, key string) (*CheckoutResult, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, key, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	order, err := repo.GetOrder(ctx, s.DB, rec.OrderID)
	if err != nil {
		return nil, err
	}
	res := &CheckoutResult{Order: order, Replayed: true}
	if order.StripeSessionID != nil {
		res.SessionID = *order.StripeSessionID
	}
	if order.CheckoutURL != nil {
		res.URL = *order.CheckoutURL
	}
	return res, nil
}

// mergeItems validates quantities and folds repeated product ids into one
// line, keeping first-seen order.
func mergeItems(items []CheckoutItem) ([]CheckoutItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	idx := make(map[string]int, len(items))
	out := make([]CheckoutItem, 0, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return nil, ErrInvalidProduct
		}
		if it.Quantity < 1 || it.Quantity > MaxQuantity {
			return nil, ErrInvalidQuantity
		}
		if i, ok := idx[id]; ok {
			out[i].Quantity += it.Quantity
			if out[i].Quantity > MaxQuantity {
				return nil, ErrInvalidQuantity
			}
			continue
		}
		idx[id] = len(out)
		out = append(out, CheckoutItem{ProductID: id, Quantity: it.Quantity})
	}
	return out, nil
}
