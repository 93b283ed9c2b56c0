package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// DefaultTolerance is the maximum accepted age of a signed delivery.
const DefaultTolerance = webhook.DefaultTolerance

// Config holds everything the gateway needs. It is built once at process
// start from config.StripeConfig.
type Config struct {
	SecretKey     string
	WebhookSecret string
	Tolerance     time.Duration
	SuccessURL    string
	CancelURL     string

	// APIURL overrides the Stripe API base (stripe-mock, tests).
	APIURL string
}

// Gateway is the Stripe-backed event source and checkout client.
type Gateway struct {
	api        *client.API
	secret     string
	tolerance  time.Duration
	successURL string
	cancelURL  string
}

// LineItem is one priced line of a checkout session.
type LineItem struct {
	Name        string
	Description string
	ImageURL    *string
	UnitPrice   decimal.Decimal // major units
	Quantity    int64
}

// SessionRequest describes the checkout session to open for an order.
type SessionRequest struct {
	OrderID       string
	Currency      string
	CustomerEmail *string
	Items         []LineItem
}

// Session is the provider's hosted checkout session.
type Session struct {
	ID  string
	URL string
}

// NewGateway builds a Gateway with its own API client; no package-level
// Stripe state is touched.
func NewGateway(cfg Config) *Gateway {
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	var backends *stripe.Backends
	if cfg.APIURL != "" {
		backends = &stripe.Backends{
			API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL:               stripe.String(cfg.APIURL),
				MaxNetworkRetries: stripe.Int64(0),
			}),
		}
	}

	return &Gateway{
		api:        client.New(cfg.SecretKey, backends),
		secret:     cfg.WebhookSecret,
		tolerance:  tol,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

// Enabled reports whether webhook deliveries can be verified.
func (g *Gateway) Enabled() bool { return g != nil && g.secret != "" }

// ConstructEvent verifies sigHeader against payload and only then decodes it.
func (g *Gateway) ConstructEvent(payload []byte, sigHeader string) (Event, error) {
	if !g.Enabled() {
		return Event{}, ErrNotConfigured
	}
	if strings.TrimSpace(sigHeader) == "" {
		return Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, webhook.ErrNotSigned)
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, sigHeader, g.secret, g.tolerance); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return ParseEvent(payload)
}

// CreateCheckoutSession opens a hosted payment-mode session. The order id is
// written to the session metadata, the payment intent metadata and the
// client reference so every later event can be traced back to the order.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	if req.OrderID == "" {
		return Session{}, errors.New("checkout session: order id required")
	}
	if len(req.Items) == 0 {
		return Session{}, errors.New("checkout session: no line items")
	}
	currency := strings.ToLower(req.Currency)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{MetadataOrderID: req.OrderID},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, req.OrderID)
	if req.CustomerEmail != nil {
		params.CustomerEmail = stripe.String(*req.CustomerEmail)
	}

	for _, it := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(it.Name),
		}
		if it.Description != "" {
			product.Description = stripe.String(it.Description)
		}
		if it.ImageURL != nil && *it.ImageURL != "" {
			product.Images = stripe.StringSlice([]string{*it.ImageURL})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(it.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(MinorUnits(it.UnitPrice)),
				ProductData: product,
			},
		})
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

// MinorUnits converts a major-unit amount to minor units (x100, half-up).
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// MajorUnits converts a minor-unit integer to major units exactly.
func MajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
