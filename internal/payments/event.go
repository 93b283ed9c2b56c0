// Package payments adapts the payment provider (Stripe) to the storefront.
//
// It owns the two provider-facing operations the service needs: turning a
// signed webhook delivery into a typed Event, and opening a hosted checkout
// session for a freshly created order. Nothing in this package touches the
// database; reconciliation lives in the services package.
package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
)

// Metadata keys written at checkout and read back from events.
const (
	MetadataOrderID           = "orderId"
	MetadataCheckoutSessionID = "checkout_session_id"
)

var (
	// ErrSignatureInvalid is returned when the Stripe-Signature header is
	// missing, stale, or does not match the payload.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrMalformedEvent is returned when a verified payload cannot be decoded
	// into an event envelope or a recognized event lacks its object id.
	ErrMalformedEvent = errors.New("malformed webhook event")

	// ErrNotConfigured is returned when no webhook signing secret is set.
	ErrNotConfigured = errors.New("payments not configured")
)

// Event is a verified provider event. Payload is one of CheckoutCompleted,
// PaymentSucceeded, PaymentFailed or Unrecognized.
type Event struct {
	ID      string
	Type    string
	Payload Payload
}

// Payload is the closed set of event bodies the reconciler understands.
type Payload interface {
	payload()
}

// Metadata carries the correlation fields the order locator relies on.
// A nil field means the key was absent or blank on the wire.
type Metadata struct {
	OrderID           *string
	CheckoutSessionID *string
}

// CheckoutCompleted is checkout.session.completed.
type CheckoutCompleted struct {
	SessionID       string
	AmountTotal     *int64 // minor units
	Currency        *string
	PaymentIntentID *string
	CustomerEmail   *string
	Metadata        Metadata
}

// PaymentSucceeded is payment_intent.succeeded.
type PaymentSucceeded struct {
	IntentID       string
	AmountReceived *int64 // minor units
	Amount         *int64 // minor units
	Currency       *string
	Metadata       Metadata
}

// PaymentFailed is payment_intent.payment_failed.
type PaymentFailed struct {
	IntentID       string
	Currency       *string
	FailureMessage *string
	Metadata       Metadata
}

// Unrecognized is any other event type. It is acknowledged and never applied.
type Unrecognized struct{}

func (CheckoutCompleted) payload() {}
func (PaymentSucceeded) payload()  {}
func (PaymentFailed) payload()     {}
func (Unrecognized) payload()      {}

// Wire shapes. Pointers distinguish an absent amount from zero.
type sessionObject struct {
	ID            string            `json:"id"`
	AmountTotal   *int64            `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentIntent json.RawMessage   `json:"payment_intent"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

type intentObject struct {
	ID               string            `json:"id"`
	Amount           *int64            `json:"amount"`
	AmountReceived   *int64            `json:"amount_received"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// ParseEvent decodes an already verified payload into an Event.
func ParseEvent(payload []byte) (Event, error) {
	var env stripe.Event
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(env.ID) == "" || env.Type == "" {
		return Event{}, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	ev := Event{ID: env.ID, Type: string(env.Type)}

	switch env.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var obj sessionObject
		if err := decodeObject(env.Data, &obj); err != nil {
			return Event{}, err
		}
		ev.Payload = CheckoutCompleted{
			SessionID:       obj.ID,
			AmountTotal:     obj.AmountTotal,
			Currency:        optional(obj.Currency),
			PaymentIntentID: expandableID(obj.PaymentIntent),
			CustomerEmail:   optional(obj.CustomerEmail),
			Metadata:        metadataOf(obj.Metadata),
		}

	case stripe.EventTypePaymentIntentSucceeded:
		var obj intentObject
		if err := decodeObject(env.Data, &obj); err != nil {
			return Event{}, err
		}
		ev.Payload = PaymentSucceeded{
			IntentID:       obj.ID,
			AmountReceived: obj.AmountReceived,
			Amount:         obj.Amount,
			Currency:       optional(obj.Currency),
			Metadata:       metadataOf(obj.Metadata),
		}

	case stripe.EventTypePaymentIntentPaymentFailed:
		var obj intentObject
		if err := decodeObject(env.Data, &obj); err != nil {
			return Event{}, err
		}
		pf := PaymentFailed{
			IntentID: obj.ID,
			Currency: optional(obj.Currency),
			Metadata: metadataOf(obj.Metadata),
		}
		if obj.LastPaymentError != nil {
			pf.FailureMessage = optional(obj.LastPaymentError.Message)
		}
		ev.Payload = pf

	default:
		ev.Payload = Unrecognized{}
	}
	return ev, nil
}

// decodeObject unmarshals data.object into dst and requires a non-empty id.
func decodeObject(data *stripe.EventData, dst any) error {
	if data == nil || len(data.Raw) == 0 {
		return fmt.Errorf("%w: missing data.object", ErrMalformedEvent)
	}
	if err := json.Unmarshal(data.Raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	var id string
	switch o := dst.(type) {
	case *sessionObject:
		id = o.ID
	case *intentObject:
		id = o.ID
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: object has no id", ErrMalformedEvent)
	}
	return nil
}

// expandableID reads a Stripe expandable field, which is either an id
// string or an object with an "id".
func expandableID(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return optional(s)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return optional(obj.ID)
	}
	return nil
}

func metadataOf(m map[string]string) Metadata {
	return Metadata{
		OrderID:           optional(m[MetadataOrderID]),
		CheckoutSessionID: optional(m[MetadataCheckoutSessionID]),
	}
}

// optional maps blank strings to nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
