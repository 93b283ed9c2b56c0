// Payment webhook HTTP handler.
//
// POST /webhooks/stripe receives the provider's signed event deliveries.
// The raw body is verified before it is decoded, then handed to the
// reconciler. Responses tell the provider whether to retry:
//
//   - 200 {"received":true}: applied, already processed, or ignored
//   - 400: bad signature or undecodable event (retrying will not help)
//   - 404 order_not_found: no order matches yet; the provider retries
//   - 500: the write failed and was rolled back; the provider retries
//   - 503: payments not configured, or the reconciliation timed out
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/retro-storefront/internal/http/middleware"
	"github.com/tbourn/retro-storefront/internal/payments"
	"github.com/tbourn/retro-storefront/internal/services"
)

// MaxWebhookBody caps a single delivery. Provider events are a few KiB.
const MaxWebhookBody = 1 << 20

// HeaderStripeSignature carries the provider's timestamped HMAC.
const HeaderStripeSignature = "Stripe-Signature"

// WebhookAck is the success body for every accepted delivery.
type WebhookAck struct {
	Received bool `json:"received" example:"true"`
}

// StripeWebhook godoc
// @ID          stripeWebhook
// @Summary     Receive payment provider events
// @Description Verifies the Stripe-Signature header against the raw body and reconciles the event exactly once.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       Stripe-Signature  header  string  true  "Provider signature header"
//
// @Success     200  {object} handlers.WebhookAck
// @Failure     400  {object} handlers.ErrorResponse "Invalid signature or malformed event"
// @Failure     404  {object} handlers.ErrorResponse "No matching order"
// @Failure     413  {object} handlers.ErrorResponse "Payload too large"
// @Failure     500  {object} handlers.ErrorResponse "Reconciliation failed"
// @Failure     503  {object} handlers.ErrorResponse "Payments unavailable or timed out"
// @Router      /webhooks/stripe [post]
func (h *Handlers) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "payload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read body")
		return
	}

	ev, err := h.events.ConstructEvent(payload, c.GetHeader(HeaderStripeSignature))
	switch {
	case errors.Is(err, payments.ErrNotConfigured):
		fail(c, http.StatusServiceUnavailable, ErrCodePaymentsUnavailable, "payments are not configured")
		return
	case errors.Is(err, payments.ErrSignatureInvalid):
		fail(c, http.StatusBadRequest, ErrCodeInvalidSignature, "invalid signature")
		return
	case err != nil:
		fail(c, http.StatusBadRequest, ErrCodeMalformedEvent, "malformed event")
		return
	}

	lg := middleware.LoggerFrom(c).With().Str("event_id", ev.ID).Logger()
	ctx := lg.WithContext(c.Request.Context())

	_, err = h.reconciler.Reconcile(ctx, ev)
	switch {
	case err == nil:
		ok(c, http.StatusOK, WebhookAck{Received: true})
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeOrderNotFound, "no order matches this event")
	case errors.Is(err, payments.ErrMalformedEvent):
		fail(c, http.StatusBadRequest, ErrCodeMalformedEvent, "malformed event")
	case errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusServiceUnavailable, ErrCodeTimeout, "reconciliation timed out")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeReconcileFailed, "reconciliation failed")
	}
}
