// Checkout HTTP handler.
//
// POST /checkout turns a cart into a PENDING order and returns the hosted
// payment page. Payment state is never decided here; the order only becomes
// PAID or FAILED when the provider's webhook is reconciled.
//
// Idempotency:
// A client that retries with the same Idempotency-Key receives the original
// order and session, with `Idempotency-Replayed: true`.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/retro-storefront/internal/http/middleware"
	"github.com/tbourn/retro-storefront/internal/services"
)

// CheckoutItemRequest is one cart line.
type CheckoutItemRequest struct {
	ProductID string `json:"product_id" example:"8d3e8a1e-2f0b-4c4e-9a51-1f6f1b7f0c11"`
	Quantity  int    `json:"quantity"   example:"1"`
}

// CreateCheckoutRequest is the JSON payload for starting a checkout.
type CreateCheckoutRequest struct {
	Items         []CheckoutItemRequest `json:"items"`
	CustomerEmail *string               `json:"customer_email,omitempty" binding:"omitempty,email" example:"buyer@example.com"`
}

// CheckoutResponse describes the created (or replayed) order and where to pay.
type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	URL         string `json:"url"`
	Status      string `json:"status"      example:"PENDING"`
	TotalAmount string `json:"total_amount" example:"129.00"`
	Currency    string `json:"currency"    example:"USD"`
}

// CreateCheckout godoc
// @ID          createCheckout
// @Summary     Start a checkout
// @Description Validates the cart against the catalog, creates a PENDING order and a hosted payment session. Supports Idempotency-Key.
// @Tags        Checkout
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateCheckoutRequest  true  "Cart"
//
// @Success     201  {object} handlers.CheckoutResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid cart"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited"
// @Failure     502  {object} handlers.ErrorResponse "Payment provider unavailable"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /checkout [post]
func (h *Handlers) CreateCheckout(c *gin.Context) {
	var req CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	items := make([]services.CheckoutItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, services.CheckoutItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	key, _ := middleware.GetIdempotencyKey(c)

	lg := middleware.LoggerFrom(c)
	ctx := lg.WithContext(c.Request.Context())

	res, err := h.checkout.Create(ctx, services.CheckoutRequest{
		UserID:         middleware.UserID(c),
		Items:          items,
		CustomerEmail:  req.CustomerEmail,
		IdempotencyKey: key,
	})
	switch {
	case errors.Is(err, services.ErrEmptyCart), errors.Is(err, services.ErrInvalidQuantity):
		fail(c, http.StatusBadRequest, ErrCodeInvalidCart, err.Error())
		return
	case errors.Is(err, services.ErrInvalidProduct):
		fail(c, http.StatusBadRequest, ErrCodeInvalidProduct, err.Error())
		return
	case errors.Is(err, services.ErrCheckoutUnavailable):
		fail(c, http.StatusBadGateway, ErrCodeCheckoutFailed, "payment provider unavailable")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not create checkout")
		return
	}

	if res.Replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	ok(c, http.StatusCreated, CheckoutResponse{
		OrderID:     res.Order.ID,
		SessionID:   res.SessionID,
		URL:         res.URL,
		Status:      string(res.Order.Status),
		TotalAmount: res.Order.TotalAmount.StringFixed(2),
		Currency:    res.Order.Currency,
	})
}
