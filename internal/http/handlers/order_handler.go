// Order HTTP handlers.
//
// This file exposes read endpoints for the caller's orders:
//   - GET /orders        (list, paginated, ETag support)
//   - GET /orders/{id}   (single order with items and payment)
//
// It also holds the Handlers wiring shared by the checkout and webhook
// endpoints. Handlers are transport-thin: they validate input, call
// application services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/retro-storefront/internal/domain"
	"github.com/tbourn/retro-storefront/internal/http/middleware"
	"github.com/tbourn/retro-storefront/internal/payments"
	"github.com/tbourn/retro-storefront/internal/services"
	"github.com/tbourn/retro-storefront/internal/utils"
)

//
// Service contracts (context-aware)
//

// CheckoutService turns a cart into a PENDING order and a provider session.
type CheckoutService interface {
	Create(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutResult, error)
}

// OrderService provides the caller's order history.
type OrderService interface {
	// Get returns an order owned by userID, or services.ErrOrderNotFound.
	Get(ctx context.Context, userID, orderID string) (*domain.Order, error)
	// ListPage returns a page of orders, newest first, and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, int64, error)
	// Stats returns the count and latest update time used for ETags.
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
}

// EventVerifier authenticates a raw provider delivery and decodes it.
// *payments.Gateway satisfies it.
type EventVerifier interface {
	ConstructEvent(payload []byte, sigHeader string) (payments.Event, error)
}

// Reconciler applies a verified event. *services.ReconcileService satisfies it.
type Reconciler interface {
	Reconcile(ctx context.Context, ev payments.Event) (services.Outcome, error)
}

//
// Handler wiring
//

// Handlers groups the storefront's HTTP endpoints.
type Handlers struct {
	checkout   CheckoutService
	orders     OrderService
	events     EventVerifier
	reconciler Reconciler
}

// New constructs Handlers bound to the given services.
func New(checkout CheckoutService, orders OrderService, events EventVerifier, reconciler Reconciler) *Handlers {
	return &Handlers{checkout: checkout, orders: orders, events: events, reconciler: reconciler}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListOrdersResponse wraps a page of orders and pagination information.
type ListOrdersResponse struct {
	Orders     []domain.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

//
// Handlers
//

// ListOrders godoc
// @ID          listOrders
// @Summary     List orders (paginated)
// @Description Returns a page of the caller's orders, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Orders
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListOrdersResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /orders [get]
func (h *Handlers) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"))

	// ETag pre-check (best effort). Reconciliation bumps updated_at, so a
	// paid or failed order changes the tag.
	if count, maxTS, err := h.orders.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"orders:%s:%d:%d:%d:%d"`, uid, count, ts, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.orders.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list orders")
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListOrdersResponse{
		Orders: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetOrder godoc
// @ID          getOrder
// @Summary     Get an order
// @Description Returns one of the caller's orders with its line items and payment.
// @Tags        Orders
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Order ID (UUID)"        format(uuid)
//
// @Success     200  {object} domain.Order
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Order not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /orders/{id} [get]
func (h *Handlers) GetOrder(c *gin.Context) {
	orderID := c.Param("id")
	if _, err := uuid.Parse(orderID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return
	}

	o, err := h.orders.Get(c.Request.Context(), middleware.UserID(c), orderID)
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load order")
		return
	}
	ok(c, http.StatusOK, o)
}
