// Package handlers holds the Gin handlers for checkout, orders and the
// payment webhook.
//
// Every failure leaves through fail(), which writes the shared envelope
//
//	HTTP/1.1 400 Bad Request
//	{"request_id":"123e4567-e89b-12d3-a456-426614174000","code":"invalid_signature","message":"invalid signature"}
//
// and logs on the request-scoped logger: server faults at error, webhook
// rejections at warn, ordinary client mistakes not at all.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/retro-storefront/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID for correlating client reports with logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, see errors.go.
	Code    string `json:"code" example:"order_not_found"`
	Message string `json:"message" example:"order not found"`
}

// warnCodes are client errors worth a log line: forged or undecodable
// deliveries and events that arrive before their order.
var warnCodes = map[string]struct{}{
	ErrCodeInvalidSignature: {},
	ErrCodeMalformedEvent:   {},
	ErrCodeOrderNotFound:    {},
	ErrCodePayloadTooLarge:  {},
}

// fail aborts the request with an ErrorResponse. 5xx are logged at error and
// webhook rejections at warn, both on the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	lg := middleware.LoggerFrom(c)
	switch _, warn := warnCodes[code]; {
	case status >= http.StatusInternalServerError:
		lg.Error().Int("status", status).Str("code", code).Str("message", msg).Msg("api error")
	case warn:
		lg.Warn().Int("status", status).Str("code", code).Msg("request rejected")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
