package handlers

// Error codes carried in ErrorResponse.Code. Clients and the provider's
// delivery dashboard branch on these; the message is for humans.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"

	// Checkout and orders.
	ErrCodeInvalidCart    = "invalid_cart"
	ErrCodeInvalidProduct = "invalid_product"
	ErrCodeCheckoutFailed = "checkout_failed"
	ErrCodeCreateFailed   = "create_failed"
	ErrCodeListFailed     = "list_failed"

	// Webhook.
	ErrCodeInvalidSignature    = "invalid_signature"
	ErrCodeMalformedEvent      = "malformed_event"
	ErrCodeOrderNotFound       = "order_not_found"
	ErrCodeReconcileFailed     = "reconcile_failed"
	ErrCodePaymentsUnavailable = "payments_unavailable"
	ErrCodeTimeout             = "timeout"
)
