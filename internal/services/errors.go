// Package services holds the storefront's business logic: payment-event
// reconciliation, checkout creation and order reads. This file centralizes
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import "errors"

// Reconciliation errors.
var (
	// ErrOrderNotFound indicates that no order matched any lookup path for an
	// event. The provider is expected to retry the delivery.
	ErrOrderNotFound = errors.New("order not found")

	// ErrTransactionFailed wraps any failure of the atomic reconciliation
	// write, including deadline expiry. Nothing was committed; retry is safe.
	ErrTransactionFailed = errors.New("reconciliation transaction failed")

	// ErrDuplicateEvent is returned by the writer when the ledger already
	// holds the event id. Callers treat it as success.
	ErrDuplicateEvent = errors.New("event already processed")
)

// Checkout errors.
var (
	// ErrEmptyCart is returned when a checkout request carries no items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInvalidQuantity is returned when an item quantity is outside 1..MaxQuantity.
	ErrInvalidQuantity = errors.New("invalid item quantity")

	// ErrInvalidProduct is returned when one or more product ids are unknown.
	ErrInvalidProduct = errors.New("one or more products are invalid")

	// ErrCheckoutUnavailable is returned when the provider session could not
	// be opened. The order is left FAILED.
	ErrCheckoutUnavailable = errors.New("checkout session unavailable")
)
