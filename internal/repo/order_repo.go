// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an order is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateOrder(ctx, db, order) -> error
//     Inserts an order together with its items.
//
//   - GetOrder(ctx, db, id) -> *domain.Order, error
//     Fetches an order by primary key.
//
//   - GetOrderBySessionID(ctx, db, sessionID) -> *domain.Order, error
//     Fetches the order carrying a provider checkout-session correlation key.
//
//   - GetOrderForUser(ctx, db, id, userID) -> *domain.Order, error
//     Fetches an order with items and payment, enforcing ownership.
//
//   - CountOrders / ListOrdersPage
//     Paginated order history for a user.
//
//   - SetOrderSessionID(ctx, db, id, sessionID) -> error
//     Assigns the correlation key only if none is set yet.
//
//   - AttachCheckoutSession(ctx, db, id, sessionID, url) -> error
//     Records the provider session created for a new order.
//
//   - UpdateOrderState(ctx, db, id, OrderState) -> error
//     Writes status/currency/total for a reconciled order.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/retro-storefront/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// OrderState is the set of order columns a reconciliation writes. A nil
// Currency or TotalAmount leaves the column untouched.
type OrderState struct {
	Status      domain.OrderStatus
	Currency    *string
	TotalAmount *decimal.Decimal
}

// CreateOrder inserts o and its Items. Missing IDs are generated and
// timestamps are set to UTC now.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	now := time.Now().UTC()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = uuid.NewString()
		}
		o.Items[i].OrderID = o.ID
		o.Items[i].CreatedAt = now
	}
	return db.WithContext(ctx).Create(o).Error
}

// GetOrder fetches a single order by id, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderBySessionID fetches the order whose correlation key equals
// sessionID, or ErrNotFound. The unique index guarantees at most one match.
func GetOrderBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderForUser fetches an order owned by userID with its items and
// payment preloaded. Orders owned by someone else read as ErrNotFound.
func GetOrderForUser(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Where("id = ? AND user_id = ?", id, userID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CountOrders returns the total number of orders owned by userID.
func CountOrders(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListOrdersPage returns a page of userID's orders, newest first.
func ListOrdersPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SetOrderSessionID assigns the correlation key when the order has none.
// It reports whether a row was changed; an order that already carries a key
// (same or different) is left untouched.
func SetOrderSessionID(ctx context.Context, db *gorm.DB, id, sessionID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND stripe_session_id IS NULL", id).
		Updates(map[string]any{
			"stripe_session_id": sessionID,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AttachCheckoutSession stores the provider session and its hosted URL on a
// freshly created order. Like SetOrderSessionID it never replaces a different
// correlation key. An order that a webhook already bound to sessionID still
// gets its URL. Returns ErrNotFound when no such order matched.
func AttachCheckoutSession(ctx context.Context, db *gorm.DB, id, sessionID, url string) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND (stripe_session_id IS NULL OR stripe_session_id = ?)", id, sessionID).
		Updates(map[string]any{
			"stripe_session_id": sessionID,
			"checkout_url":      url,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateOrderState writes the reconciled status and, when present, the
// authoritative currency and total. Returns ErrNotFound if id is unknown.
func UpdateOrderState(ctx context.Context, db *gorm.DB, id string, st OrderState) error {
	cols := map[string]any{
		"status":     st.Status,
		"updated_at": time.Now().UTC(),
	}
	if st.Currency != nil {
		cols["currency"] = *st.Currency
	}
	if st.TotalAmount != nil {
		cols["total_amount"] = *st.TotalAmount
	}
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
