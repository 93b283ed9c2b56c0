// Package services – OrderService
//
// This file implements OrderService, the read side of orders: a paginated
// history per user and a single-order view with items and payment. Ownership
// is enforced at query time; an order owned by someone else reads as
// ErrOrderNotFound.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/retro-storefront/internal/domain"
	"github.com/tbourn/retro-storefront/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OrderService provides order read operations.
type OrderService struct {
	DB *gorm.DB
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{DB: db}
}

// Get returns the user's order with items and payment preloaded.
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	o, err := repo.GetOrderForUser(ctx, s.DB, orderID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// ListPage returns a page of the user's orders, newest first, and the total.
// It applies defaults for invalid page/pageSize.
func (s *OrderService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, int64, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountOrders(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Order{}, 0, nil
	}

	items, err := repo.ListOrdersPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Stats returns the order count and latest update time for ETag generation.
func (s *OrderService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.OrdersStats(ctx, s.DB, userID)
}
