// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Payment
// model. A payment is keyed by its order id, so writes are upserts.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/retro-storefront/internal/domain"
)

// UpsertPayment inserts p or, when a payment for p.OrderID exists, overwrites
// its status, provider, amount and currency. A nil ProviderPaymentID keeps
// whatever reference is already stored.
func UpsertPayment(ctx context.Context, db *gorm.DB, p *domain.Payment) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	cols := []string{"status", "provider", "amount", "currency", "updated_at"}
	if p.ProviderPaymentID != nil {
		cols = append(cols, "provider_payment_id")
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(p).Error
}

// FailPayment marks the existing payment of orderID as FAILED. It never
// creates a row and reports whether one was updated.
func FailPayment(ctx context.Context, db *gorm.DB, orderID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"status":     domain.PaymentFailed,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetPayment returns the payment for orderID, or ErrNotFound.
func GetPayment(ctx context.Context, db *gorm.DB, orderID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
