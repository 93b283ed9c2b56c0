// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds the idempotency ledger of processed
// payment-provider events.
//
// HasProcessedEvent is a read-side shortcut only. The primary key on
// processed_events.event_id is what guarantees one entry per event, and
// CreateProcessedEvent must run inside the same transaction as the order and
// payment writes it certifies.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/retro-storefront/internal/domain"
)

// HasProcessedEvent reports whether eventID is already in the ledger.
func HasProcessedEvent(ctx context.Context, db *gorm.DB, eventID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateProcessedEvent inserts the ledger entry for eventID and returns
// ErrDuplicate when the id is already recorded.
func CreateProcessedEvent(ctx context.Context, db *gorm.DB, provider, eventID, eventType string) error {
	rec := &domain.ProcessedEvent{
		EventID:   eventID,
		Provider:  provider,
		EventType: eventType,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// isUniqueViolation maps driver-specific unique/primary key failures onto one
// predicate. glebarez/sqlite often returns plain-text errors; MySQL reports
// error 1062 which gorm translates when TranslateError is on.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "constraint failed: primary key") ||
		strings.Contains(low, "duplicate entry") ||
		strings.Contains(low, "duplicate key")
}
