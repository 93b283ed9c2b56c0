package domain

import "time"

// ProcessedEvent is one entry of the idempotency ledger: the id of a provider
// event whose effects have been committed. EventID is the primary key, so a
// second insert of the same id fails on the unique constraint; that failure is
// the real arbiter when two deliveries race past the read-side check.
//
// Rows are insert-only.
type ProcessedEvent struct {
	EventID   string    `gorm:"type:varchar(255);primaryKey"`
	Provider  string    `gorm:"type:varchar(32);not null"`
	EventType string    `gorm:"type:varchar(128);not null;default:''"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (ProcessedEvent) TableName() string { return "processed_events" }
