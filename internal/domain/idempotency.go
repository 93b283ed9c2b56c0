package domain

import "time"

// Idempotency represents a checkout request already served, keyed by
// (user_id, key). It lets a client retry POST /checkout with the same
// Idempotency-Key and get the original order and provider session back
// instead of opening a second checkout.
type Idempotency struct {
	ID        string    `gorm:"type:varchar(36) NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:varchar(64) NOT NULL;uniqueIndex:ux_user_key,priority:1"`
	Key       string    `gorm:"type:varchar(200) NOT NULL;uniqueIndex:ux_user_key,priority:2"`
	OrderID   string    `gorm:"type:varchar(36) NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
