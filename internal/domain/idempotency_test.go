package domain

import (
	"testing"
	"time"
)

func TestIdempotency_SchemaConstraints(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_user_key") {
		t.Fatalf("expected composite index ux_user_key")
	}

	now := time.Now().UTC()
	insert := func(id, user, key string, order any, expires any) error {
		return db.Exec(`INSERT INTO idempotency (id, user_id, "key", order_id, status, created_at, expires_at) VALUES (?,?,?,?,?,?,?)`,
			id, user, key, order, 201, now, expires).Error
	}

	if err := insert("i1", "u1", "cart-1", "o1", now.Add(time.Hour)); err != nil {
		t.Fatalf("valid insert: %v", err)
	}
	if err := insert("i2", "u1", "cart-1", "o2", now.Add(time.Hour)); err == nil {
		t.Fatalf("(user_id, key) must be unique")
	}
	if err := insert("i3", "u2", "cart-1", "o3", now.Add(time.Hour)); err != nil {
		t.Fatalf("same key for another shopper: %v", err)
	}
	if err := insert("i4", "u1", "cart-4", nil, now.Add(time.Hour)); err == nil {
		t.Fatalf("order_id must be NOT NULL")
	}
	if err := insert("i5", "u1", "cart-5", "o5", nil); err == nil {
		t.Fatalf("expires_at must be NOT NULL")
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "i1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.OrderID != "o1" || got.Status != 201 || !got.ExpiresAt.After(now) {
		t.Fatalf("unexpected row: %+v", got)
	}
}
