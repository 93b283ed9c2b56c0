package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/retro-storefront/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func strp(s string) *string { return &s }

func seedOrder(t *testing.T, db *gorm.DB, id, userID string, total string, at time.Time) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ID:          id,
		Status:      domain.OrderPending,
		Currency:    "USD",
		TotalAmount: decimal.RequireFromString(total),
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if userID != "" {
		o.UserID = strp(userID)
	}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("seed order %s: %v", id, err)
	}
	return o
}

func TestOrdersStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, _, err := OrdersStats(context.Background(), db, "u1")
	if err == nil {
		t.Fatalf("expected error due to missing orders table")
	}
}

func TestOrdersStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.Order{})
	count, maxAt, err := OrdersStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("OrdersStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestOrdersStats_Success_FilterAndMax(t *testing.T) {
	db := newTestDB(t, &domain.Order{})

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max for u1
	t3 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)   // for other user

	seedOrder(t, db, "o1", "u1", "10", t1)
	seedOrder(t, db, "o2", "u1", "20", t2)
	seedOrder(t, db, "o3", "u2", "30", t3)

	count, maxAt, err := OrdersStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("OrdersStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected maxUpdatedAt %v, got %v", t2, maxAt)
	}
}

// Force the second query (SELECT updated_at ...) to fail by renaming the column.
func TestOrdersStats_SelectLatest_ErrorPath(t *testing.T) {
	db := newTestDB(t, &domain.Order{})
	seedOrder(t, db, "ox", "uerr", "1", time.Now().UTC())

	if err := db.Exec(`ALTER TABLE orders RENAME COLUMN updated_at TO updated_at_old`).Error; err != nil {
		t.Fatalf("rename column: %v", err)
	}

	_, _, err := OrdersStats(context.Background(), db, "uerr")
	if err == nil {
		t.Fatalf("expected error from latest-updated select after column rename")
	}
}
