package main

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/retro-storefront/internal/repo"
)

func newSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:seed_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSeed_OnlyWhenEmptyUnlessForced(t *testing.T) {
	ctx := context.Background()
	db := newSeedDB(t)

	n, err := seed(ctx, db, false)
	if err != nil || n != 3 {
		t.Fatalf("first seed: n=%d err=%v", n, err)
	}
	if n, err = seed(ctx, db, false); err != nil || n != 0 {
		t.Fatalf("second seed: n=%d err=%v", n, err)
	}
	if n, err = seed(ctx, db, true); err != nil || n != 3 {
		t.Fatalf("forced seed: n=%d err=%v", n, err)
	}
	if total, _ := repo.CountProducts(ctx, db); total != 6 {
		t.Fatalf("products = %d; want 6", total)
	}
}

func TestCatalog_PricesAndUniqueIDs(t *testing.T) {
	want := map[string]string{
		"Polaroid Sun 600 Revival":   "129",
		"Cassette Bluetooth Speaker": "89",
		"Neon Desk Clock":            "59",
	}
	seen := map[string]bool{}
	for _, p := range catalog() {
		if seen[p.ID] {
			t.Fatalf("duplicate id %s", p.ID)
		}
		seen[p.ID] = true
		if w, ok := want[p.Name]; !ok || p.Price.String() != w {
			t.Fatalf("%s priced %s", p.Name, p.Price)
		}
	}
}
