package repo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tbourn/retro-storefront/internal/domain"
)

func TestProducts_CreateCountAndGetByIDs(t *testing.T) {
	db := newTestDB(t, &domain.Product{})
	ctx := context.Background()

	ps := []domain.Product{
		{ID: "p1", Name: "Polaroid Sun 600 Revival", Price: decimal.RequireFromString("129")},
		{Name: "Neon Desk Clock", Price: decimal.RequireFromString("59")},
	}
	if err := CreateProducts(ctx, db, ps); err != nil {
		t.Fatalf("CreateProducts: %v", err)
	}
	if ps[1].ID == "" {
		t.Fatalf("expected generated id")
	}

	n, err := CountProducts(ctx, db)
	if err != nil || n != 2 {
		t.Fatalf("CountProducts: n=%d err=%v", n, err)
	}

	got, err := GetProductsByIDs(ctx, db, []string{"p1", "unknown"})
	if err != nil {
		t.Fatalf("GetProductsByIDs: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" || !got[0].Price.Equal(decimal.NewFromInt(129)) {
		t.Fatalf("unexpected products: %+v", got)
	}

	empty, err := GetProductsByIDs(ctx, db, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result for no ids, got %v err=%v", empty, err)
	}
}
