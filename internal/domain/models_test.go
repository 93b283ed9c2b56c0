package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func strp(s string) *string { return &s }

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Product{}).TableName():        "products",
		(Order{}).TableName():          "orders",
		(OrderItem{}).TableName():      "order_items",
		(Payment{}).TableName():        "payments",
		(ProcessedEvent{}).TableName(): "processed_events",
		(Idempotency{}).TableName():    "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_Constraints_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Product{}, &Order{}, &OrderItem{}, &Payment{}, &ProcessedEvent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&Product{}, &Order{}, &OrderItem{}, &Payment{}, &ProcessedEvent{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&Order{}, "ux_orders_stripe_session") {
		t.Fatalf("expected unique index ux_orders_stripe_session on orders")
	}
	if !m.HasIndex(&Order{}, "idx_user_orders") {
		t.Fatalf("expected index idx_user_orders on orders")
	}

	now := time.Now().UTC()
	o1 := &Order{ID: "o1", Status: OrderPending, Currency: "USD", TotalAmount: decimal.RequireFromString("10.00"),
		StripeSessionID: strp("cs_1"), CreatedAt: now, UpdatedAt: now}
	if err := db.Create(o1).Error; err != nil {
		t.Fatalf("insert o1: %v", err)
	}

	// Correlation key is unique across orders.
	o2 := &Order{ID: "o2", Status: OrderPending, Currency: "USD", TotalAmount: decimal.Zero,
		StripeSessionID: strp("cs_1"), CreatedAt: now, UpdatedAt: now}
	if err := db.Create(o2).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on stripe_session_id")
	}

	// NULL correlation keys do not collide.
	for _, id := range []string{"o3", "o4"} {
		o := &Order{ID: id, Status: OrderPending, Currency: "USD", TotalAmount: decimal.Zero, CreatedAt: now, UpdatedAt: now}
		if err := db.Create(o).Error; err != nil {
			t.Fatalf("insert %s with NULL session: %v", id, err)
		}
	}

	// Status check constraint.
	bad := &Order{ID: "o5", Status: OrderStatus("SHIPPED"), Currency: "USD", TotalAmount: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected CHECK violation for unknown order status")
	}

	item := &OrderItem{ID: "i1", OrderID: "o1", ProductID: "p1", ProductName: "Neon Desk Clock",
		UnitPrice: decimal.RequireFromString("59"), Quantity: 1, CreatedAt: now}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("insert item: %v", err)
	}
	pay := &Payment{OrderID: "o1", Status: PaymentSucceeded, Provider: ProviderStripe,
		Amount: decimal.RequireFromString("10"), Currency: "USD", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(pay).Error; err != nil {
		t.Fatalf("insert payment: %v", err)
	}

	// Payment is keyed by order id: a second row for o1 is rejected.
	dup := &Payment{OrderID: "o1", Status: PaymentFailed, Provider: ProviderStripe, Amount: decimal.Zero, Currency: "USD"}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected PK violation on payments.order_id")
	}

	var got Order
	if err := db.Preload("Items").Preload("Payment").First(&got, "id = ?", "o1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if len(got.Items) != 1 || got.Payment == nil || !got.Payment.Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected preload: %+v", got)
	}

	// CASCADE: deleting the order removes its items and payment.
	if err := db.Delete(&Order{}, "id = ?", "o1").Error; err != nil {
		t.Fatalf("delete o1: %v", err)
	}
	var cnt int64
	db.Model(&OrderItem{}).Where("order_id = ?", "o1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("expected items to cascade-delete, got %d", cnt)
	}
	db.Model(&Payment{}).Where("order_id = ?", "o1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("expected payment to cascade-delete, got %d", cnt)
	}
}

func TestProcessedEvent_PrimaryKeyRejectsSecondInsert(t *testing.T) {
	db := newDomainDB(t)
	_ = db.Migrator().DropTable(&ProcessedEvent{})
	if err := db.AutoMigrate(&ProcessedEvent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	ev := &ProcessedEvent{EventID: "evt_1", Provider: ProviderStripe, EventType: "checkout.session.completed"}
	if err := db.Create(ev).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if ev.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be filled on insert")
	}
	again := &ProcessedEvent{EventID: "evt_1", Provider: ProviderStripe}
	if err := db.Create(again).Error; err == nil {
		t.Fatalf("expected PK violation for repeated event id")
	}
}
