// Package domain defines the persistence models for the storefront: the
// product catalog, orders and their line items, payments, and the ledger of
// processed payment-provider events. These types are mapped with GORM and are
// shared across the repository and service layers.
//
// Monetary values are shopspring/decimal values stored as decimal(12,2) in
// major units (e.g. 15.00 USD). Floating point is never used for money.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	// OrderPending is the initial state set at checkout creation.
	OrderPending OrderStatus = "PENDING"
	// OrderPaid is terminal-success. A later authoritative event may still
	// overwrite it.
	OrderPaid OrderStatus = "PAID"
	// OrderFailed is terminal-failure; a later success event moves it to PAID.
	OrderFailed OrderStatus = "FAILED"
)

// PaymentStatus is the settlement state of a Payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// ProviderStripe names the only payment provider wired today.
const ProviderStripe = "stripe"

// Product is a catalog entry used to price checkouts. The storefront's
// listing/read paths live elsewhere; this service only reads prices.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Name / Description / ImageURL: display snapshot copied into OrderItem.
//   - Price: unit price in major units.
type Product struct {
	ID          string          `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string          `json:"name"        gorm:"type:varchar(255);not null"`
	Description string          `json:"description" gorm:"type:text;not null;default:''"`
	ImageURL    *string         `json:"image_url,omitempty" gorm:"type:varchar(1024)"`
	Price       decimal.Decimal `json:"price"       gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// Order is a customer's purchase intent and its lifecycle status.
//
// Fields:
//   - ID: UUID primary key generated at checkout.
//   - UserID: optional originating user.
//   - Status: PENDING → PAID | FAILED (see OrderStatus).
//   - Currency: upper-case ISO-4217 code.
//   - TotalAmount: authoritative total in major units.
//   - StripeSessionID: correlation key to the provider checkout session. Set at
//     most once; never overwritten by a different value.
//   - CheckoutURL: hosted checkout page for the session, replayed to clients
//     retrying the same checkout.
//   - CustomerEmail: optional email handed to the provider.
type Order struct {
	ID              string          `json:"id"                 gorm:"type:char(36);primaryKey"`
	UserID          *string         `json:"user_id,omitempty"  gorm:"type:varchar(64);index:idx_user_orders,priority:1"`
	Status          OrderStatus     `json:"status"             gorm:"type:varchar(16);not null;default:'PENDING';check:status IN ('PENDING','PAID','FAILED')"`
	Currency        string          `json:"currency"           gorm:"type:varchar(3);not null"`
	TotalAmount     decimal.Decimal `json:"total_amount"       gorm:"type:decimal(12,2);not null"`
	StripeSessionID *string         `json:"stripe_session_id,omitempty" gorm:"type:varchar(255);uniqueIndex:ux_orders_stripe_session"`
	CheckoutURL     *string         `json:"checkout_url,omitempty"      gorm:"type:varchar(2048)"`
	CustomerEmail   *string         `json:"customer_email,omitempty"    gorm:"type:varchar(320)"`
	CreatedAt       time.Time       `json:"created_at"         gorm:"index:idx_user_orders,priority:2"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Items   []OrderItem `json:"items,omitempty"   gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Payment *Payment    `json:"payment,omitempty" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// OrderItem snapshots one catalog line at checkout time so later catalog
// edits do not rewrite order history.
type OrderItem struct {
	ID          string          `json:"id"           gorm:"type:char(36);primaryKey"`
	OrderID     string          `json:"order_id"     gorm:"type:char(36);not null;index"`
	ProductID   string          `json:"product_id"   gorm:"type:char(36);not null"`
	ProductName string          `json:"product_name" gorm:"type:varchar(255);not null"`
	ImageURL    *string         `json:"image_url,omitempty" gorm:"type:varchar(1024)"`
	UnitPrice   decimal.Decimal `json:"unit_price"   gorm:"type:decimal(12,2);not null"`
	Quantity    int             `json:"quantity"     gorm:"not null;check:quantity > 0"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }

// Payment is the settlement record tied 1:1 to an Order; OrderID is the
// primary key, which is what makes the reconciliation write an upsert.
//
// Amount and Currency mirror the Order at the time of the transition that
// wrote them.
type Payment struct {
	OrderID           string          `json:"order_id"            gorm:"type:char(36);primaryKey"`
	Status            PaymentStatus   `json:"status"              gorm:"type:varchar(16);not null;check:status IN ('PENDING','SUCCEEDED','FAILED')"`
	Provider          string          `json:"provider"            gorm:"type:varchar(32);not null"`
	ProviderPaymentID *string         `json:"provider_payment_id,omitempty" gorm:"type:varchar(255)"`
	Amount            decimal.Decimal `json:"amount"              gorm:"type:decimal(12,2);not null"`
	Currency          string          `json:"currency"            gorm:"type:varchar(3);not null"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }
