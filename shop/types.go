/*
Package shop defines the core domain model for the storefront backend.

PURPOSE:
  This package contains the domain types shared between the storage layer,
  the checkout engine, and the HTTP API. It has no behavior beyond small
  helpers; the interesting logic lives in the checkout package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: A catalog entry with a mutable stock_quantity
  - CartLine: One (product, quantity) pairing attached to a session
  - Order/OrderItem: Immutable purchase history with price-at-purchase
  - CustomerInfo: The customer/shipping fields a checkout must carry

DESIGN PRINCIPLES:
  1. Precision: Prices and totals use decimal.Decimal, never float64
  2. Immutability: Orders and OrderItems are written once and never updated
  3. Sessions: Cart and wishlist rows are scoped by an opaque session ID
     issued at the HTTP layer; the domain treats it as a plain string

SEE ALSO:
  - errors.go: Error taxonomy for the domain
  - store.go: Persistence interfaces implemented by store/sqlite and shop/store
  - checkout/engine.go: The stock reservation transaction
*/
package shop

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATALOG
// =============================================================================

// Product is a catalog entry. StockQuantity is the only field mutated after
// creation, and only by the checkout engine's atomic decrement.
type Product struct {
	ID                 int64           `db:"id" json:"id"`
	Slug               string          `db:"slug" json:"slug"`
	Name               string          `db:"name" json:"name"`
	Category           string          `db:"category" json:"category"`
	Price              decimal.Decimal `db:"price" json:"price"`
	Weight             string          `db:"weight" json:"weight"`
	Grade              string          `db:"grade" json:"grade"`
	Origin             string          `db:"origin" json:"origin"`
	Description        string          `db:"description" json:"description"`
	ImageURL           string          `db:"image_url" json:"image_url"`
	NutritionalInfo    string          `db:"nutritional_info" json:"nutritional_info"`
	SustainabilityInfo string          `db:"sustainability_info" json:"sustainability_info"`
	StockQuantity      int             `db:"stock_quantity" json:"stock_quantity"`
}

// ProductFilter narrows and orders a catalog listing.
type ProductFilter struct {
	Category string
	SortBy   string // one of the Sort* constants, empty for insertion order
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

// =============================================================================
// CART
// =============================================================================

// CartItem is one stored cart row. (session_id, product_id) is unique; adding
// the same product again increments the existing row's quantity.
type CartItem struct {
	ID        int64  `db:"id"`
	SessionID string `db:"session_id"`
	ProductID int64  `db:"product_id"`
	Quantity  int    `db:"quantity"`
}

// CartLine is the checkout-facing view of a cart row. Product is populated
// only by read paths that join against the catalog; the checkout engine
// re-reads the product under lock and ignores the joined copy.
type CartLine struct {
	ProductID int64    `db:"product_id"`
	Quantity  int      `db:"quantity"`
	Product   *Product `db:"-"`
}

// =============================================================================
// ORDERS
// =============================================================================

// CustomerInfo carries the customer/shipping fields of a checkout request.
// All fields are required and presence-checked by the engine; format
// validation beyond presence is deliberately not performed here.
type CustomerInfo struct {
	Name    string
	Email   string
	Address string
	City    string
}

type OrderStatus string

const (
	// OrderStatusCompleted is the only status currently produced. There is
	// no pending/cancelled state machine.
	OrderStatusCompleted OrderStatus = "completed"
)

// Order is an immutable purchase record. TotalAmount is always computed
// server-side from locked stock reads, never from client input.
type Order struct {
	ID           int64           `db:"id"`
	CustomerName string          `db:"customer_name"`
	Email        string          `db:"email"`
	Address      string          `db:"address"`
	City         string          `db:"city"`
	TotalAmount  decimal.Decimal `db:"total_amount"`
	Status       OrderStatus     `db:"status"`
	CreatedAt    time.Time       `db:"created_at"`
	Items        []OrderItem     `db:"-"`
}

// OrderItem is the audit trail that makes order totals reproducible after
// catalog prices change. It must survive deletion of the referenced product.
type OrderItem struct {
	ID              int64           `db:"id"`
	OrderID         int64           `db:"order_id"`
	ProductID       int64           `db:"product_id"`
	Quantity        int             `db:"quantity"`
	PriceAtPurchase decimal.Decimal `db:"price_at_purchase"`
}

// =============================================================================
// WISHLIST / MAILING LIST
// =============================================================================

type WishlistItem struct {
	ID        int64     `db:"id"`
	SessionID string    `db:"session_id"`
	ProductID int64     `db:"product_id"`
	CreatedAt time.Time `db:"created_at"`
}

type Subscriber struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}
