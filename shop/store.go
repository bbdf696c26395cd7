/*
store.go - Persistence interfaces for the storefront

PURPOSE:
  Defines the storage contracts the rest of the system depends on. Two
  implementations exist:
  - store/sqlite: SQLite-backed, used in production
  - shop/store:   in-memory, used by tests and local development

TRANSACTION MODEL:
  CheckoutStore.WithTx runs a function against a CheckoutTx whose operations
  all commit or all roll back. Within the transaction, ProductForUpdate reads
  stock under the transaction's exclusive write access, so a concurrent
  checkout cannot observe a stale value for the same product. This is the
  mechanism that keeps stock_quantity from going negative; the engine holds
  no in-process locks of its own.

SEE ALSO:
  - checkout/engine.go: The only consumer of CheckoutStore
  - store/sqlite/sqlite.go: SQLite implementation
  - shop/store/memory.go: In-memory implementation
*/
package shop

import "context"

// =============================================================================
// READ/WRITE STORES (HTTP layer)
// =============================================================================

// CatalogStore serves product listing, lookup, and search.
type CatalogStore interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	// GetProduct returns nil, nil when the product does not exist.
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	// SearchProducts matches name, description, and category,
	// case-insensitively.
	SearchProducts(ctx context.Context, query string) ([]Product, error)
}

// CartStore manages session-scoped cart lines.
type CartStore interface {
	// AddCartItem upserts: adding a product already in the cart increments
	// the existing line's quantity.
	AddCartItem(ctx context.Context, sessionID string, productID int64, quantity int) (*CartItem, error)
	// UpdateCartItem sets an absolute quantity; zero removes the line.
	UpdateCartItem(ctx context.Context, sessionID string, productID int64, quantity int) error
	RemoveCartItem(ctx context.Context, sessionID string, productID int64) error
	// CartWithProducts returns the session's lines with Product populated.
	CartWithProducts(ctx context.Context, sessionID string) ([]CartLine, error)
	// ClearCart is idempotent; clearing an empty cart is a no-op.
	ClearCart(ctx context.Context, sessionID string) error
}

// WishlistStore manages session-scoped wishlist rows.
type WishlistStore interface {
	AddWishlistItem(ctx context.Context, sessionID string, productID int64) error
	RemoveWishlistItem(ctx context.Context, sessionID string, productID int64) error
	WishlistWithProducts(ctx context.Context, sessionID string) ([]Product, error)
}

// SubscriberStore manages the mailing list.
type SubscriberStore interface {
	// Subscribe is idempotent; subscribing an existing email is a no-op.
	Subscribe(ctx context.Context, email string) error
}

// OrderStore reads purchase history.
type OrderStore interface {
	// GetOrder returns the order with its items, or nil, nil if missing.
	GetOrder(ctx context.Context, id int64) (*Order, error)
}

// =============================================================================
// CHECKOUT TRANSACTION
// =============================================================================

// CheckoutTx is the set of operations available inside one checkout
// transaction. Implementations guarantee that all writes issued through a
// CheckoutTx commit together or not at all.
type CheckoutTx interface {
	// CartLines returns the session's lines ordered by product ID.
	CartLines(ctx context.Context, sessionID string) ([]CartLine, error)
	// ProductForUpdate reads price and stock under the transaction's write
	// lock. Returns nil, nil when the product does not exist.
	ProductForUpdate(ctx context.Context, productID int64) (*Product, error)
	// DecrementStock subtracts quantity from the product's stock. Fails if
	// the result would be negative, even though the engine pre-validates.
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	// CreateOrder inserts the order and returns its ID so dependent rows
	// can reference it.
	CreateOrder(ctx context.Context, order *Order) (int64, error)
	AppendOrderItem(ctx context.Context, item *OrderItem) error
	ClearCart(ctx context.Context, sessionID string) error
}

// CheckoutStore provides atomic checkout transactions.
type CheckoutStore interface {
	WithTx(ctx context.Context, fn func(tx CheckoutTx) error) error
}

// Store is the full persistence surface the HTTP layer wires up.
type Store interface {
	CatalogStore
	CartStore
	WishlistStore
	SubscriberStore
	OrderStore
	CheckoutStore
}
