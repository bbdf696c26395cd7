/*
Package sqlite provides a SQLite-backed implementation of shop.Store.

PURPOSE:
  Implements the full persistence surface (catalog, cart, wishlist,
  subscribers, orders) plus the checkout transaction. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences
  and the locking mechanism change (see CONCURRENCY below).

KEY TABLES:
  products:       Catalog rows; stock_quantity carries a >= 0 CHECK as
                  defense in depth behind the engine's pre-validation
  cart_items:     Session-scoped lines, UNIQUE(session_id, product_id)
  orders:         Immutable purchase records
  order_items:    Price-at-purchase history; survives product deletion
  wishlist_items: Session-scoped references
  subscribers:    Mailing list, UNIQUE(email)

CONCURRENCY:
  SQLite parses but ignores SELECT ... FOR UPDATE, so row-level locking
  cannot be expressed. Instead, every transaction is opened with
  BEGIN IMMEDIATE (_txlock=immediate), which takes the database write lock
  at BEGIN. Combined with a single pooled connection and a store-level
  mutex, concurrent checkouts serialize before their first stock read -
  the read-validate-write sequence is atomic per transaction. On
  PostgreSQL the equivalent is SELECT ... FOR UPDATE in ProductForUpdate.
  The two-concurrent-checkouts test in sqlite_test.go verifies the
  one-winner property against this backend.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block during checkout commits
  - Single writer at a time
  - Better crash recovery

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

USAGE:
  store, err := sqlite.New("./data/storefront.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - shop/store.go: Interface definitions
  - checkout/engine.go: The checkout transaction using WithTx
  - shop/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mandorla/storefront/shop"
)

// Store implements shop.Store using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex // serializes checkout transactions; SQLite has one writer
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3",
		dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single pooled connection avoids
	// SQLITE_BUSY under write contention and keeps :memory: databases
	// coherent across the pool.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		price TEXT NOT NULL,
		weight TEXT NOT NULL DEFAULT '',
		grade TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		nutritional_info TEXT NOT NULL DEFAULT '{}',
		sustainability_info TEXT NOT NULL DEFAULT '',
		-- Defense in depth: the engine pre-validates, the schema backstops.
		stock_quantity INTEGER NOT NULL DEFAULT 100 CHECK (stock_quantity >= 0)
	);

	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);

	CREATE TABLE IF NOT EXISTS cart_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		product_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		UNIQUE(session_id, product_id)
	);

	CREATE INDEX IF NOT EXISTS idx_cart_items_session ON cart_items(session_id);

	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_name TEXT NOT NULL,
		email TEXT NOT NULL,
		address TEXT NOT NULL,
		city TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'completed',
		created_at DATETIME NOT NULL
	);

	-- No FK to products: order items are audit records and must survive
	-- product deletion. Orders own their items.
	CREATE TABLE IF NOT EXISTS order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price_at_purchase TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

	CREATE TABLE IF NOT EXISTS wishlist_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		product_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(session_id, product_id)
	);

	CREATE INDEX IF NOT EXISTS idx_wishlist_session ON wishlist_items(session_id);

	CREATE TABLE IF NOT EXISTS subscribers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CATALOG (shop.CatalogStore)
// =============================================================================

// ListProducts returns catalog rows matching the filter.
func (s *Store) ListProducts(ctx context.Context, filter shop.ProductFilter) ([]shop.Product, error) {
	query := `SELECT * FROM products`
	var conditions []string
	var args []any

	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, "CAST(price AS REAL) >= ?")
		args = append(args, filter.MinPrice.InexactFloat64())
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, "CAST(price AS REAL) <= ?")
		args = append(args, filter.MaxPrice.InexactFloat64())
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	switch filter.SortBy {
	case shop.SortPriceAsc:
		query += " ORDER BY CAST(price AS REAL) ASC"
	case shop.SortPriceDesc:
		query += " ORDER BY CAST(price AS REAL) DESC"
	case shop.SortName:
		query += " ORDER BY name ASC"
	default:
		query += " ORDER BY id ASC"
	}

	var products []shop.Product
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// GetProduct returns a product by ID, or nil if missing.
func (s *Store) GetProduct(ctx context.Context, id int64) (*shop.Product, error) {
	var p shop.Product
	err := s.db.GetContext(ctx, &p, "SELECT * FROM products WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductBySlug returns a product by its unique slug, or nil if missing.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*shop.Product, error) {
	var p shop.Product
	err := s.db.GetContext(ctx, &p, "SELECT * FROM products WHERE slug = ?", slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SearchProducts matches name, description, and category case-insensitively.
func (s *Store) SearchProducts(ctx context.Context, query string) ([]shop.Product, error) {
	pattern := "%" + strings.ToLower(query) + "%"

	var products []shop.Product
	err := s.db.SelectContext(ctx, &products, `
		SELECT * FROM products
		WHERE lower(name) LIKE ? OR lower(description) LIKE ? OR lower(category) LIKE ?
		ORDER BY id ASC
	`, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// SaveProduct inserts a product or updates it by slug. Used by seeding.
func (s *Store) SaveProduct(ctx context.Context, p shop.Product) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products
		(slug, name, category, price, weight, grade, origin, description,
		 image_url, nutritional_info, sustainability_info, stock_quantity)
		VALUES (:slug, :name, :category, :price, :weight, :grade, :origin, :description,
		 :image_url, :nutritional_info, :sustainability_info, :stock_quantity)
		ON CONFLICT(slug) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			price = excluded.price,
			weight = excluded.weight,
			grade = excluded.grade,
			origin = excluded.origin,
			description = excluded.description,
			image_url = excluded.image_url,
			nutritional_info = excluded.nutritional_info,
			sustainability_info = excluded.sustainability_info
	`, p)
	return err
}

// DeleteProduct removes a catalog row. Cart lines referencing it are left in
// place; checkout surfaces them as ProductNotFoundError.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	return err
}

// =============================================================================
// CART (shop.CartStore)
// =============================================================================

// AddCartItem upserts a cart line, incrementing quantity on conflict.
func (s *Store) AddCartItem(ctx context.Context, sessionID string, productID int64, quantity int) (*shop.CartItem, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items (session_id, product_id, quantity)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id, product_id) DO UPDATE SET
			quantity = quantity + excluded.quantity
	`, sessionID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	var item shop.CartItem
	err = s.db.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE session_id = ? AND product_id = ?",
		sessionID, productID)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateCartItem sets an absolute quantity; zero or less removes the line.
func (s *Store) UpdateCartItem(ctx context.Context, sessionID string, productID int64, quantity int) error {
	if quantity <= 0 {
		return s.RemoveCartItem(ctx, sessionID, productID)
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = ? WHERE session_id = ? AND product_id = ?",
		quantity, sessionID, productID)
	return err
}

// RemoveCartItem deletes one line from the session's cart.
func (s *Store) RemoveCartItem(ctx context.Context, sessionID string, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE session_id = ? AND product_id = ?",
		sessionID, productID)
	return err
}

// CartWithProducts returns the session's lines with products attached.
// Lines whose product has been deleted keep a nil Product.
func (s *Store) CartWithProducts(ctx context.Context, sessionID string) ([]shop.CartLine, error) {
	var lines []shop.CartLine
	err := s.db.SelectContext(ctx, &lines, `
		SELECT product_id, quantity FROM cart_items
		WHERE session_id = ?
		ORDER BY product_id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(lines) == 0 {
		return lines, nil
	}

	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var products []shop.Product
	if err := s.db.SelectContext(ctx, &products, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	byID := make(map[int64]*shop.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for i := range lines {
		lines[i].Product = byID[lines[i].ProductID]
	}
	return lines, nil
}

// ClearCart removes all lines for a session. Idempotent.
func (s *Store) ClearCart(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE session_id = ?", sessionID)
	return err
}

// =============================================================================
// WISHLIST (shop.WishlistStore)
// =============================================================================

// AddWishlistItem records a wishlist reference. Adding twice is a no-op.
func (s *Store) AddWishlistItem(ctx context.Context, sessionID string, productID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wishlist_items (session_id, product_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id, product_id) DO NOTHING
	`, sessionID, productID, time.Now().UTC())
	return err
}

// RemoveWishlistItem deletes one wishlist reference.
func (s *Store) RemoveWishlistItem(ctx context.Context, sessionID string, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM wishlist_items WHERE session_id = ? AND product_id = ?",
		sessionID, productID)
	return err
}

// WishlistWithProducts returns the wished products, oldest first.
func (s *Store) WishlistWithProducts(ctx context.Context, sessionID string) ([]shop.Product, error) {
	var products []shop.Product
	err := s.db.SelectContext(ctx, &products, `
		SELECT p.* FROM wishlist_items w
		JOIN products p ON p.id = w.product_id
		WHERE w.session_id = ?
		ORDER BY w.created_at ASC, w.id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist: %w", err)
	}
	return products, nil
}

// =============================================================================
// MAILING LIST (shop.SubscriberStore)
// =============================================================================

// Subscribe adds an email to the mailing list. Duplicate subscriptions are
// silently ignored.
func (s *Store) Subscribe(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (email, created_at)
		VALUES (?, ?)
		ON CONFLICT(email) DO NOTHING
	`, email, time.Now().UTC())
	return err
}

// =============================================================================
// ORDERS (shop.OrderStore)
// =============================================================================

// GetOrder returns an order with its items, or nil if missing.
func (s *Store) GetOrder(ctx context.Context, id int64) (*shop.Order, error) {
	var o shop.Order
	err := s.db.GetContext(ctx, &o, "SELECT * FROM orders WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &o.Items,
		"SELECT * FROM order_items WHERE order_id = ? ORDER BY id ASC", id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// =============================================================================
// CHECKOUT TRANSACTION (shop.CheckoutStore)
// =============================================================================

// WithTx executes fn within one database transaction. The connection opens
// transactions with BEGIN IMMEDIATE, so the write lock is held before the
// first stock read and concurrent checkouts serialize at BEGIN.
func (s *Store) WithTx(ctx context.Context, fn func(tx shop.CheckoutTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sqlx.Tx
}

func (ts *txStore) CartLines(ctx context.Context, sessionID string) ([]shop.CartLine, error) {
	var lines []shop.CartLine
	err := ts.tx.SelectContext(ctx, &lines, `
		SELECT product_id, quantity FROM cart_items
		WHERE session_id = ?
		ORDER BY product_id ASC
	`, sessionID)
	return lines, err
}

// ProductForUpdate reads price and stock inside the write transaction.
// SQLite ignores FOR UPDATE; exclusivity comes from the immediate write
// lock taken at BEGIN.
func (ts *txStore) ProductForUpdate(ctx context.Context, productID int64) (*shop.Product, error) {
	var p shop.Product
	err := ts.tx.GetContext(ctx, &p, "SELECT * FROM products WHERE id = ?", productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (ts *txStore) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	res, err := ts.tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - ?
		WHERE id = ? AND stock_quantity >= ?
	`, quantity, productID, quantity)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// The engine validated under the same transaction, so this only
		// fires on a logic bug. Refuse to underflow regardless.
		return fmt.Errorf("stock underflow for product %d: %w", productID, shop.ErrInsufficientStock)
	}
	return nil
}

func (ts *txStore) CreateOrder(ctx context.Context, order *shop.Order) (int64, error) {
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO orders (customer_name, email, address, city, total_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, order.CustomerName, order.Email, order.Address, order.City,
		order.TotalAmount, string(order.Status), order.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (ts *txStore) AppendOrderItem(ctx context.Context, item *shop.OrderItem) error {
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase)
		VALUES (?, ?, ?, ?)
	`, item.OrderID, item.ProductID, item.Quantity, item.PriceAtPurchase)
	if err != nil {
		return err
	}
	item.ID, err = res.LastInsertId()
	return err
}

func (ts *txStore) ClearCart(ctx context.Context, sessionID string) error {
	_, err := ts.tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE session_id = ?", sessionID)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"cart_items", "order_items", "orders", "wishlist_items", "subscribers", "products"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
