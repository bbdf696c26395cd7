// Package store provides an in-memory shop.Store implementation for testing
// and local development.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mandorla/storefront/shop"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements shop.Store with plain maps. WithTx serializes checkout
// transactions behind the store lock and rolls back by restoring a snapshot,
// which gives the same all-or-nothing semantics as the SQLite store.
type Memory struct {
	mu sync.RWMutex

	nextProductID int64
	nextCartID    int64
	nextOrderID   int64
	nextItemID    int64

	products    map[int64]shop.Product
	productIDs  []int64 // insertion order for unsorted listings
	carts       map[string]map[int64]cartRow
	wishlists   map[string]map[int64]time.Time
	subscribers map[string]time.Time
	orders      map[int64]shop.Order
}

type cartRow struct {
	id       int64
	quantity int
}

func NewMemory() *Memory {
	return &Memory{
		products:    make(map[int64]shop.Product),
		carts:       make(map[string]map[int64]cartRow),
		wishlists:   make(map[string]map[int64]time.Time),
		subscribers: make(map[string]time.Time),
		orders:      make(map[int64]shop.Order),
	}
}

// AddProduct inserts a product, assigning an ID when none is set. Used by
// tests and local seeding.
func (m *Memory) AddProduct(p shop.Product) shop.Product {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == 0 {
		m.nextProductID++
		p.ID = m.nextProductID
	} else if p.ID > m.nextProductID {
		m.nextProductID = p.ID
	}
	m.products[p.ID] = p
	m.productIDs = append(m.productIDs, p.ID)
	return p
}

// DeleteProduct removes a product without touching cart rows that reference
// it. Checkout surfaces such dangling lines as ProductNotFoundError.
func (m *Memory) DeleteProduct(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.products, id)
	for i, pid := range m.productIDs {
		if pid == id {
			m.productIDs = append(m.productIDs[:i], m.productIDs[i+1:]...)
			break
		}
	}
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) ListProducts(_ context.Context, filter shop.ProductFilter) ([]shop.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []shop.Product
	for _, id := range m.productIDs {
		p, ok := m.products[id]
		if !ok {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		result = append(result, p)
	}

	switch filter.SortBy {
	case shop.SortPriceAsc:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Price.LessThan(result[j].Price) })
	case shop.SortPriceDesc:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Price.GreaterThan(result[j].Price) })
	case shop.SortName:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	}
	return result, nil
}

func (m *Memory) GetProduct(_ context.Context, id int64) (*shop.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) GetProductBySlug(_ context.Context, slug string) (*shop.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.products {
		if p.Slug == slug {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *Memory) SearchProducts(_ context.Context, query string) ([]shop.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	var result []shop.Product
	for _, id := range m.productIDs {
		p, ok := m.products[id]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(p.Category), q) {
			result = append(result, p)
		}
	}
	return result, nil
}

// =============================================================================
// CART
// =============================================================================

func (m *Memory) AddCartItem(_ context.Context, sessionID string, productID int64, quantity int) (*shop.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart := m.carts[sessionID]
	if cart == nil {
		cart = make(map[int64]cartRow)
		m.carts[sessionID] = cart
	}

	row, exists := cart[productID]
	if exists {
		row.quantity += quantity
	} else {
		m.nextCartID++
		row = cartRow{id: m.nextCartID, quantity: quantity}
	}
	cart[productID] = row

	return &shop.CartItem{
		ID:        row.id,
		SessionID: sessionID,
		ProductID: productID,
		Quantity:  row.quantity,
	}, nil
}

func (m *Memory) UpdateCartItem(_ context.Context, sessionID string, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart := m.carts[sessionID]
	if cart == nil {
		return nil
	}
	if quantity <= 0 {
		delete(cart, productID)
		return nil
	}
	row := cart[productID]
	row.quantity = quantity
	cart[productID] = row
	return nil
}

func (m *Memory) RemoveCartItem(_ context.Context, sessionID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cart := m.carts[sessionID]; cart != nil {
		delete(cart, productID)
	}
	return nil
}

func (m *Memory) CartWithProducts(_ context.Context, sessionID string) ([]shop.CartLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.cartLinesLocked(sessionID, true), nil
}

func (m *Memory) ClearCart(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, sessionID)
	return nil
}

func (m *Memory) cartLinesLocked(sessionID string, withProducts bool) []shop.CartLine {
	cart := m.carts[sessionID]
	var lines []shop.CartLine
	for productID, row := range cart {
		line := shop.CartLine{ProductID: productID, Quantity: row.quantity}
		if withProducts {
			if p, ok := m.products[productID]; ok {
				p := p
				line.Product = &p
			}
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

// =============================================================================
// WISHLIST / MAILING LIST
// =============================================================================

func (m *Memory) AddWishlistItem(_ context.Context, sessionID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wl := m.wishlists[sessionID]
	if wl == nil {
		wl = make(map[int64]time.Time)
		m.wishlists[sessionID] = wl
	}
	if _, exists := wl[productID]; !exists {
		wl[productID] = time.Now().UTC()
	}
	return nil
}

func (m *Memory) RemoveWishlistItem(_ context.Context, sessionID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wl := m.wishlists[sessionID]; wl != nil {
		delete(wl, productID)
	}
	return nil
}

func (m *Memory) WishlistWithProducts(_ context.Context, sessionID string) ([]shop.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wl := m.wishlists[sessionID]
	var ids []int64
	for id := range wl {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return wl[ids[i]].Before(wl[ids[j]]) })

	var result []shop.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *Memory) Subscribe(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subscribers[email]; !exists {
		m.subscribers[email] = time.Now().UTC()
	}
	return nil
}

// =============================================================================
// ORDERS
// =============================================================================

func (m *Memory) GetOrder(_ context.Context, id int64) (*shop.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	items := make([]shop.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return &o, nil
}

// =============================================================================
// CHECKOUT TRANSACTION
// =============================================================================

// WithTx holds the store lock for the whole transaction, so concurrent
// checkouts serialize exactly as they do against the SQLite write lock.
// Rollback restores a snapshot taken at transaction start.
func (m *Memory) WithTx(_ context.Context, fn func(tx shop.CheckoutTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshotLocked()
	if err := fn(&txMemory{m: m}); err != nil {
		m.restoreLocked(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	nextCartID  int64
	nextOrderID int64
	nextItemID  int64
	products    map[int64]shop.Product
	carts       map[string]map[int64]cartRow
	orders      map[int64]shop.Order
}

func (m *Memory) snapshotLocked() memorySnapshot {
	products := make(map[int64]shop.Product, len(m.products))
	for id, p := range m.products {
		products[id] = p
	}
	carts := make(map[string]map[int64]cartRow, len(m.carts))
	for sid, cart := range m.carts {
		c := make(map[int64]cartRow, len(cart))
		for pid, row := range cart {
			c[pid] = row
		}
		carts[sid] = c
	}
	orders := make(map[int64]shop.Order, len(m.orders))
	for id, o := range m.orders {
		items := make([]shop.OrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
		orders[id] = o
	}
	return memorySnapshot{
		nextCartID:  m.nextCartID,
		nextOrderID: m.nextOrderID,
		nextItemID:  m.nextItemID,
		products:    products,
		carts:       carts,
		orders:      orders,
	}
}

func (m *Memory) restoreLocked(snap memorySnapshot) {
	m.nextCartID = snap.nextCartID
	m.nextOrderID = snap.nextOrderID
	m.nextItemID = snap.nextItemID
	m.products = snap.products
	m.carts = snap.carts
	m.orders = snap.orders
}

// txMemory exposes CheckoutTx operations over the already-locked store.
type txMemory struct {
	m *Memory
}

func (t *txMemory) CartLines(_ context.Context, sessionID string) ([]shop.CartLine, error) {
	return t.m.cartLinesLocked(sessionID, false), nil
}

func (t *txMemory) ProductForUpdate(_ context.Context, productID int64) (*shop.Product, error) {
	p, ok := t.m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *txMemory) DecrementStock(_ context.Context, productID int64, quantity int) error {
	p, ok := t.m.products[productID]
	if !ok {
		return &shop.ProductNotFoundError{ProductID: productID}
	}
	if p.StockQuantity < quantity {
		return &shop.InsufficientStockError{
			ProductID: p.ID,
			Name:      p.Name,
			Available: p.StockQuantity,
			Requested: quantity,
		}
	}
	p.StockQuantity -= quantity
	t.m.products[productID] = p
	return nil
}

func (t *txMemory) CreateOrder(_ context.Context, order *shop.Order) (int64, error) {
	t.m.nextOrderID++
	o := *order
	o.ID = t.m.nextOrderID
	o.Items = nil
	t.m.orders[o.ID] = o
	return o.ID, nil
}

func (t *txMemory) AppendOrderItem(_ context.Context, item *shop.OrderItem) error {
	t.m.nextItemID++
	item.ID = t.m.nextItemID
	o, ok := t.m.orders[item.OrderID]
	if !ok {
		return shop.ErrOrderNotFound
	}
	o.Items = append(o.Items, *item)
	t.m.orders[item.OrderID] = o
	return nil
}

func (t *txMemory) ClearCart(_ context.Context, sessionID string) error {
	delete(t.m.carts, sessionID)
	return nil
}
