/*
engine_test.go - Checkout engine behavior tests

PURPOSE:
  Exercises the stock reservation transaction against the in-memory store:
  happy path, every abort condition, rollback atomicity, price integrity,
  and the two-sessions-race-for-last-unit scenario.

TEST STYLE:
  GIVEN/WHEN/THEN comments mark the phases of each test. The SQLite-backed
  equivalents live in store/sqlite/sqlite_test.go; this file pins the engine
  logic itself, independent of SQL.
*/
package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandorla/storefront/shop"
	memstore "github.com/mandorla/storefront/shop/store"
)

func newTestStore(t *testing.T) *memstore.Memory {
	t.Helper()
	return memstore.NewMemory()
}

func validInfo() shop.CustomerInfo {
	return shop.CustomerInfo{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Address: "12 Analytical Way",
		City:    "London",
	}
}

func addProduct(t *testing.T, m *memstore.Memory, name string, price string, stock int) shop.Product {
	t.Helper()
	return m.AddProduct(shop.Product{
		Slug:          name,
		Name:          name,
		Category:      "almonds",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	})
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestCheckout_Success(t *testing.T) {
	// GIVEN a product with 5 units in stock and a cart holding 2 of them
	ctx := context.Background()
	m := newTestStore(t)
	p := addProduct(t, m, "sea-salt-smoke-almonds", "24.00", 5)

	_, err := m.AddCartItem(ctx, "sess-1", p.ID, 2)
	require.NoError(t, err)

	engine := NewEngine(m, nil)

	// WHEN the session checks out
	order, err := engine.Checkout(ctx, "sess-1", validInfo())

	// THEN the order is created with the server-computed total
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.NotZero(t, order.ID)
	assert.Equal(t, shop.OrderStatusCompleted, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("48.00")),
		"total should be 24.00 x 2, got %s", order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, p.ID, order.Items[0].ProductID)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.Items[0].PriceAtPurchase.Equal(p.Price))

	// AND stock is deducted
	got, err := m.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)

	// AND the cart is empty
	lines, err := m.CartWithProducts(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	// AND the order is durable
	stored, err := m.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Ada Lovelace", stored.CustomerName)
	require.Len(t, stored.Items, 1)
}

func TestCheckout_MultipleLines(t *testing.T) {
	// GIVEN a cart with two products
	ctx := context.Background()
	m := newTestStore(t)
	a := addProduct(t, m, "mamra-almonds", "42.00", 10)
	b := addProduct(t, m, "kerman-pistachios", "19.00", 10)

	_, err := m.AddCartItem(ctx, "sess-1", b.ID, 3)
	require.NoError(t, err)
	_, err = m.AddCartItem(ctx, "sess-1", a.ID, 1)
	require.NoError(t, err)

	engine := NewEngine(m, nil)

	// WHEN checking out
	order, err := engine.Checkout(ctx, "sess-1", validInfo())

	// THEN every line is deducted and priced, ordered by product ID
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.Equal(t, a.ID, order.Items[0].ProductID)
	assert.Equal(t, b.ID, order.Items[1].ProductID)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("99.00")),
		"42.00 + 3 x 19.00 = 99.00, got %s", order.TotalAmount)

	gotA, _ := m.GetProduct(ctx, a.ID)
	gotB, _ := m.GetProduct(ctx, b.ID)
	assert.Equal(t, 9, gotA.StockQuantity)
	assert.Equal(t, 7, gotB.StockQuantity)
}

func TestCheckout_PriceIntegrity(t *testing.T) {
	// GIVEN the price stored in the catalog differs from whatever a client
	// might have displayed earlier
	ctx := context.Background()
	m := newTestStore(t)
	p := addProduct(t, m, "chandler-walnuts", "34.00", 5)
	_, err := m.AddCartItem(ctx, "sess-1", p.ID, 1)
	require.NoError(t, err)

	engine := NewEngine(m, nil)

	// WHEN checking out (the request carries no price fields at all)
	order, err := engine.Checkout(ctx, "sess-1", validInfo())

	// THEN the total comes from the catalog row read inside the transaction
	require.NoError(t, err)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("34.00")))
	assert.True(t, order.Items[0].PriceAtPurchase.Equal(decimal.RequireFromString("34.00")))
}

// =============================================================================
// ABORT CONDITIONS
// =============================================================================

func TestCheckout_EmptyCart(t *testing.T) {
	// GIVEN a session with no cart lines
	ctx := context.Background()
	m := newTestStore(t)
	engine := NewEngine(m, nil)

	// WHEN checking out
	order, err := engine.Checkout(ctx, "sess-empty", validInfo())

	// THEN the empty-cart sentinel comes back and nothing was written
	require.ErrorIs(t, err, shop.ErrEmptyCart)
	assert.Nil(t, order)
	assert.True(t, shop.IsClientError(err))
}

func TestCheckout_MissingCustomerFields(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)
	p := addProduct(t, m, "honey-glazed", "22.00", 5)
	_, err := m.AddCartItem(ctx, "sess-1", p.ID, 1)
	require.NoError(t, err)

	engine := NewEngine(m, nil)

	cases := []struct {
		name  string
		info  shop.CustomerInfo
		field string
	}{
		{"missing name", shop.CustomerInfo{Email: "a@b.c", Address: "x", City: "y"}, "customer_name"},
		{"missing email", shop.CustomerInfo{Name: "A", Address: "x", City: "y"}, "email"},
		{"missing address", shop.CustomerInfo{Name: "A", Email: "a@b.c", City: "y"}, "address"},
		{"missing city", shop.CustomerInfo{Name: "A", Email: "a@b.c", Address: "x"}, "city"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order, err := engine.Checkout(ctx, "sess-1", tc.info)
			require.ErrorIs(t, err, shop.ErrInvalidInput)
			assert.Nil(t, order)

			var verr *shop.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	// AND validation failures never touch the cart or stock
	got, _ := m.GetProduct(ctx, p.ID)
	assert.Equal(t, 5, got.StockQuantity)
	lines, _ := m.CartWithProducts(ctx, "sess-1")
	assert.Len(t, lines, 1)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	// GIVEN a cart requesting more units than exist
	ctx := context.Background()
	m := newTestStore(t)
	p := addProduct(t, m, "nonpareil-supreme", "28.00", 2)
	_, err := m.AddCartItem(ctx, "sess-1", p.ID, 3)
	require.NoError(t, err)

	engine := NewEngine(m, nil)

	// WHEN checking out
	order, err := engine.Checkout(ctx, "sess-1", validInfo())

	// THEN the structured error names the product and the available quantity
	assert.Nil(t, order)
	var stockErr *shop.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, p.ID, stockErr.ProductID)
	assert.Equal(t, "nonpareil-supreme", stockErr.Name)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.ErrorIs(t, err, shop.ErrInsufficientStock)

	// AND nothing changed: stock intact, cart intact, no order
	got, _ := m.GetProduct(ctx, p.ID)
	assert.Equal(t, 2, got.StockQuantity)
	lines, _ := m.CartWithProducts(ctx, "sess-1")
	assert.Len(t, lines, 1)
}

func TestCheckout_PartialShortfallRollsBackEverything(t *testing.T) {
	// GIVEN two lines where the second is short. Validation happens before
	// any decrement, so even the satisfiable first line must not be touched.
	ctx := context.Background()
	m := newTestStore(t)
	ok := addProduct(t, m, "plenty", "10.00", 100)
	short := addProduct(t, m, "scarce", "50.00", 1)

	_, err := m.AddCartItem(ctx, "sess-1", ok.ID, 2)
	require.NoError(t, err)
	_, err = m.AddCartItem(ctx, "sess-1", short.ID, 5)
	require.NoError(t, err)

	engine := NewEngine(m, nil)

	// WHEN checking out
	_, err = engine.Checkout(ctx, "sess-1", validInfo())

	// THEN the shortfall aborts the whole checkout
	var stockErr *shop.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, short.ID, stockErr.ProductID)

	gotOK, _ := m.GetProduct(ctx, ok.ID)
	gotShort, _ := m.GetProduct(ctx, short.ID)
	assert.Equal(t, 100, gotOK.StockQuantity, "no line may be deducted on abort")
	assert.Equal(t, 1, gotShort.StockQuantity)

	lines, _ := m.CartWithProducts(ctx, "sess-1")
	assert.Len(t, lines, 2, "cart must survive a failed checkout")
}

func TestCheckout_DanglingCartLine(t *testing.T) {
	// GIVEN a cart line whose product was deleted after being added
	ctx := context.Background()
	m := newTestStore(t)
	p := addProduct(t, m, "discontinued", "15.00", 5)
	_, err := m.AddCartItem(ctx, "sess-1", p.ID, 1)
	require.NoError(t, err)
	m.DeleteProduct(p.ID)

	engine := NewEngine(m, nil)

	// WHEN checking out
	order, err := engine.Checkout(ctx, "sess-1", validInfo())

	// THEN the checkout aborts rather than silently skipping the line
	assert.Nil(t, order)
	require.ErrorIs(t, err, shop.ErrProductNotFound)
	var nfErr *shop.ProductNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, p.ID, nfErr.ProductID)

	// AND the cart keeps the dangling line for the client to resolve
	lines, _ := m.CartWithProducts(ctx, "sess-1")
	assert.Len(t, lines, 1)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestCheckout_TwoSessionsRaceForLastUnit(t *testing.T) {
	// GIVEN one unit of stock and two sessions each holding one in their cart
	ctx := context.Background()
	m := newTestStore(t)
	p := addProduct(t, m, "last-one", "30.00", 1)

	_, err := m.AddCartItem(ctx, "sess-a", p.ID, 1)
	require.NoError(t, err)
	_, err = m.AddCartItem(ctx, "sess-b", p.ID, 1)
	require.NoError(t, err)

	engine := NewEngine(m, nil)

	// WHEN both sessions check out concurrently
	var wg sync.WaitGroup
	results := make([]error, 2)
	orders := make([]*shop.Order, 2)
	for i, sid := range []string{"sess-a", "sess-b"} {
		wg.Add(1)
		go func(i int, sid string) {
			defer wg.Done()
			orders[i], results[i] = engine.Checkout(ctx, sid, validInfo())
		}(i, sid)
	}
	wg.Wait()

	// THEN exactly one commits and the other sees insufficient stock
	var wins, losses int
	for i := range results {
		if results[i] == nil {
			wins++
			assert.True(t, orders[i].TotalAmount.Equal(decimal.RequireFromString("30.00")))
		} else {
			losses++
			var stockErr *shop.InsufficientStockError
			require.ErrorAs(t, results[i], &stockErr)
			assert.Equal(t, 0, stockErr.Available, "loser must observe the winner's deduction")
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	// AND stock ends at exactly zero, never negative
	got, _ := m.GetProduct(ctx, p.ID)
	assert.Equal(t, 0, got.StockQuantity)
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

func TestCheckout_InfrastructureErrorIsWrapped(t *testing.T) {
	// GIVEN a store whose transaction always fails
	engine := NewEngine(failingStore{}, nil)

	// WHEN checking out
	_, err := engine.Checkout(context.Background(), "sess-1", validInfo())

	// THEN the failure is wrapped as a retryable checkout failure, not leaked
	require.ErrorIs(t, err, shop.ErrCheckoutFailed)
	assert.True(t, shop.IsRetryable(err))
	assert.False(t, shop.IsClientError(err))
}

type failingStore struct{}

func (failingStore) WithTx(ctx context.Context, fn func(tx shop.CheckoutTx) error) error {
	return assert.AnError
}
