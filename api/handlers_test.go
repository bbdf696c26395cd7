/*
handlers_test.go - HTTP API tests

PURPOSE:
  Drives the full router through httptest against the in-memory store:
  session cookie issuance, catalog listing and lookup, cart round-trips,
  checkout status mapping (201/400/404/409), order lookup, wishlist, and
  mailing-list idempotence.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandorla/storefront/checkout"
	"github.com/mandorla/storefront/shop"
	memstore "github.com/mandorla/storefront/shop/store"
)

// testClient wraps an httptest server and carries the session cookie across
// requests, like a browser would.
type testClient struct {
	t       *testing.T
	store   *memstore.Memory
	router  http.Handler
	cookies []*http.Cookie
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	store := memstore.NewMemory()
	engine := checkout.NewEngine(store, nil)
	handler := NewHandler(store, engine, nil)
	router := NewRouter(handler, []string{"http://localhost:3000"})
	return &testClient{t: t, store: store, router: router}
}

func (c *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	// Adopt any newly issued cookies for subsequent requests.
	for _, cookie := range rec.Result().Cookies() {
		c.cookies = append(c.cookies, cookie)
	}
	return rec
}

func (c *testClient) decode(rec *httptest.ResponseRecorder, into any) {
	c.t.Helper()
	require.NoError(c.t, json.NewDecoder(rec.Body).Decode(into))
}

func (c *testClient) addProduct(name, category, price string, stock int) shop.Product {
	c.t.Helper()
	return c.store.AddProduct(shop.Product{
		Slug:          name,
		Name:          name,
		Category:      category,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	})
}

func checkoutBody() CheckoutRequest {
	return CheckoutRequest{
		CustomerName: "Ada Lovelace",
		Email:        "ada@example.com",
		Address:      "12 Analytical Way",
		City:         "London",
	}
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSessionCookie_IssuedOnce(t *testing.T) {
	c := newTestClient(t)

	// WHEN making a first request with no cookie
	rec := c.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN a session cookie is issued
	require.Len(t, c.cookies, 1)
	cookie := c.cookies[0]
	assert.Equal(t, "session_id", cookie.Name)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	// AND subsequent requests with the cookie get no new one
	rec = c.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, c.cookies, 1)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestListProducts_SortAndFilter(t *testing.T) {
	c := newTestClient(t)
	c.addProduct("mamra", "almonds", "42.00", 10)
	c.addProduct("kerman", "pistachios", "19.00", 10)
	c.addProduct("nonpareil", "almonds", "28.00", 10)

	rec := c.do(http.MethodGet, "/api/products?sort_by=price_asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []ProductDTO
	c.decode(rec, &products)
	require.Len(t, products, 3)
	assert.Equal(t, "kerman", products[0].Slug)
	assert.Equal(t, "mamra", products[2].Slug)

	rec = c.do(http.MethodGet, "/api/products?category=almonds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c.decode(rec, &products)
	assert.Len(t, products, 2)

	rec = c.do(http.MethodGet, "/api/products?sort_by=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodGet, "/api/products?min_price=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct_ByIDAndSlug(t *testing.T) {
	c := newTestClient(t)
	p := c.addProduct("chandler-walnuts", "walnuts", "34.00", 10)

	rec := c.do(http.MethodGet, fmt.Sprintf("/api/products/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byID ProductDTO
	c.decode(rec, &byID)
	assert.Equal(t, p.ID, byID.ID)
	assert.InDelta(t, 34.00, byID.Price, 0.001)

	rec = c.do(http.MethodGet, "/api/products/chandler-walnuts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bySlug ProductDTO
	c.decode(rec, &bySlug)
	assert.Equal(t, p.ID, bySlug.ID)

	rec = c.do(http.MethodGet, "/api/products/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchProducts(t *testing.T) {
	c := newTestClient(t)
	c.addProduct("sea-salt-smoke-almonds", "almonds", "24.00", 10)

	rec := c.do(http.MethodGet, "/api/search?q=SALT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []ProductDTO
	c.decode(rec, &products)
	require.Len(t, products, 1)

	rec = c.do(http.MethodGet, "/api/search?q=", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c.decode(rec, &products)
	assert.Empty(t, products)
}

// =============================================================================
// CART
// =============================================================================

func TestCart_RoundTrip(t *testing.T) {
	c := newTestClient(t)
	p := c.addProduct("honey-glazed", "almonds", "22.00", 10)

	// Add twice: the line increments
	rec := c.do(http.MethodPost, "/api/cart", AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodPost, "/api/cart", AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	var line CartLineDTO
	c.decode(rec, &line)
	assert.Equal(t, 3, line.Quantity)
	require.NotNil(t, line.Product)

	// Absolute update
	rec = c.do(http.MethodPut, fmt.Sprintf("/api/cart/%d", p.ID), UpdateCartRequest{Quantity: 5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lines []CartLineDTO
	c.decode(rec, &lines)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)

	// Remove
	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/cart/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodGet, "/api/cart", nil)
	c.decode(rec, &lines)
	assert.Empty(t, lines)
}

func TestAddToCart_Validation(t *testing.T) {
	c := newTestClient(t)
	p := c.addProduct("wildflower", "almonds", "22.00", 10)

	rec := c.do(http.MethodPost, "/api/cart", AddToCartRequest{ProductID: p.ID, Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/api/cart", AddToCartRequest{ProductID: 999, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CHECKOUT
// =============================================================================

func TestCheckout_HappyPath(t *testing.T) {
	// GIVEN a cart with 2 units of a 24.00 product
	c := newTestClient(t)
	p := c.addProduct("sea-salt-smoke", "almonds", "24.00", 5)
	rec := c.do(http.MethodPost, "/api/cart", AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN posting the checkout
	rec = c.do(http.MethodPost, "/api/checkout", checkoutBody())

	// THEN 201 with the server-computed total
	require.Equal(t, http.StatusCreated, rec.Code)
	var order OrderDTO
	c.decode(rec, &order)
	assert.NotZero(t, order.ID)
	assert.InDelta(t, 48.00, order.TotalAmount, 0.001)
	assert.Equal(t, "completed", order.Status)
	require.Len(t, order.Items, 1)
	assert.InDelta(t, 24.00, order.Items[0].PriceAtPurchase, 0.001)

	// AND the order is retrievable for the confirmation page
	rec = c.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", order.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored OrderDTO
	c.decode(rec, &stored)
	assert.Equal(t, order.ID, stored.ID)
	assert.InDelta(t, 48.00, stored.TotalAmount, 0.001)

	// AND the cart is now empty
	rec = c.do(http.MethodGet, "/api/cart", nil)
	var lines []CartLineDTO
	c.decode(rec, &lines)
	assert.Empty(t, lines)
}

func TestCheckout_EmptyCartIs400(t *testing.T) {
	c := newTestClient(t)
	rec := c.do(http.MethodPost, "/api/checkout", checkoutBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_MissingFieldIs400(t *testing.T) {
	c := newTestClient(t)
	p := c.addProduct("nonpareil", "almonds", "28.00", 5)
	c.do(http.MethodPost, "/api/cart", AddToCartRequest{ProductID: p.ID, Quantity: 1})

	body := checkoutBody()
	body.Email = ""
	rec := c.do(http.MethodPost, "/api/checkout", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Whitespace-only fields are treated as missing.
	body = checkoutBody()
	body.City = "   "
	rec = c.do(http.MethodPost, "/api/checkout", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_InsufficientStockIs409(t *testing.T) {
	// GIVEN a cart holding 2 units while only 1 remains in stock
	c := newTestClient(t)
	p := c.addProduct("scarce", "almonds", "50.00", 1)
	rec := c.do(http.MethodPost, "/api/cart", AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN checking out
	rec = c.do(http.MethodPost, "/api/checkout", checkoutBody())

	// THEN 409 with the structured stock payload
	require.Equal(t, http.StatusConflict, rec.Code)
	var resp StockErrorResponse
	c.decode(rec, &resp)
	assert.Equal(t, p.ID, resp.ProductID)
	assert.Equal(t, "scarce", resp.ProductName)
	assert.Equal(t, 1, resp.Available)
	assert.Equal(t, 2, resp.Requested)

	// AND the cart survives for the client to adjust
	rec = c.do(http.MethodGet, "/api/cart", nil)
	var lines []CartLineDTO
	c.decode(rec, &lines)
	assert.Len(t, lines, 1)
}

func TestCheckout_DeletedProductIs404(t *testing.T) {
	c := newTestClient(t)
	p := c.addProduct("discontinued", "almonds", "15.00", 5)
	c.do(http.MethodPost, "/api/cart", AddToCartRequest{ProductID: p.ID, Quantity: 1})
	c.store.DeleteProduct(p.ID)

	rec := c.do(http.MethodPost, "/api/checkout", checkoutBody())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrder_Missing(t *testing.T) {
	c := newTestClient(t)

	rec := c.do(http.MethodGet, "/api/orders/12345", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodGet, "/api/orders/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// WISHLIST / MAILING LIST
// =============================================================================

func TestWishlist_RoundTrip(t *testing.T) {
	c := newTestClient(t)
	p := c.addProduct("wished", "pistachios", "19.00", 10)

	rec := c.do(http.MethodPost, "/api/wishlist", WishlistRequest{ProductID: p.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodPost, "/api/wishlist", WishlistRequest{ProductID: p.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/api/wishlist", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []ProductDTO
	c.decode(rec, &products)
	require.Len(t, products, 1, "wishlist add is idempotent")

	rec = c.do(http.MethodPost, "/api/wishlist", WishlistRequest{ProductID: 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/wishlist/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodGet, "/api/wishlist", nil)
	c.decode(rec, &products)
	assert.Empty(t, products)
}

func TestSubscribe(t *testing.T) {
	c := newTestClient(t)

	rec := c.do(http.MethodPost, "/api/subscribe", SubscribeRequest{Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Duplicate subscription succeeds silently
	rec = c.do(http.MethodPost, "/api/subscribe", SubscribeRequest{Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodPost, "/api/subscribe", SubscribeRequest{Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// IMAGE PROXY
// =============================================================================

func TestOptimizeImage_RejectsBadURLs(t *testing.T) {
	c := newTestClient(t)

	rec := c.do(http.MethodGet, "/api/optimize-image", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodGet, "/api/optimize-image?url=ftp://example.com/x.jpg", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
