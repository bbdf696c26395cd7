/*
handlers.go - HTTP API handlers for the storefront

PURPOSE:
  Exposes the catalog, cart, wishlist, mailing list, and checkout via REST.
  Handles HTTP request/response and JSON serialization, and delegates to the
  store and the checkout engine.

ENDPOINTS:
  Catalog:
    GET    /api/products            List (category, sort_by, min_price, max_price)
    GET    /api/products/{id}       Get by ID or slug
    GET    /api/search?q=           Free-text search

  Cart (session-scoped):
    GET    /api/cart                Lines with products
    POST   /api/cart                Add/increment a line
    PUT    /api/cart/{productID}    Set absolute quantity (0 removes)
    DELETE /api/cart/{productID}    Remove a line

  Checkout:
    POST   /api/checkout            Atomic stock reservation + order
    GET    /api/orders/{id}         Order confirmation lookup

  Wishlist (session-scoped):
    GET    /api/wishlist
    POST   /api/wishlist
    DELETE /api/wishlist/{productID}

  Misc:
    POST   /api/subscribe           Mailing list (idempotent)
    GET    /api/optimize-image      Image proxy/resize (image.go)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, empty cart, invalid input
  - 404: Resource not found (including a cart line whose product is gone)
  - 409: Insufficient stock (names the product and available quantity)
  - 500: Storage failures (transaction rolled back, safe to retry)

SECURITY NOTE:
  No authentication. Sessions identify browsers, not customers.

SEE ALSO:
  - dto.go: Request/response data structures
  - session.go: Session cookie middleware
  - checkout/engine.go: The checkout transaction
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mandorla/storefront/checkout"
	"github.com/mandorla/storefront/shop"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  shop.Store
	Engine *checkout.Engine
	Logger *zap.Logger

	images *imageProxy
}

// NewHandler creates a new handler backed by the given store and engine.
func NewHandler(store shop.Store, engine *checkout.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:  store,
		Engine: engine,
		Logger: logger,
		images: newImageProxy(),
	}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListProducts returns catalog entries, optionally filtered and sorted.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := shop.ProductFilter{
		Category: r.URL.Query().Get("category"),
	}

	switch sortBy := r.URL.Query().Get("sort_by"); sortBy {
	case shop.SortPriceAsc, shop.SortPriceDesc, shop.SortName:
		filter.SortBy = sortBy
	case "":
	default:
		writeError(w, http.StatusBadRequest, "Unknown sort_by value", nil)
		return
	}

	if raw := r.URL.Query().Get("min_price"); raw != "" {
		min, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid min_price", err)
			return
		}
		filter.MinPrice = &min
	}
	if raw := r.URL.Query().Get("max_price"); raw != "" {
		max, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid max_price", err)
			return
		}
		filter.MaxPrice = &max
	}

	products, err := h.Store.ListProducts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

// GetProduct returns one product, looked up by numeric ID or slug.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")

	var product *shop.Product
	var err error
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		product, err = h.Store.GetProduct(r.Context(), id)
	} else {
		product, err = h.Store.GetProductBySlug(r.Context(), ref)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toProductDTO(*product))
}

// SearchProducts returns products matching the q parameter.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, []ProductDTO{})
		return
	}

	products, err := h.Store.SearchProducts(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to search products", err)
		return
	}

	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

// =============================================================================
// CART HANDLERS
// =============================================================================

// GetCart returns the session's cart lines with products attached.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Store.CartWithProducts(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load cart", err)
		return
	}

	dtos := make([]CartLineDTO, len(lines))
	for i, line := range lines {
		dto := CartLineDTO{ProductID: line.ProductID, Quantity: line.Quantity}
		if line.Product != nil {
			p := toProductDTO(*line.Product)
			dto.Product = &p
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddToCart upserts a cart line after verifying the product exists.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "Quantity must be positive", nil)
		return
	}

	product, err := h.Store.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}

	item, err := h.Store.AddCartItem(r.Context(), sessionID(r), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add to cart", err)
		return
	}

	p := toProductDTO(*product)
	writeJSON(w, http.StatusOK, CartLineDTO{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Product:   &p,
	})
}

// UpdateCartItem sets an absolute quantity for one line; zero removes it.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	var req UpdateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "Quantity must not be negative", nil)
		return
	}

	if err := h.Store.UpdateCartItem(r.Context(), sessionID(r), productID, req.Quantity); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update cart", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

// RemoveCartItem deletes one line from the session's cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	if err := h.Store.RemoveCartItem(r.Context(), sessionID(r), productID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove from cart", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

// =============================================================================
// CHECKOUT HANDLERS
// =============================================================================

// Checkout runs the stock reservation transaction for the session's cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	order, err := h.Engine.Checkout(r.Context(), sessionID(r), shop.CustomerInfo{
		Name:    strings.TrimSpace(req.CustomerName),
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
		City:    strings.TrimSpace(req.City),
	})
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

// writeCheckoutError maps the engine's error taxonomy to HTTP statuses.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var stockErr *shop.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, http.StatusConflict, StockErrorResponse{
			Error:       "Insufficient stock",
			ProductID:   stockErr.ProductID,
			ProductName: stockErr.Name,
			Available:   stockErr.Available,
			Requested:   stockErr.Requested,
		})
		return
	}

	switch {
	case errors.Is(err, shop.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "Cart is empty", nil)
	case errors.Is(err, shop.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Missing required field", err)
	case errors.Is(err, shop.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "A product in the cart no longer exists", err)
	default:
		writeError(w, http.StatusInternalServerError, "Checkout failed", err)
	}
}

// GetOrder returns a completed order for the confirmation page.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order ID", err)
		return
	}

	order, err := h.Store.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get order", err)
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// =============================================================================
// WISHLIST HANDLERS
// =============================================================================

// GetWishlist returns the session's wished products.
func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.WishlistWithProducts(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load wishlist", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

// AddToWishlist records a wishlist reference. Adding twice is a no-op.
func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var req WishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	product, err := h.Store.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}

	if err := h.Store.AddWishlistItem(r.Context(), sessionID(r), req.ProductID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add to wishlist", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": true})
}

// RemoveFromWishlist deletes one wishlist reference.
func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	if err := h.Store.RemoveWishlistItem(r.Context(), sessionID(r), productID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove from wishlist", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

// =============================================================================
// MAILING LIST
// =============================================================================

// Subscribe joins the mailing list. Subscribing an existing email succeeds.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "Invalid email", nil)
		return
	}

	if err := h.Store.Subscribe(r.Context(), email); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to subscribe", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscribed": true})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
