/*
errors.go - Centralized error types for the storefront domain

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  The checkout engine and stores return these; the API layer maps them to
  HTTP status codes.

ERROR CATEGORIES:
  1. Validation errors - Bad client input, reported before any write
  2. Business-rule violations - Insufficient stock, missing product;
     reported with enough detail to display to an end user
  3. Infrastructure failures - Storage-layer errors, opaque to the caller,
     safe to retry after re-reading the cart

USAGE:
  Callers classify with errors.Is / errors.As:

    var stockErr *shop.InsufficientStockError
    if errors.As(err, &stockErr) {
        // show stockErr.Name and stockErr.Available to the user
    }

SEE ALSO:
  - checkout/engine.go: Produces these errors
  - api/handlers.go: Maps them to HTTP responses
*/
package shop

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmptyCart is returned when checkout is attempted with no cart lines.
	// No writes are performed.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInsufficientStock is returned when a cart line requests more units
	// than are available. The whole checkout aborts; no line is deducted.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrProductNotFound is returned when a referenced product does not
	// exist. A cart line pointing at a deleted product aborts the checkout
	// rather than being skipped.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidInput is returned when required request fields are missing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCheckoutFailed wraps storage-layer failures (connection loss,
	// constraint violation). The transaction rolled back; the caller may
	// retry after re-reading the cart.
	ErrCheckoutFailed = errors.New("checkout failed")

	// ErrOrderNotFound is returned when an order lookup misses.
	ErrOrderNotFound = errors.New("order not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError names the offending product and how many units are
// actually available, so the failure can be displayed to an end user.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (product %d): available %d, requested %d",
		e.Name, e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// ProductNotFoundError identifies which cart line referenced a missing product.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error {
	return ErrProductNotFound
}

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input or
// a business-rule violation the client can act on.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsRetryable returns true if the error might succeed on retry. Retrying a
// checkout requires re-reading the cart first; a stale total must never be
// resubmitted.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCheckoutFailed)
}
