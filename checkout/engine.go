/*
Package checkout implements the stock reservation engine.

PURPOSE:
  Converts a session's cart into a durable order with correct inventory
  accounting, as a single atomic operation. This is the only part of the
  system where a bug causes financial or inventory incorrectness under
  concurrency, so it carries the invariants:

  - stock_quantity never goes negative
  - the order total is computed from server-side prices read under lock
  - order creation, stock decrement, order-line history, and cart clearing
    commit as one unit or not at all

ALGORITHM:
  1. Load all cart lines for the session (empty cart aborts, no writes)
  2. Read each product's price and stock under the transaction's write lock,
     in ascending product ID order so concurrent checkouts acquire rows in
     the same order
  3. Validate stock >= quantity for every line; any shortfall aborts the
     whole checkout naming the product and its available quantity
  4. Total = sum of locked price x quantity, in decimal
  5. Create the order first to obtain its ID
  6. Per line: decrement stock, append an order item with price_at_purchase
  7. Clear the cart
  8. Commit; any failure rolls back every write

CONCURRENCY:
  The engine holds no in-process locks and no package-level state. It may run
  on any number of request-handling goroutines or processes; cross-session
  ordering is enforced entirely by the store's transaction mechanism. If two
  sessions race for the last units of a product, exactly one commits and the
  other observes InsufficientStockError with the winner's deduction applied.

RETRIES:
  The engine never retries internally. A caller may retry a failed checkout
  only after re-reading the cart, which may have changed.

USAGE:
  engine := checkout.NewEngine(store, logger)
  order, err := engine.Checkout(ctx, sessionID, shop.CustomerInfo{...})

SEE ALSO:
  - shop/store.go: CheckoutStore / CheckoutTx contracts
  - shop/errors.go: Error taxonomy returned from Checkout
*/
package checkout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mandorla/storefront/shop"
)

// Engine executes checkout transactions against a CheckoutStore. Construct
// one per store; it is safe for concurrent use and holds no mutable state.
type Engine struct {
	store  shop.CheckoutStore
	logger *zap.Logger
}

// NewEngine creates an engine bound to the given store. A nil logger is
// replaced with a no-op logger.
func NewEngine(store shop.CheckoutStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// pricedLine is a cart line after its product has been read under lock.
type pricedLine struct {
	productID int64
	quantity  int
	price     decimal.Decimal
}

// Checkout converts the session's cart into an order. On success the
// returned order carries its ID, server-computed total, and one item per
// cart line; the cart is empty and stock reflects the deduction. On any
// error the store is left byte-identical to its pre-call state.
func (e *Engine) Checkout(ctx context.Context, sessionID string, info shop.CustomerInfo) (*shop.Order, error) {
	if err := validateCustomerInfo(info); err != nil {
		return nil, err
	}

	var order *shop.Order
	err := e.store.WithTx(ctx, func(tx shop.CheckoutTx) error {
		lines, err := tx.CartLines(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load cart lines: %w", err)
		}
		if len(lines) == 0 {
			return shop.ErrEmptyCart
		}

		// Deterministic lock order across concurrent checkouts.
		sort.Slice(lines, func(i, j int) bool {
			return lines[i].ProductID < lines[j].ProductID
		})

		total := decimal.Zero
		priced := make([]pricedLine, 0, len(lines))
		for _, line := range lines {
			product, err := tx.ProductForUpdate(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("read stock for product %d: %w", line.ProductID, err)
			}
			if product == nil {
				return &shop.ProductNotFoundError{ProductID: line.ProductID}
			}
			if product.StockQuantity < line.Quantity {
				return &shop.InsufficientStockError{
					ProductID: product.ID,
					Name:      product.Name,
					Available: product.StockQuantity,
					Requested: line.Quantity,
				}
			}
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			priced = append(priced, pricedLine{
				productID: product.ID,
				quantity:  line.Quantity,
				price:     product.Price,
			})
		}

		o := &shop.Order{
			CustomerName: info.Name,
			Email:        info.Email,
			Address:      info.Address,
			City:         info.City,
			TotalAmount:  total,
			Status:       shop.OrderStatusCompleted,
			CreatedAt:    time.Now().UTC(),
		}
		// The order row is created first so order items can reference it.
		orderID, err := tx.CreateOrder(ctx, o)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		o.ID = orderID

		for _, pl := range priced {
			if err := tx.DecrementStock(ctx, pl.productID, pl.quantity); err != nil {
				return fmt.Errorf("decrement stock for product %d: %w", pl.productID, err)
			}
			item := shop.OrderItem{
				OrderID:         orderID,
				ProductID:       pl.productID,
				Quantity:        pl.quantity,
				PriceAtPurchase: pl.price,
			}
			if err := tx.AppendOrderItem(ctx, &item); err != nil {
				return fmt.Errorf("append order item for product %d: %w", pl.productID, err)
			}
			o.Items = append(o.Items, item)
		}

		if err := tx.ClearCart(ctx, sessionID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		order = o
		return nil
	})

	if err != nil {
		if shop.IsClientError(err) || shop.IsNotFound(err) {
			return nil, err
		}
		// Infrastructure failure: opaque to the caller, safe to retry after
		// re-reading the cart.
		e.logger.Error("checkout transaction failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", shop.ErrCheckoutFailed, err)
	}

	e.logger.Info("checkout committed",
		zap.String("session_id", sessionID),
		zap.Int64("order_id", order.ID),
		zap.String("total", order.TotalAmount.String()),
		zap.Int("lines", len(order.Items)))
	return order, nil
}

func validateCustomerInfo(info shop.CustomerInfo) error {
	switch {
	case info.Name == "":
		return &shop.ValidationError{Field: "customer_name", Message: "required"}
	case info.Email == "":
		return &shop.ValidationError{Field: "email", Message: "required"}
	case info.Address == "":
		return &shop.ValidationError{Field: "address", Message: "required"}
	case info.City == "":
		return &shop.ValidationError{Field: "city", Message: "required"}
	}
	return nil
}
