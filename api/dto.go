/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Money is
  serialized as float64 at this boundary only; everything behind it uses
  decimal.Decimal.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the checkout engine, not in DTOs.
  DTOs are pure data carriers. In particular CheckoutRequest carries no
  price or total field: totals are always computed server-side.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/mandorla/storefront/shop"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ProductDTO represents a catalog entry in API responses.
type ProductDTO struct {
	ID                 int64   `json:"id"`
	Slug               string  `json:"slug"`
	Name               string  `json:"name"`
	Category           string  `json:"category"`
	Price              float64 `json:"price"`
	Weight             string  `json:"weight"`
	Grade              string  `json:"grade"`
	Origin             string  `json:"origin"`
	Description        string  `json:"description"`
	ImageURL           string  `json:"image_url"`
	NutritionalInfo    string  `json:"nutritional_info,omitempty"`
	SustainabilityInfo string  `json:"sustainability_info,omitempty"`
	StockQuantity      int     `json:"stock_quantity"`
}

func toProductDTO(p shop.Product) ProductDTO {
	return ProductDTO{
		ID:                 p.ID,
		Slug:               p.Slug,
		Name:               p.Name,
		Category:           p.Category,
		Price:              p.Price.InexactFloat64(),
		Weight:             p.Weight,
		Grade:              p.Grade,
		Origin:             p.Origin,
		Description:        p.Description,
		ImageURL:           p.ImageURL,
		NutritionalInfo:    p.NutritionalInfo,
		SustainabilityInfo: p.SustainabilityInfo,
		StockQuantity:      p.StockQuantity,
	}
}

func toProductDTOs(products []shop.Product) []ProductDTO {
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	return dtos
}

// CartLineDTO is one cart line with its product attached. Product is null
// when the referenced catalog row has been deleted.
type CartLineDTO struct {
	ProductID int64       `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Product   *ProductDTO `json:"product"`
}

// OrderDTO represents a completed order in API responses.
type OrderDTO struct {
	ID           int64          `json:"id"`
	CustomerName string         `json:"customer_name"`
	Email        string         `json:"email"`
	Address      string         `json:"address"`
	City         string         `json:"city"`
	TotalAmount  float64        `json:"total_amount"`
	Status       string         `json:"status"`
	CreatedAt    string         `json:"created_at"`
	Items        []OrderItemDTO `json:"items"`
}

// OrderItemDTO is one historical order line.
type OrderItemDTO struct {
	ProductID       int64   `json:"product_id"`
	Quantity        int     `json:"quantity"`
	PriceAtPurchase float64 `json:"price_at_purchase"`
}

func toOrderDTO(o *shop.Order) OrderDTO {
	items := make([]OrderItemDTO, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemDTO{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase.InexactFloat64(),
		}
	}
	return OrderDTO{
		ID:           o.ID,
		CustomerName: o.CustomerName,
		Email:        o.Email,
		Address:      o.Address,
		City:         o.City,
		TotalAmount:  o.TotalAmount.InexactFloat64(),
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
		Items:        items,
	}
}

// ErrorResponse is the JSON shape of all error replies.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StockErrorResponse carries enough detail to show the shopper which
// product ran short and how many units remain.
type StockErrorResponse struct {
	Error       string `json:"error"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Available   int    `json:"available"`
	Requested   int    `json:"requested"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AddToCartRequest adds quantity units of a product to the session's cart.
type AddToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// UpdateCartRequest sets an absolute quantity for one cart line.
type UpdateCartRequest struct {
	Quantity int `json:"quantity"`
}

// CheckoutRequest carries the customer/shipping fields. Deliberately no
// price, total, or product fields: the cart and catalog are the only
// sources of truth.
type CheckoutRequest struct {
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Address      string `json:"address"`
	City         string `json:"city"`
}

// WishlistRequest adds a product to the session's wishlist.
type WishlistRequest struct {
	ProductID int64 `json:"product_id"`
}

// SubscribeRequest joins the mailing list.
type SubscribeRequest struct {
	Email string `json:"email"`
}
