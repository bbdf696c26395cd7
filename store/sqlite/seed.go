/*
seed.go - Initial catalog data

Loads the launch catalog when the products table is empty, so a fresh
database serves a browsable shop without any manual setup. Re-running Seed
against a populated catalog is a no-op.
*/
package sqlite

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mandorla/storefront/shop"
)

// Seed inserts the launch catalog if the products table is empty.
// Returns the number of products inserted.
func (s *Store) Seed(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM products"); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for _, p := range launchCatalog() {
		if err := s.SaveProduct(ctx, p); err != nil {
			return 0, fmt.Errorf("failed to seed product %q: %w", p.Slug, err)
		}
	}
	return len(launchCatalog()), nil
}

func launchCatalog() []shop.Product {
	price := func(v string) decimal.Decimal {
		d, _ := decimal.NewFromString(v)
		return d
	}

	return []shop.Product{
		{
			Slug:          "sea-salt-smoke-almonds",
			Name:          "Sea Salt & Smoke Almonds",
			Category:      "Roasted",
			Price:         price("24.00"),
			Weight:        "500g",
			Grade:         "Premium",
			Origin:        "USA (California)",
			Description:   "Artisanally roasted with real hickory smoke and harvested Mediterranean sea salt.",
			StockQuantity: 100,
		},
		{
			Slug:          "organic-nonpareil-supreme",
			Name:          "Organic Nonpareil Supreme",
			Category:      "Raw",
			Price:         price("28.00"),
			Weight:        "1kg",
			Grade:         "Premium",
			Origin:        "USA (California)",
			Description:   "The absolute gold standard of almonds. Large, whole, and perfectly shaped for maximum crunch.",
			StockQuantity: 100,
		},
		{
			Slug:          "wildflower-honey-glazed",
			Name:          "Wildflower Honey Glazed",
			Category:      "Confection",
			Price:         price("22.00"),
			Weight:        "400g",
			Grade:         "Reserve",
			Origin:        "Global",
			Description:   "Sweetened by nature. Lightly coated in pure wildflower honey for a sophisticated treat.",
			StockQuantity: 100,
		},
		{
			Slug:          "premium-mamra-almonds",
			Name:          "Premium Mamra Almonds",
			Category:      "Reserve",
			Price:         price("42.00"),
			Weight:        "500g",
			Grade:         "Premium",
			Origin:        "Iran (Kerman)",
			Description:   "Rare Mamra almonds, famous for their unique shape and extremely high oil content.",
			StockQuantity: 100,
		},
		{
			Slug:          "salted-kerman-pistachios",
			Name:          "Salted Kerman Pistachios",
			Category:      "Roasted",
			Price:         price("19.00"),
			Weight:        "250g",
			Grade:         "Premium",
			Origin:        "Iran (Kerman)",
			Description:   "Perfectly split shells and large, vibrant green kernels with a satisfying salt finish.",
			StockQuantity: 100,
		},
		{
			Slug:          "chilean-chandler-walnuts",
			Name:          "Chilean Chandler Walnuts",
			Category:      "Raw",
			Price:         price("34.00"),
			Weight:        "500g",
			Grade:         "Reserve",
			Origin:        "Global",
			Description:   "Extra-light Chandler walnuts from the pristine orchards of Chile.",
			StockQuantity: 100,
		},
	}
}
