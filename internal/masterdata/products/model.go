// Package products exposes the product catalog the cart and quote flows
// price against. The promotion engine consumes it only through the category
// resolver; product CRUD itself stays in the back office.
package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a sellable product.
type Product struct {
	ID         int64           `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	CategoryID int64           `json:"category_id"`
	PriceHT    decimal.Decimal `json:"price_ht"`
	TaxRate    decimal.Decimal `json:"tax_rate"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
