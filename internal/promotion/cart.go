package promotion

import (
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var hundred = decimal.NewFromInt(100)

// CartLine is one priced line of a cart snapshot. CategoryID is resolved by
// the caller from the product catalog so category-scoped matching needs no
// lookups inside the engine.
type CartLine struct {
	ProductID   int64           `json:"product_id"`
	CategoryID  int64           `json:"category_id"`
	Quantity    int64           `json:"quantity"`
	UnitPriceHT decimal.Decimal `json:"unit_price_ht"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// TotalHT returns quantity x unit price, tax exclusive.
func (l CartLine) TotalHT() decimal.Decimal {
	return l.UnitPriceHT.Mul(decimal.NewFromInt(l.Quantity)).Round(2)
}

// Tax returns the line's tax amount.
func (l CartLine) Tax() decimal.Decimal {
	return l.TotalHT().Mul(l.TaxRate).Div(hundred).Round(2)
}

// TotalTTC returns the tax-inclusive line total.
func (l CartLine) TotalTTC() decimal.Decimal {
	return l.TotalHT().Add(l.Tax())
}

// Cart is the request-scoped snapshot the engine evaluates. Line order is
// significant: the line index is the addressing key for discount allocation.
type Cart struct {
	ClientID     int64      `json:"client_id"`
	CurrencyCode string     `json:"currency_code"`
	Lines        []CartLine `json:"lines"`
	Code         string     `json:"promo_code,omitempty"`
}

// SubtotalHT sums all line HT totals.
func (c Cart) SubtotalHT() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.TotalHT())
	}
	return total
}

// TaxTotal sums all line tax amounts.
func (c Cart) TaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Tax())
	}
	return total
}

// GrandTotalTTC is the tax-inclusive cart total before discounts.
func (c Cart) GrandTotalTTC() decimal.Decimal {
	return c.SubtotalHT().Add(c.TaxTotal())
}

// TotalQuantity sums line quantities.
func (c Cart) TotalQuantity() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

var (
	ErrEmptyCart       = errors.New("cart has no lines")
	ErrInvalidLine     = errors.New("invalid cart line")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// Validate performs the structural checks callers rely on before evaluation.
// Handlers validate request DTOs separately; this guards internal callers.
func (c Cart) Validate() error {
	if len(c.Lines) == 0 {
		return ErrEmptyCart
	}
	if c.CurrencyCode != "" {
		if _, err := currency.ParseISO(c.CurrencyCode); err != nil {
			return ErrInvalidCurrency
		}
	}
	for _, l := range c.Lines {
		if l.Quantity <= 0 || l.UnitPriceHT.IsNegative() {
			return ErrInvalidLine
		}
		if l.TaxRate.IsNegative() || l.TaxRate.GreaterThan(hundred) {
			return ErrInvalidLine
		}
	}
	return nil
}
