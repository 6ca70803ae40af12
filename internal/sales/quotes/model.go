// Package quotes implements the quote workflow, the primary caller of the
// promotion engine. Creating or editing a quote re-runs the full evaluation
// and overwrites the persisted discount snapshot; there is no incremental
// patching.
package quotes

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/EZERROUK/x-panel-sub000/internal/promotion"
)

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "DRAFT"
	QuoteStatusSent     QuoteStatus = "SENT"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
	QuoteStatusRejected QuoteStatus = "REJECTED"
)

// Quote is a persisted quotation. DiscountTotal, AppliedPromotions and the
// per-line DiscountAmount columns form the durable record of one engine
// evaluation.
type Quote struct {
	ID           int64       `json:"id" db:"id"`
	QuoteNumber  string      `json:"quote_number" db:"quote_number"`
	ClientID     int64       `json:"client_id" db:"client_id"`
	CurrencyCode string      `json:"currency_code" db:"currency_code"`
	Status       QuoteStatus `json:"status" db:"status"`

	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	TaxTotal        decimal.Decimal `json:"tax_total" db:"tax_total"`
	GrandTotal      decimal.Decimal `json:"grand_total" db:"grand_total"`
	DiscountTotal   decimal.Decimal `json:"discount_total" db:"discount_total"`
	GrandTotalAfter decimal.Decimal `json:"grand_total_after" db:"grand_total_after"`

	PromoCode         string                       `json:"promo_code,omitempty" db:"promo_code"`
	AppliedPromotions []promotion.AppliedPromotion `json:"applied_promotions" db:"applied_promotions"`

	Notes     *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Lines []QuoteLine `json:"lines,omitempty" db:"-"`
}

// QuoteLine is one priced line. LineOrder is zero-based and doubles as the
// allocation index inside the discount snapshot.
type QuoteLine struct {
	ID             int64           `json:"id" db:"id"`
	QuoteID        int64           `json:"quote_id" db:"quote_id"`
	ProductID      int64           `json:"product_id" db:"product_id"`
	Quantity       int64           `json:"quantity" db:"quantity"`
	UnitPriceHT    decimal.Decimal `json:"unit_price_ht" db:"unit_price_ht"`
	TaxRate        decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	LineTotalHT    decimal.Decimal `json:"line_total_ht" db:"line_total_ht"`
	TaxAmount      decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	LineTotalTTC   decimal.Decimal `json:"line_total_ttc" db:"line_total_ttc"`
	DiscountAmount decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	LineOrder      int             `json:"line_order" db:"line_order"`
}
