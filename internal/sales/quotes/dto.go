package quotes

import (
	"github.com/shopspring/decimal"

	"github.com/EZERROUK/x-panel-sub000/internal/promotion"
)

type QuoteLineRequest struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	Quantity    int64           `json:"quantity" validate:"required,gt=0"`
	UnitPriceHT decimal.Decimal `json:"unit_price_ht"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

type CreateQuoteRequest struct {
	ClientID     int64              `json:"client_id" validate:"required,gt=0"`
	CurrencyCode string             `json:"currency_code" validate:"required,len=3"`
	Code         string             `json:"code" validate:"omitempty,max=64"`
	Notes        *string            `json:"notes,omitempty"`
	Lines        []QuoteLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type UpdateQuoteRequest struct {
	Code  *string             `json:"code,omitempty" validate:"omitempty,max=64"`
	Notes *string             `json:"notes,omitempty"`
	Lines *[]QuoteLineRequest `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// PreviewQuoteRequest previews discounts against a persisted quote. Items
// override the stored lines when provided; Code overrides the stored code.
type PreviewQuoteRequest struct {
	Code  *string             `json:"code,omitempty" validate:"omitempty,max=64"`
	Items *[]QuoteLineRequest `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

// ApplyRequest re-runs the evaluation and persists the snapshot.
type ApplyRequest struct {
	Code *string `json:"code,omitempty" validate:"omitempty,max=64"`
}

// ApplyResponse returns the persisted scalar totals together with the full
// snapshot, so callers see exactly what was stored.
type ApplyResponse struct {
	QuoteID int64                    `json:"quote_id"`
	Result  promotion.DiscountResult `json:"result"`
}

type ListQuotesRequest struct {
	ClientID *int64       `json:"client_id,omitempty"`
	Status   *QuoteStatus `json:"status,omitempty"`
	Limit    int          `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int          `json:"offset" validate:"gte=0"`
}
