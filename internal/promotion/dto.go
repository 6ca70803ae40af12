package promotion

import "github.com/shopspring/decimal"

// PreviewItemRequest is one cart line as submitted by the frontend.
type PreviewItemRequest struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	Quantity    int64           `json:"quantity" validate:"required,gt=0"`
	UnitPriceHT decimal.Decimal `json:"unit_price_ht"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// PreviewRequest is the transient preview payload: an explicit cart plus an
// optional redemption code. Quote-scoped previews fill ClientID from the
// quote instead.
type PreviewRequest struct {
	ClientID     int64                `json:"client_id" validate:"gte=0"`
	CurrencyCode string               `json:"currency_code" validate:"omitempty,len=3"`
	Code         string               `json:"code" validate:"omitempty,max=64"`
	Items        []PreviewItemRequest `json:"items" validate:"required,min=1,dive"`
}

// PreviewResponse wraps the discount result. Error is set only on the
// degraded path, where the endpoint still answers 200 with zeroed totals.
type PreviewResponse struct {
	DiscountResult
	Error string `json:"error,omitempty"`
}

// ListResponse is the paginated catalog listing for back-office display.
type ListResponse struct {
	Promotions []Promotion `json:"promotions"`
	Total      int         `json:"total"`
}
