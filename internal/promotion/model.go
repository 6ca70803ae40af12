// Package promotion implements the promotion evaluation and allocation
// engine: eligibility filtering, priority/exclusivity conflict resolution,
// sequential discount calculation and per-line ventilation, and the
// snapshot structure persisted onto quotes.
package promotion

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a promotion rule.
type Kind string

const (
	KindOrder    Kind = "order"
	KindCategory Kind = "category"
	KindProduct  Kind = "product"
	KindBogo     Kind = "bogo"
)

// Scope is the entity type a promotion's discount applies against.
type Scope string

const (
	ScopeOrder    Scope = "order"
	ScopeCategory Scope = "category"
	ScopeProduct  Scope = "product"
)

// ActionType enumerates the supported discount actions.
type ActionType string

const (
	ActionPercent     ActionType = "percent"
	ActionFixed       ActionType = "fixed"
	ActionBogoFree    ActionType = "bogo_free"
	ActionBogoPercent ActionType = "bogo_percent"
)

// Action is one discount instruction attached to a promotion. A promotion
// carries at least one action; BOGO actions additionally declare the buy
// threshold and how many units per full group are discounted.
type Action struct {
	ID                int64            `json:"id" db:"id"`
	PromotionID       int64            `json:"promotion_id" db:"promotion_id"`
	Type              ActionType       `json:"action_type" db:"action_type"`
	Value             decimal.Decimal  `json:"value" db:"value"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty" db:"max_discount_amount"`
	BuyQuantity       *int64           `json:"buy_quantity,omitempty" db:"buy_quantity"`
	GetQuantity       *int64           `json:"get_quantity,omitempty" db:"get_quantity"`
}

// Code is a redemption code gating a promotion. Matching is case-insensitive.
type Code struct {
	ID             int64  `json:"id" db:"id"`
	PromotionID    int64  `json:"promotion_id" db:"promotion_id"`
	Code           string `json:"code" db:"code"`
	MaxRedemptions *int64 `json:"max_redemptions,omitempty" db:"max_redemptions"`
	MaxPerClient   *int64 `json:"max_per_client,omitempty" db:"max_per_client"`
	IsActive       bool   `json:"is_active" db:"is_active"`
}

// Promotion is a catalog entry. The engine treats it as read-only; catalog
// ownership (CRUD, migrations) belongs to the back office.
type Promotion struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Kind        Kind   `json:"type" db:"type"`
	ApplyScope  Scope  `json:"apply_scope" db:"apply_scope"`

	// Higher priority is evaluated first; ties break on id ascending.
	Priority              int  `json:"priority" db:"priority"`
	IsExclusive           bool `json:"is_exclusive" db:"is_exclusive"`
	IsActive              bool `json:"is_active" db:"is_active"`
	StopFurtherProcessing bool `json:"stop_further_processing" db:"stop_further_processing"`

	StartsAt *time.Time `json:"starts_at,omitempty" db:"starts_at"`
	EndsAt   *time.Time `json:"ends_at,omitempty" db:"ends_at"`

	// DaysOfWeek is a bitmask with bit i = time.Weekday(i) (Sunday = bit 0).
	// Zero means no weekday restriction.
	DaysOfWeek uint8 `json:"days_of_week" db:"days_of_week"`

	MinSubtotal *decimal.Decimal `json:"min_subtotal,omitempty" db:"min_subtotal"`
	MinQuantity *int64           `json:"min_quantity,omitempty" db:"min_quantity"`

	Actions []Action `json:"actions" db:"-"`
	Codes   []Code   `json:"codes,omitempty" db:"-"`

	// Target sets for category/product scoped promotions.
	TargetCategoryIDs []int64 `json:"target_category_ids,omitempty" db:"-"`
	TargetProductIDs  []int64 `json:"target_product_ids,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ActiveWithin reports whether the validity window contains now. A missing
// bound is unbounded on that side; bounds are inclusive.
func (p Promotion) ActiveWithin(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	return true
}

// AllowsWeekday reports whether the day-of-week mask admits the given day.
func (p Promotion) AllowsWeekday(day time.Weekday) bool {
	if p.DaysOfWeek == 0 {
		return true
	}
	return p.DaysOfWeek&(1<<uint(day)) != 0
}

// HintType is the normalized display type carried on an applied promotion.
type HintType string

const (
	HintPercent HintType = "percent"
	HintFixed   HintType = "fixed"
)

// Hint is the nominal rate/amount of a promotion's first action. It exists
// for display only and is never used for recomputation.
type Hint struct {
	Type  HintType        `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// LineDiscount is one line's share of an applied promotion. Index refers to
// the cart line's position in the snapshot.
type LineDiscount struct {
	Index  int             `json:"index"`
	Amount decimal.Decimal `json:"amount"`
}

// AppliedPromotion is the audit record of one promotion's contribution to a
// discount result. It is persisted verbatim (JSON) on quotes.
type AppliedPromotion struct {
	PromotionID     int64           `json:"promotion_id"`
	PromotionCodeID *int64          `json:"promotion_code_id,omitempty"`
	Name            string          `json:"name"`
	Amount          decimal.Decimal `json:"amount"`
	LinesBreakdown  []LineDiscount  `json:"lines_breakdown"`
	Hint            Hint            `json:"hint"`
}

// DiscountResult is the engine's sole output contract, returned to preview
// callers and persisted by apply callers.
type DiscountResult struct {
	Subtotal            decimal.Decimal    `json:"subtotal"`
	TaxTotal            decimal.Decimal    `json:"tax_total"`
	GrandTotal          decimal.Decimal    `json:"grand_total"`
	DiscountTotal       decimal.Decimal    `json:"discount_total"`
	GrandTotalAfter     decimal.Decimal    `json:"grand_total_after"`
	AppliedPromotions   []AppliedPromotion `json:"applied_promotions"`
	LinesTotalDiscounts []decimal.Decimal  `json:"lines_total_discounts"`
}
