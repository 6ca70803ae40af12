package promotion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RedemptionLedger exposes persisted redemption counters. The engine queries
// it during eligibility but never owns the counters; increments happen inside
// the caller's apply transaction.
type RedemptionLedger interface {
	// Redemptions returns how many times the code has been redeemed in total
	// and by the given client.
	Redemptions(ctx context.Context, codeID, clientID int64) (total, byClient int64, err error)
}

// Candidate is a promotion that survived eligibility, together with the cart
// line indexes it matched and the redemption code that admitted it (if any).
// Matching is computed once here; the resolver and calculator reuse it.
type Candidate struct {
	Promotion Promotion
	Matched   []int
	CodeID    *int64
}

// Candidates filters the catalog down to the promotions applicable to the
// cart at the given instant. Order of the result is unspecified; the conflict
// resolver establishes evaluation order.
func Candidates(ctx context.Context, promos []Promotion, cart Cart, now time.Time, ledger RedemptionLedger) ([]Candidate, error) {
	var out []Candidate
	for _, p := range promos {
		if !p.ActiveWithin(now) || !p.AllowsWeekday(now.Weekday()) {
			continue
		}

		codeID, ok, err := matchCode(ctx, p, cart, ledger)
		if err != nil {
			return nil, fmt.Errorf("promotion %d: check code: %w", p.ID, err)
		}
		if !ok {
			continue
		}

		matched := matchLines(p, cart)
		if len(matched) == 0 {
			continue
		}
		if !meetsMinimums(p, cart, matched) {
			continue
		}
		if p.Kind == KindBogo && !meetsBogoThreshold(p, cart, matched) {
			continue
		}

		out = append(out, Candidate{Promotion: p, Matched: matched, CodeID: codeID})
	}
	return out, nil
}

// matchCode applies the code gate. Promotions without codes are always
// admitted, with or without a supplied code. Promotions carrying codes
// require a matching, active, non-exhausted code; a supplied code that
// matches nothing simply yields fewer candidates, never an error.
func matchCode(ctx context.Context, p Promotion, cart Cart, ledger RedemptionLedger) (*int64, bool, error) {
	if len(p.Codes) == 0 {
		return nil, true, nil
	}
	if cart.Code == "" {
		return nil, false, nil
	}
	for _, c := range p.Codes {
		if !c.IsActive || !strings.EqualFold(c.Code, cart.Code) {
			continue
		}
		if c.MaxRedemptions == nil && c.MaxPerClient == nil {
			return &c.ID, true, nil
		}
		if ledger == nil {
			// No counters available: fail closed on capped codes.
			return nil, false, nil
		}
		total, byClient, err := ledger.Redemptions(ctx, c.ID, cart.ClientID)
		if err != nil {
			return nil, false, err
		}
		if c.MaxRedemptions != nil && total >= *c.MaxRedemptions {
			continue
		}
		if c.MaxPerClient != nil && byClient >= *c.MaxPerClient {
			continue
		}
		return &c.ID, true, nil
	}
	return nil, false, nil
}

// matchLines returns the indexes of the cart lines the promotion targets.
// Order scope matches every line; category and product scopes intersect the
// target sets.
func matchLines(p Promotion, cart Cart) []int {
	switch p.ApplyScope {
	case ScopeOrder:
		all := make([]int, len(cart.Lines))
		for i := range cart.Lines {
			all[i] = i
		}
		return all
	case ScopeCategory:
		return matchBy(cart, p.TargetCategoryIDs, func(l CartLine) int64 { return l.CategoryID })
	case ScopeProduct:
		return matchBy(cart, p.TargetProductIDs, func(l CartLine) int64 { return l.ProductID })
	default:
		return nil
	}
}

func matchBy(cart Cart, targets []int64, key func(CartLine) int64) []int {
	if len(targets) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(targets))
	for _, id := range targets {
		set[id] = struct{}{}
	}
	var matched []int
	for i, l := range cart.Lines {
		if _, ok := set[key(l)]; ok {
			matched = append(matched, i)
		}
	}
	return matched
}

// meetsMinimums checks min_subtotal and min_quantity against the matched
// subset (which is the whole cart for order scope).
func meetsMinimums(p Promotion, cart Cart, matched []int) bool {
	if p.MinSubtotal != nil {
		subtotal := decimal.Zero
		for _, i := range matched {
			subtotal = subtotal.Add(cart.Lines[i].TotalHT())
		}
		if subtotal.LessThan(*p.MinSubtotal) {
			return false
		}
	}
	if p.MinQuantity != nil {
		var qty int64
		for _, i := range matched {
			qty += cart.Lines[i].Quantity
		}
		if qty < *p.MinQuantity {
			return false
		}
	}
	return true
}

// meetsBogoThreshold requires the matched quantity to reach the buy threshold
// of at least one BOGO action. An action without a declared threshold is
// ignored: an unspecified pattern fails closed instead of assuming "every
// 2nd unit".
func meetsBogoThreshold(p Promotion, cart Cart, matched []int) bool {
	var qty int64
	for _, i := range matched {
		qty += cart.Lines[i].Quantity
	}
	for _, a := range p.Actions {
		if a.Type != ActionBogoFree && a.Type != ActionBogoPercent {
			continue
		}
		if a.BuyQuantity == nil || *a.BuyQuantity <= 0 {
			continue
		}
		if qty >= *a.BuyQuantity {
			return true
		}
	}
	return false
}
