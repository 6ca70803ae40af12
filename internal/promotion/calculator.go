package promotion

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Apply computes each selected promotion's discount in resolver order.
// Discounts stack sequentially: every promotion is computed against the
// current remaining HT amount of its matched lines, with earlier discounts
// already subtracted, so stacked percentages can never compound past 100%.
//
// Promotions whose computed amount ends up zero (exhausted lines, malformed
// action data) are dropped from the result rather than aborting the pass:
// one bad promotion must not block the others.
func Apply(selected []Candidate, cart Cart) []AppliedPromotion {
	remaining := make([]decimal.Decimal, len(cart.Lines))
	for i, l := range cart.Lines {
		remaining[i] = l.TotalHT()
	}

	var applied []AppliedPromotion
	for _, c := range selected {
		breakdown := make(map[int]decimal.Decimal)
		amount := decimal.Zero

		for _, action := range c.Promotion.Actions {
			raw := actionDiscount(action, c.Matched, cart, remaining)
			if !raw.IsPositive() {
				continue
			}
			allocations := ventilate(raw, c.Matched, remaining)
			for idx, share := range allocations {
				if share.IsZero() {
					continue
				}
				breakdown[idx] = breakdown[idx].Add(share)
				remaining[idx] = remaining[idx].Sub(share)
				if remaining[idx].IsNegative() {
					remaining[idx] = decimal.Zero
				}
				amount = amount.Add(share)
			}
		}

		if !amount.IsPositive() {
			continue
		}

		lines := make([]LineDiscount, 0, len(breakdown))
		for idx, amt := range breakdown {
			lines = append(lines, LineDiscount{Index: idx, Amount: amt})
		}
		sort.Slice(lines, func(i, j int) bool { return lines[i].Index < lines[j].Index })

		applied = append(applied, AppliedPromotion{
			PromotionID:     c.Promotion.ID,
			PromotionCodeID: c.CodeID,
			Name:            c.Promotion.Name,
			Amount:          amount,
			LinesBreakdown:  lines,
			Hint:            hintFor(c.Promotion),
		})
	}
	return applied
}

// actionDiscount computes one action's raw discount against the matched
// lines' remaining amounts, clamped to the action cap and to what is left.
func actionDiscount(a Action, matched []int, cart Cart, remaining []decimal.Decimal) decimal.Decimal {
	matchedRemaining := decimal.Zero
	for _, i := range matched {
		matchedRemaining = matchedRemaining.Add(remaining[i])
	}
	if !matchedRemaining.IsPositive() {
		return decimal.Zero
	}

	var raw decimal.Decimal
	switch a.Type {
	case ActionPercent:
		raw = matchedRemaining.Mul(a.Value).Div(hundred).Round(2)
	case ActionFixed:
		raw = a.Value
	case ActionBogoFree, ActionBogoPercent:
		raw = bogoDiscount(a, matched, cart)
	default:
		return decimal.Zero
	}

	if a.MaxDiscountAmount != nil && raw.GreaterThan(*a.MaxDiscountAmount) {
		raw = *a.MaxDiscountAmount
	}
	if raw.GreaterThan(matchedRemaining) {
		raw = matchedRemaining
	}
	return raw.Round(2)
}

// bogoDiscount designates the discounted units for a buy-N pattern. For
// every full group of BuyQuantity matched units, GetQuantity units (default
// one) are discounted, taken from the cheapest matched unit prices. An
// action without a declared threshold yields zero; eligibility already fails
// such promotions closed.
func bogoDiscount(a Action, matched []int, cart Cart) decimal.Decimal {
	if a.BuyQuantity == nil || *a.BuyQuantity <= 0 {
		return decimal.Zero
	}
	var totalQty int64
	for _, i := range matched {
		totalQty += cart.Lines[i].Quantity
	}
	groups := totalQty / *a.BuyQuantity
	if groups == 0 {
		return decimal.Zero
	}
	perGroup := int64(1)
	if a.GetQuantity != nil && *a.GetQuantity > 0 {
		perGroup = *a.GetQuantity
	}
	units := groups * perGroup
	if units > totalQty {
		units = totalQty
	}

	// Cheapest matched units first.
	byPrice := make([]int, len(matched))
	copy(byPrice, matched)
	sort.SliceStable(byPrice, func(x, y int) bool {
		return cart.Lines[byPrice[x]].UnitPriceHT.LessThan(cart.Lines[byPrice[y]].UnitPriceHT)
	})

	discount := decimal.Zero
	for _, i := range byPrice {
		if units == 0 {
			break
		}
		take := cart.Lines[i].Quantity
		if take > units {
			take = units
		}
		unitValue := cart.Lines[i].UnitPriceHT
		if a.Type == ActionBogoPercent {
			unitValue = unitValue.Mul(a.Value).Div(hundred)
		}
		discount = discount.Add(unitValue.Mul(decimal.NewFromInt(take)))
		units -= take
	}
	return discount.Round(2)
}

// ventilate distributes total across the matched lines proportionally to
// each line's current remaining amount, rounding shares to 2 decimals and
// assigning the rounding remainder to the last matched line so the
// allocations sum exactly to total. Rounded shares are clamped to what is
// still unallocated: half-up rounding on many small shares can otherwise
// overshoot and push the last line's allocation negative.
func ventilate(total decimal.Decimal, matched []int, remaining []decimal.Decimal) map[int]decimal.Decimal {
	matchedRemaining := decimal.Zero
	for _, i := range matched {
		matchedRemaining = matchedRemaining.Add(remaining[i])
	}
	if !matchedRemaining.IsPositive() || !total.IsPositive() {
		return nil
	}

	out := make(map[int]decimal.Decimal, len(matched))
	allocated := decimal.Zero
	last := matched[len(matched)-1]
	for _, i := range matched[:len(matched)-1] {
		share := total.Mul(remaining[i]).Div(matchedRemaining).Round(2)
		if left := total.Sub(allocated); share.GreaterThan(left) {
			share = left
		}
		out[i] = share
		allocated = allocated.Add(share)
	}
	out[last] = total.Sub(allocated)
	return out
}

// hintFor derives the display hint from the promotion's first action,
// normalized to percent or fixed.
func hintFor(p Promotion) Hint {
	if len(p.Actions) == 0 {
		return Hint{Type: HintFixed, Value: decimal.Zero}
	}
	first := p.Actions[0]
	switch first.Type {
	case ActionPercent, ActionBogoPercent:
		return Hint{Type: HintPercent, Value: first.Value}
	default:
		return Hint{Type: HintFixed, Value: first.Value}
	}
}
