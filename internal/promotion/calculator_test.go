package promotion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVentilationRemainderGoesToLastMatchedLine(t *testing.T) {
	// 10.00 across three equal lines: 3.33 + 3.33 + 3.34.
	remaining := []decimal.Decimal{dec("33.33"), dec("33.33"), dec("33.33")}
	shares := ventilate(dec("10.00"), []int{0, 1, 2}, remaining)

	require.Len(t, shares, 3)
	assert.True(t, shares[0].Equal(dec("3.33")))
	assert.True(t, shares[1].Equal(dec("3.33")))
	assert.True(t, shares[2].Equal(dec("3.34")))
}

func TestVentilationSkipsUnmatchedLines(t *testing.T) {
	remaining := []decimal.Decimal{dec("100"), dec("50"), dec("50")}
	shares := ventilate(dec("10.00"), []int{1, 2}, remaining)

	require.Len(t, shares, 2)
	_, touched := shares[0]
	assert.False(t, touched)
	assert.True(t, shares[1].Equal(dec("5.00")))
	assert.True(t, shares[2].Equal(dec("5.00")))
}

func TestVentilationRoundingNeverGoesNegative(t *testing.T) {
	// Half-up rounding of many tiny shares can overshoot the total; the
	// clamp must absorb it so no line ends up with a negative allocation.
	remaining := []decimal.Decimal{dec("0.03"), dec("0.03"), dec("0.03"), dec("0.01")}
	shares := ventilate(dec("0.02"), []int{0, 1, 2, 3}, remaining)

	sum := decimal.Zero
	for idx, share := range shares {
		assert.False(t, share.IsNegative(), "line %d allocated a negative share", idx)
		sum = sum.Add(share)
	}
	assert.True(t, sum.Equal(dec("0.02")), "allocations must still sum to the total")
}

func TestBogoFreeDiscountsCheapestUnits(t *testing.T) {
	cart := Cart{
		Lines: []CartLine{
			{ProductID: 1, Quantity: 2, UnitPriceHT: dec("100"), TaxRate: dec("0")},
			{ProductID: 2, Quantity: 2, UnitPriceHT: dec("30"), TaxRate: dec("0")},
		},
	}
	action := Action{Type: ActionBogoFree, Value: dec("100"), BuyQuantity: i64(3), GetQuantity: i64(1)}

	// 4 units / buy 3 = 1 group, 1 free unit at the cheapest price (30).
	discount := bogoDiscount(action, []int{0, 1}, cart)
	assert.True(t, discount.Equal(dec("30")))
}

func TestBogoPercentAppliesRateToDesignatedUnits(t *testing.T) {
	cart := Cart{
		Lines: []CartLine{
			{ProductID: 1, Quantity: 4, UnitPriceHT: dec("50"), TaxRate: dec("0")},
		},
	}
	action := Action{Type: ActionBogoPercent, Value: dec("50"), BuyQuantity: i64(2), GetQuantity: i64(1)}

	// 4 units / buy 2 = 2 groups, 2 units at 50% of 50 = 50 total.
	discount := bogoDiscount(action, []int{0}, cart)
	assert.True(t, discount.Equal(dec("50")))
}

func TestBogoUnitsCappedAtMatchedQuantity(t *testing.T) {
	cart := Cart{
		Lines: []CartLine{
			{ProductID: 1, Quantity: 2, UnitPriceHT: dec("10"), TaxRate: dec("0")},
		},
	}
	action := Action{Type: ActionBogoFree, Value: dec("100"), BuyQuantity: i64(1), GetQuantity: i64(5)}

	// 2 groups x 5 would designate 10 units; only 2 exist.
	discount := bogoDiscount(action, []int{0}, cart)
	assert.True(t, discount.Equal(dec("20")))
}

func TestZeroAmountPromotionIsOmitted(t *testing.T) {
	cart := Cart{
		Lines: []CartLine{
			{ProductID: 1, Quantity: 1, UnitPriceHT: dec("100"), TaxRate: dec("0")},
		},
	}
	eatsAll := Candidate{
		Promotion: Promotion{
			ID: 1, Name: "Full", ApplyScope: ScopeOrder, IsActive: true,
			Actions: []Action{{Type: ActionPercent, Value: dec("100")}},
		},
		Matched: []int{0},
	}
	leftover := Candidate{
		Promotion: Promotion{
			ID: 2, Name: "Nothing Left", ApplyScope: ScopeOrder, IsActive: true,
			Actions: []Action{{Type: ActionPercent, Value: dec("10")}},
		},
		Matched: []int{0},
	}

	applied := Apply([]Candidate{eatsAll, leftover}, cart)
	require.Len(t, applied, 1)
	assert.Equal(t, int64(1), applied[0].PromotionID)
}

func TestMultiActionPromotionAggregatesBreakdown(t *testing.T) {
	cart := Cart{
		Lines: []CartLine{
			{ProductID: 1, Quantity: 1, UnitPriceHT: dec("100"), TaxRate: dec("0")},
		},
	}
	candidate := Candidate{
		Promotion: Promotion{
			ID: 1, Name: "Combo", ApplyScope: ScopeOrder, IsActive: true,
			Actions: []Action{
				{Type: ActionPercent, Value: dec("10")},
				{Type: ActionFixed, Value: dec("5")},
			},
		},
		Matched: []int{0},
	}

	applied := Apply([]Candidate{candidate}, cart)
	require.Len(t, applied, 1)
	assert.True(t, applied[0].Amount.Equal(dec("15")))
	require.Len(t, applied[0].LinesBreakdown, 1)
	assert.True(t, applied[0].LinesBreakdown[0].Amount.Equal(dec("15")))
}

func TestFixedDiscountClampedToRemaining(t *testing.T) {
	cart := Cart{
		Lines: []CartLine{
			{ProductID: 1, Quantity: 1, UnitPriceHT: dec("20"), TaxRate: dec("0")},
		},
	}
	candidate := Candidate{
		Promotion: Promotion{
			ID: 1, Name: "Big Fixed", ApplyScope: ScopeOrder, IsActive: true,
			Actions: []Action{{Type: ActionFixed, Value: dec("100")}},
		},
		Matched: []int{0},
	}

	applied := Apply([]Candidate{candidate}, cart)
	require.Len(t, applied, 1)
	assert.True(t, applied[0].Amount.Equal(dec("20")))
}

func TestHintDerivedFromFirstAction(t *testing.T) {
	percent := Promotion{Actions: []Action{{Type: ActionPercent, Value: dec("10")}}}
	assert.Equal(t, HintPercent, hintFor(percent).Type)

	fixed := Promotion{Actions: []Action{{Type: ActionFixed, Value: dec("5")}}}
	assert.Equal(t, HintFixed, hintFor(fixed).Type)

	bogo := Promotion{Actions: []Action{{Type: ActionBogoPercent, Value: dec("50")}}}
	assert.Equal(t, HintPercent, hintFor(bogo).Type)

	assert.Equal(t, HintFixed, hintFor(Promotion{}).Type)
}
