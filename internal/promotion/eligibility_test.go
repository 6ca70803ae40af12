package promotion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeMatchingIsCaseInsensitive(t *testing.T) {
	cart := singleLineCart()
	cart.Code = "summer10"
	promo := orderPromo(1, 1)
	promo.Codes = []Code{{ID: 5, Code: "SUMMER10", IsActive: true}}

	candidates, err := Candidates(context.Background(), []Promotion{promo}, cart, testNow, nil)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.NotNil(t, candidates[0].CodeID)
	assert.Equal(t, int64(5), *candidates[0].CodeID)
}

func TestCodeGatedPromotionRequiresCode(t *testing.T) {
	promo := orderPromo(1, 1)
	promo.Codes = []Code{{ID: 5, Code: "SUMMER10", IsActive: true}}

	candidates, err := Candidates(context.Background(), []Promotion{promo}, singleLineCart(), testNow, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestInactiveCodeIsIgnored(t *testing.T) {
	cart := singleLineCart()
	cart.Code = "SUMMER10"
	promo := orderPromo(1, 1)
	promo.Codes = []Code{{ID: 5, Code: "SUMMER10", IsActive: false}}

	candidates, err := Candidates(context.Background(), []Promotion{promo}, cart, testNow, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestCappedCodeWithoutLedgerFailsClosed(t *testing.T) {
	cart := singleLineCart()
	cart.Code = "CAPPED"
	promo := orderPromo(1, 1)
	promo.Codes = []Code{{ID: 5, Code: "CAPPED", IsActive: true, MaxRedemptions: i64(100)}}

	candidates, err := Candidates(context.Background(), []Promotion{promo}, cart, testNow, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestExhaustedCodeIsSkipped(t *testing.T) {
	cart := singleLineCart()
	cart.Code = "CAPPED"
	promo := orderPromo(1, 1)
	promo.Codes = []Code{{ID: 5, Code: "CAPPED", IsActive: true, MaxRedemptions: i64(10)}}

	candidates, err := Candidates(context.Background(), []Promotion{promo}, cart, testNow, &stubLedger{total: 10})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestPerClientCapIsEnforced(t *testing.T) {
	cart := singleLineCart()
	cart.Code = "ONCE"
	promo := orderPromo(1, 1)
	promo.Codes = []Code{{ID: 5, Code: "ONCE", IsActive: true, MaxPerClient: i64(1)}}

	candidates, err := Candidates(context.Background(), []Promotion{promo}, cart, testNow, &stubLedger{total: 3, byClient: 1})
	require.NoError(t, err)
	assert.Empty(t, candidates)

	candidates, err = Candidates(context.Background(), []Promotion{promo}, cart, testNow, &stubLedger{total: 3, byClient: 0})
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestMinSubtotalCountsMatchedLinesOnly(t *testing.T) {
	cart := Cart{
		ClientID:     1,
		CurrencyCode: "EUR",
		Lines: []CartLine{
			{ProductID: 1, CategoryID: 1, Quantity: 1, UnitPriceHT: dec("40"), TaxRate: dec("0")},
			{ProductID: 2, CategoryID: 2, Quantity: 1, UnitPriceHT: dec("500"), TaxRate: dec("0")},
		},
	}
	promo := Promotion{
		ID:                1,
		Kind:              KindCategory,
		ApplyScope:        ScopeCategory,
		IsActive:          true,
		TargetCategoryIDs: []int64{1},
		MinSubtotal:       decPtr("50"),
		Actions:           []Action{{Type: ActionPercent, Value: dec("10")}},
	}

	// Matched subset totals 40, below the 50 threshold even though the
	// whole cart is far above it.
	candidates, err := Candidates(context.Background(), []Promotion{promo}, cart, testNow, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestMinQuantityThreshold(t *testing.T) {
	promo := orderPromo(1, 1)
	promo.MinQuantity = i64(3)

	candidates, err := Candidates(context.Background(), []Promotion{promo}, singleLineCart(), testNow, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	cart := singleLineCart()
	cart.Lines[0].Quantity = 3
	candidates, err = Candidates(context.Background(), []Promotion{promo}, cart, testNow, nil)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestProductScopeMatchesTargetSet(t *testing.T) {
	cart := Cart{
		ClientID:     1,
		CurrencyCode: "EUR",
		Lines: []CartLine{
			{ProductID: 7, CategoryID: 1, Quantity: 1, UnitPriceHT: dec("10"), TaxRate: dec("0")},
			{ProductID: 8, CategoryID: 1, Quantity: 1, UnitPriceHT: dec("10"), TaxRate: dec("0")},
			{ProductID: 9, CategoryID: 1, Quantity: 1, UnitPriceHT: dec("10"), TaxRate: dec("0")},
		},
	}
	promo := Promotion{
		ID:               1,
		Kind:             KindProduct,
		ApplyScope:       ScopeProduct,
		IsActive:         true,
		TargetProductIDs: []int64{7, 9},
		Actions:          []Action{{Type: ActionPercent, Value: dec("10")}},
	}

	candidates, err := Candidates(context.Background(), []Promotion{promo}, cart, testNow, nil)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, []int{0, 2}, candidates[0].Matched)
}

func TestBogoWithoutBuyQuantityFailsClosed(t *testing.T) {
	cart := singleLineCart()
	cart.Lines[0].Quantity = 6
	promo := Promotion{
		ID:         1,
		Kind:       KindBogo,
		ApplyScope: ScopeOrder,
		IsActive:   true,
		Actions:    []Action{{Type: ActionBogoFree, Value: dec("100")}},
	}

	candidates, err := Candidates(context.Background(), []Promotion{promo}, cart, testNow, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
