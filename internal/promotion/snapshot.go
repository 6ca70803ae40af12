package promotion

import "github.com/shopspring/decimal"

// Build assembles the DiscountResult from the undiscounted cart and the
// calculator's output. Preview returns this structure as-is; apply persists
// it. Both paths share this single computation so what the user previewed is
// exactly what gets stored.
func Build(cart Cart, applied []AppliedPromotion) DiscountResult {
	subtotal := cart.SubtotalHT()
	taxTotal := cart.TaxTotal()
	grandTotal := subtotal.Add(taxTotal)

	discountTotal := decimal.Zero
	lineTotals := make([]decimal.Decimal, len(cart.Lines))
	for i := range lineTotals {
		lineTotals[i] = decimal.Zero
	}
	for _, ap := range applied {
		discountTotal = discountTotal.Add(ap.Amount)
		for _, ld := range ap.LinesBreakdown {
			if ld.Index >= 0 && ld.Index < len(lineTotals) {
				lineTotals[ld.Index] = lineTotals[ld.Index].Add(ld.Amount)
			}
		}
	}

	grandTotalAfter := grandTotal.Sub(discountTotal)
	if grandTotalAfter.IsNegative() {
		grandTotalAfter = decimal.Zero
	}

	if applied == nil {
		applied = []AppliedPromotion{}
	}
	return DiscountResult{
		Subtotal:            subtotal,
		TaxTotal:            taxTotal,
		GrandTotal:          grandTotal,
		DiscountTotal:       discountTotal,
		GrandTotalAfter:     grandTotalAfter,
		AppliedPromotions:   applied,
		LinesTotalDiscounts: lineTotals,
	}
}

// ZeroResult returns an all-zero result for the given cart shape. The
// transient preview endpoint falls back to it when the catalog is
// unavailable so the quote UI never hard-fails on promotion computation.
func ZeroResult(lineCount int) DiscountResult {
	lineTotals := make([]decimal.Decimal, lineCount)
	for i := range lineTotals {
		lineTotals[i] = decimal.Zero
	}
	return DiscountResult{
		Subtotal:            decimal.Zero,
		TaxTotal:            decimal.Zero,
		GrandTotal:          decimal.Zero,
		DiscountTotal:       decimal.Zero,
		GrandTotalAfter:     decimal.Zero,
		AppliedPromotions:   []AppliedPromotion{},
		LinesTotalDiscounts: lineTotals,
	}
}
