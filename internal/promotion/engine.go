package promotion

import (
	"context"
	"fmt"
	"time"
)

// Catalog provides the active promotion set the engine evaluates against.
// Implementations fetch it once per invocation; the engine never guards
// against the catalog changing between a preview and a later apply.
type Catalog interface {
	Active(ctx context.Context, now time.Time) ([]Promotion, error)
}

// Engine runs the full evaluation pass: eligibility, conflict resolution,
// discount calculation and snapshot assembly. It is a pure, synchronous,
// single-pass computation over a catalog snapshot; the only I/O is the
// catalog fetch and the redemption-counter lookups.
type Engine struct {
	catalog Catalog
	ledger  RedemptionLedger
}

// NewEngine constructs an engine over the given catalog and ledger.
func NewEngine(catalog Catalog, ledger RedemptionLedger) *Engine {
	return &Engine{catalog: catalog, ledger: ledger}
}

// Evaluate produces the deterministic discount result for the cart at the
// given instant. Identical cart, code and catalog state yields an identical
// result.
func (e *Engine) Evaluate(ctx context.Context, cart Cart, now time.Time) (DiscountResult, error) {
	if err := cart.Validate(); err != nil {
		return DiscountResult{}, fmt.Errorf("validate cart: %w", err)
	}

	promos, err := e.catalog.Active(ctx, now)
	if err != nil {
		return DiscountResult{}, fmt.Errorf("load catalog: %w", err)
	}

	candidates, err := Candidates(ctx, promos, cart, now, e.ledger)
	if err != nil {
		return DiscountResult{}, err
	}

	selected := Resolve(candidates)
	applied := Apply(selected, cart)
	return Build(cart, applied), nil
}

// EvaluateStatic runs the pass against an in-memory catalog, bypassing the
// catalog accessor. Used by tests and by callers that already hold the
// promotion set.
func EvaluateStatic(ctx context.Context, promos []Promotion, cart Cart, now time.Time, ledger RedemptionLedger) (DiscountResult, error) {
	candidates, err := Candidates(ctx, promos, cart, now, ledger)
	if err != nil {
		return DiscountResult{}, err
	}
	return Build(cart, Apply(Resolve(candidates), cart)), nil
}
