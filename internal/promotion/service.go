package promotion

import (
	"context"
	"fmt"
	"time"
)

// CategoryResolver maps product ids to their category so category-scoped
// targeting can run against a pure cart snapshot. Implemented by the
// masterdata products repository.
type CategoryResolver interface {
	CategoriesByProduct(ctx context.Context, productIDs []int64) (map[int64]int64, error)
}

// Service exposes the engine to HTTP handlers and to the quote workflow.
type Service struct {
	engine   *Engine
	repo     *Repository
	resolver CategoryResolver
	now      func() time.Time
}

// NewService constructs the promotion service.
func NewService(engine *Engine, repo *Repository, resolver CategoryResolver) *Service {
	return &Service{
		engine:   engine,
		repo:     repo,
		resolver: resolver,
		now:      time.Now,
	}
}

// BuildCart resolves a preview request into an engine cart, attaching each
// line's category id from the product catalog. Unknown products resolve to
// category zero, which matches no category target.
func (s *Service) BuildCart(ctx context.Context, req PreviewRequest) (Cart, error) {
	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}
	categories, err := s.resolver.CategoriesByProduct(ctx, ids)
	if err != nil {
		return Cart{}, fmt.Errorf("resolve categories: %w", err)
	}

	lines := make([]CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, CartLine{
			ProductID:   item.ProductID,
			CategoryID:  categories[item.ProductID],
			Quantity:    item.Quantity,
			UnitPriceHT: item.UnitPriceHT,
			TaxRate:     item.TaxRate,
		})
	}
	return Cart{
		ClientID:     req.ClientID,
		CurrencyCode: req.CurrencyCode,
		Lines:        lines,
		Code:         req.Code,
	}, nil
}

// Preview evaluates the cart against the current catalog state. The same
// computation backs quote apply; the two can only differ when the catalog
// changed in between, which is accepted.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (DiscountResult, error) {
	cart, err := s.BuildCart(ctx, req)
	if err != nil {
		return DiscountResult{}, err
	}
	return s.engine.Evaluate(ctx, cart, s.now())
}

// Evaluate runs the engine against an already-built cart. Quote create and
// update call this inside their transaction.
func (s *Service) Evaluate(ctx context.Context, cart Cart) (DiscountResult, error) {
	return s.engine.Evaluate(ctx, cart, s.now())
}

// List returns a catalog page for back-office display.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Promotion, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Get returns one promotion.
func (s *Service) Get(ctx context.Context, id int64) (*Promotion, error) {
	return s.repo.Get(ctx, id)
}
