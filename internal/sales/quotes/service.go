package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/EZERROUK/x-panel-sub000/internal/observability"
	"github.com/EZERROUK/x-panel-sub000/internal/promotion"
	"github.com/EZERROUK/x-panel-sub000/internal/shared"
)

var (
	// ErrInvalidStatus indicates a forbidden status transition.
	ErrInvalidStatus = errors.New("invalid status transition")
)

// PromotionEvaluator is the engine surface the quote workflow consumes.
// Implemented by promotion.Service; faked in tests.
type PromotionEvaluator interface {
	BuildCart(ctx context.Context, req promotion.PreviewRequest) (promotion.Cart, error)
	Evaluate(ctx context.Context, cart promotion.Cart) (promotion.DiscountResult, error)
}

// Service provides the quote business logic. Create, Update and Apply all
// run the same engine evaluation; apply is preview-then-persist by
// construction, so what was previewed is what gets stored.
type Service struct {
	repo        Repository
	promotions  PromotionEvaluator
	idempotency *shared.IdempotencyStore
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewService constructs the quote service.
func NewService(repo Repository, promotions PromotionEvaluator, idempotency *shared.IdempotencyStore, metrics *observability.Metrics) *Service {
	return &Service{
		repo:        repo,
		promotions:  promotions,
		idempotency: idempotency,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Create evaluates the cart and persists the quote, its lines and the
// discount snapshot in one transaction. A catalog failure aborts creation:
// persisting a quote with silently missing discounts is worse than failing.
func (s *Service) Create(ctx context.Context, req CreateQuoteRequest) (*Quote, error) {
	cart, result, err := s.evaluateLines(ctx, req.ClientID, req.CurrencyCode, req.Code, req.Lines)
	if err != nil {
		return nil, err
	}

	var quoteID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.GenerateNumber(ctx, s.now())
		if err != nil {
			return fmt.Errorf("generate quote number: %w", err)
		}

		id, err := repo.Create(ctx, Quote{
			QuoteNumber:       number,
			ClientID:          req.ClientID,
			CurrencyCode:      req.CurrencyCode,
			Status:            QuoteStatusDraft,
			Subtotal:          result.Subtotal,
			TaxTotal:          result.TaxTotal,
			GrandTotal:        result.GrandTotal,
			DiscountTotal:     result.DiscountTotal,
			GrandTotalAfter:   result.GrandTotalAfter,
			PromoCode:         req.Code,
			AppliedPromotions: result.AppliedPromotions,
			Notes:             req.Notes,
		})
		if err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		quoteID = id

		if err := insertLines(ctx, repo, id, cart, result); err != nil {
			return err
		}
		return repo.ReplaceRedemptions(ctx, id, req.ClientID, redeemedCodeIDs(result))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveApplied(len(result.AppliedPromotions))
	return s.repo.Get(ctx, quoteID)
}

// Update rewrites a DRAFT quote and re-runs the full evaluation. The stored
// snapshot is always overwritten; there is no partial recalculation.
func (s *Service) Update(ctx context.Context, id int64, req UpdateQuoteRequest) (*Quote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if existing.Status != QuoteStatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT quotes can be updated", ErrInvalidStatus)
	}

	lines := linesToRequests(existing.Lines)
	if req.Lines != nil {
		lines = *req.Lines
	}
	code := existing.PromoCode
	if req.Code != nil {
		code = *req.Code
	}

	cart, result, err := s.evaluateLines(ctx, existing.ClientID, existing.CurrencyCode, code, lines)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		updates := map[string]interface{}{
			"subtotal":          result.Subtotal,
			"tax_total":         result.TaxTotal,
			"grand_total":       result.GrandTotal,
			"discount_total":    result.DiscountTotal,
			"grand_total_after": result.GrandTotalAfter,
			"promo_code":        nullableString(code),
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		applied, err := marshalApplied(result.AppliedPromotions)
		if err != nil {
			return err
		}
		updates["applied_promotions"] = applied

		if err := repo.UpdateHeader(ctx, id, updates); err != nil {
			return fmt.Errorf("update quote: %w", err)
		}
		if err := repo.DeleteLines(ctx, id); err != nil {
			return err
		}
		if err := insertLines(ctx, repo, id, cart, result); err != nil {
			return err
		}
		return repo.ReplaceRedemptions(ctx, id, existing.ClientID, redeemedCodeIDs(result))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveApplied(len(result.AppliedPromotions))
	return s.repo.Get(ctx, id)
}

// Preview evaluates discounts against a persisted quote without writing
// anything. Items and code overrides take the place of the stored values.
func (s *Service) Preview(ctx context.Context, id int64, req PreviewQuoteRequest) (promotion.DiscountResult, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return promotion.DiscountResult{}, fmt.Errorf("get quote: %w", err)
	}

	lines := linesToRequests(existing.Lines)
	if req.Items != nil {
		lines = *req.Items
	}
	code := existing.PromoCode
	if req.Code != nil {
		code = *req.Code
	}

	_, result, err := s.evaluateLines(ctx, existing.ClientID, existing.CurrencyCode, code, lines)
	return result, err
}

// Apply re-runs the evaluation against the catalog state at apply time and
// persists the snapshot. Codes exhausted since the preview simply drop out
// of the applied set; the caller sees the reduced result, not an error.
func (s *Service) Apply(ctx context.Context, id int64, req ApplyRequest, idempotencyKey string) (promotion.DiscountResult, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return promotion.DiscountResult{}, fmt.Errorf("get quote: %w", err)
	}
	if existing.Status != QuoteStatusDraft && existing.Status != QuoteStatusSent {
		return promotion.DiscountResult{}, fmt.Errorf("%w: discounts can only be applied to DRAFT or SENT quotes", ErrInvalidStatus)
	}

	code := existing.PromoCode
	if req.Code != nil {
		code = *req.Code
	}

	_, result, err := s.evaluateLines(ctx, existing.ClientID, existing.CurrencyCode, code, linesToRequests(existing.Lines))
	if err != nil {
		return promotion.DiscountResult{}, err
	}

	inserted := false
	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "quotes.apply"); err != nil {
			return promotion.DiscountResult{}, err
		}
		inserted = true
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.SetDiscountSnapshot(ctx, id, result, code); err != nil {
			return err
		}
		for i, amount := range result.LinesTotalDiscounts {
			if err := repo.SetLineDiscount(ctx, id, i, amount); err != nil {
				return err
			}
		}
		return repo.ReplaceRedemptions(ctx, id, existing.ClientID, redeemedCodeIDs(result))
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, idempotencyKey)
		}
		return promotion.DiscountResult{}, err
	}

	s.metrics.ObserveApplied(len(result.AppliedPromotions))
	return result, nil
}

// Send marks a DRAFT quote as sent to the client.
func (s *Service) Send(ctx context.Context, id int64) (*Quote, error) {
	return s.transition(ctx, id, QuoteStatusDraft, QuoteStatusSent)
}

// Accept marks a SENT quote as accepted.
func (s *Service) Accept(ctx context.Context, id int64) (*Quote, error) {
	return s.transition(ctx, id, QuoteStatusSent, QuoteStatusAccepted)
}

// Reject marks a SENT quote as rejected.
func (s *Service) Reject(ctx context.Context, id int64) (*Quote, error) {
	return s.transition(ctx, id, QuoteStatusSent, QuoteStatusRejected)
}

// Get returns one quote with lines.
func (s *Service) Get(ctx context.Context, id int64) (*Quote, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of quotes.
func (s *Service) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) transition(ctx context.Context, id int64, from, to QuoteStatus) (*Quote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if existing.Status != from {
		return nil, fmt.Errorf("%w: %s quotes cannot become %s", ErrInvalidStatus, existing.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// evaluateLines builds the engine cart for the given lines and runs one
// evaluation.
func (s *Service) evaluateLines(ctx context.Context, clientID int64, currency, code string, lines []QuoteLineRequest) (promotion.Cart, promotion.DiscountResult, error) {
	items := make([]promotion.PreviewItemRequest, 0, len(lines))
	for _, l := range lines {
		items = append(items, promotion.PreviewItemRequest{
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			UnitPriceHT: l.UnitPriceHT,
			TaxRate:     l.TaxRate,
		})
	}
	cart, err := s.promotions.BuildCart(ctx, promotion.PreviewRequest{
		ClientID:     clientID,
		CurrencyCode: currency,
		Code:         code,
		Items:        items,
	})
	if err != nil {
		return promotion.Cart{}, promotion.DiscountResult{}, err
	}
	result, err := s.promotions.Evaluate(ctx, cart)
	if err != nil {
		return promotion.Cart{}, promotion.DiscountResult{}, fmt.Errorf("evaluate promotions: %w", err)
	}
	return cart, result, nil
}

// insertLines writes the cart lines with their ventilated discounts.
func insertLines(ctx context.Context, repo Repository, quoteID int64, cart promotion.Cart, result promotion.DiscountResult) error {
	for i, line := range cart.Lines {
		discount := result.LinesTotalDiscounts[i]
		_, err := repo.InsertLine(ctx, QuoteLine{
			QuoteID:        quoteID,
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPriceHT:    line.UnitPriceHT,
			TaxRate:        line.TaxRate,
			LineTotalHT:    line.TotalHT(),
			TaxAmount:      line.Tax(),
			LineTotalTTC:   line.TotalTTC(),
			DiscountAmount: discount,
			LineOrder:      i,
		})
		if err != nil {
			return fmt.Errorf("insert quote line: %w", err)
		}
	}
	return nil
}

func linesToRequests(lines []QuoteLine) []QuoteLineRequest {
	out := make([]QuoteLineRequest, 0, len(lines))
	for _, l := range lines {
		out = append(out, QuoteLineRequest{
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			UnitPriceHT: l.UnitPriceHT,
			TaxRate:     l.TaxRate,
		})
	}
	return out
}

func redeemedCodeIDs(result promotion.DiscountResult) []int64 {
	var ids []int64
	for _, ap := range result.AppliedPromotions {
		if ap.PromotionCodeID != nil {
			ids = append(ids, *ap.PromotionCodeID)
		}
	}
	return ids
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
