package quotes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EZERROUK/x-panel-sub000/internal/promotion"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	quotes      map[int64]*Quote
	lines       map[int64][]QuoteLine
	redemptions map[int64][]int64
	nextQuoteID int64
	nextLineID  int64
	numberSeq   int

	txError     error
	getError    error
	createError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		quotes:      make(map[int64]*Quote),
		lines:       make(map[int64][]QuoteLine),
		redemptions: make(map[int64][]int64),
		nextQuoteID: 1,
		nextLineID:  1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Quote, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	q, ok := m.quotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *q
	out.Lines = append([]QuoteLine(nil), m.lines[id]...)
	return &out, nil
}

func (m *mockRepository) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	result := []Quote{}
	for _, q := range m.quotes {
		if req.ClientID != nil && q.ClientID != *req.ClientID {
			continue
		}
		if req.Status != nil && q.Status != *req.Status {
			continue
		}
		result = append(result, *q)
	}
	return result, len(result), nil
}

func (m *mockRepository) Create(ctx context.Context, quote Quote) (int64, error) {
	if m.createError != nil {
		return 0, m.createError
	}
	id := m.nextQuoteID
	m.nextQuoteID++
	quote.ID = id
	quote.CreatedAt = time.Now()
	quote.UpdatedAt = quote.CreatedAt
	m.quotes[id] = &quote
	return id, nil
}

func (m *mockRepository) UpdateHeader(ctx context.Context, id int64, updates map[string]interface{}) error {
	q, ok := m.quotes[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["discount_total"]; ok {
		q.DiscountTotal = v.(decimal.Decimal)
	}
	if v, ok := updates["grand_total_after"]; ok {
		q.GrandTotalAfter = v.(decimal.Decimal)
	}
	if v, ok := updates["subtotal"]; ok {
		q.Subtotal = v.(decimal.Decimal)
	}
	if v, ok := updates["promo_code"]; ok {
		if v == nil {
			q.PromoCode = ""
		} else {
			q.PromoCode = v.(string)
		}
	}
	return nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error {
	q, ok := m.quotes[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	return nil
}

func (m *mockRepository) InsertLine(ctx context.Context, line QuoteLine) (int64, error) {
	id := m.nextLineID
	m.nextLineID++
	line.ID = id
	m.lines[line.QuoteID] = append(m.lines[line.QuoteID], line)
	return id, nil
}

func (m *mockRepository) DeleteLines(ctx context.Context, quoteID int64) error {
	delete(m.lines, quoteID)
	return nil
}

func (m *mockRepository) SetDiscountSnapshot(ctx context.Context, id int64, result promotion.DiscountResult, code string) error {
	q, ok := m.quotes[id]
	if !ok {
		return ErrNotFound
	}
	q.DiscountTotal = result.DiscountTotal
	q.GrandTotalAfter = result.GrandTotalAfter
	q.AppliedPromotions = result.AppliedPromotions
	q.PromoCode = code
	return nil
}

func (m *mockRepository) SetLineDiscount(ctx context.Context, quoteID int64, lineOrder int, amount decimal.Decimal) error {
	lines := m.lines[quoteID]
	for i := range lines {
		if lines[i].LineOrder == lineOrder {
			lines[i].DiscountAmount = amount
			return nil
		}
	}
	return fmt.Errorf("line %d not found", lineOrder)
}

func (m *mockRepository) ReplaceRedemptions(ctx context.Context, quoteID, clientID int64, codeIDs []int64) error {
	m.redemptions[quoteID] = codeIDs
	return nil
}

func (m *mockRepository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	m.numberSeq++
	return fmt.Sprintf("Q-%s-%04d", date.Format("200601"), m.numberSeq), nil
}

// ============================================================================
// FAKE EVALUATOR
// ============================================================================

type fakeEvaluator struct {
	result    promotion.DiscountResult
	evalError error
	calls     int
}

func (f *fakeEvaluator) BuildCart(ctx context.Context, req promotion.PreviewRequest) (promotion.Cart, error) {
	cart := promotion.Cart{
		ClientID:     req.ClientID,
		CurrencyCode: req.CurrencyCode,
		Code:         req.Code,
	}
	for _, item := range req.Items {
		cart.Lines = append(cart.Lines, promotion.CartLine{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPriceHT: item.UnitPriceHT,
			TaxRate:     item.TaxRate,
		})
	}
	return cart, nil
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, cart promotion.Cart) (promotion.DiscountResult, error) {
	f.calls++
	if f.evalError != nil {
		return promotion.DiscountResult{}, f.evalError
	}
	result := f.result
	if len(result.LinesTotalDiscounts) != len(cart.Lines) {
		result.LinesTotalDiscounts = make([]decimal.Decimal, len(cart.Lines))
	}
	return result, nil
}

// ============================================================================
// TESTS
// ============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testCreateRequest() CreateQuoteRequest {
	return CreateQuoteRequest{
		ClientID:     7,
		CurrencyCode: "EUR",
		Lines: []QuoteLineRequest{
			{ProductID: 1, Quantity: 2, UnitPriceHT: dec("100.00"), TaxRate: dec("20")},
			{ProductID: 2, Quantity: 1, UnitPriceHT: dec("50.00"), TaxRate: dec("20")},
		},
	}
}

func TestCreateQuotePersistsSnapshot(t *testing.T) {
	repo := newMockRepository()
	codeID := int64(11)
	eval := &fakeEvaluator{
		result: promotion.DiscountResult{
			Subtotal:        dec("250.00"),
			TaxTotal:        dec("50.00"),
			GrandTotal:      dec("300.00"),
			DiscountTotal:   dec("25.00"),
			GrandTotalAfter: dec("275.00"),
			AppliedPromotions: []promotion.AppliedPromotion{
				{PromotionID: 3, PromotionCodeID: &codeID, Name: "Welcome", Amount: dec("25.00")},
			},
			LinesTotalDiscounts: []decimal.Decimal{dec("20.00"), dec("5.00")},
		},
	}
	svc := NewService(repo, eval, nil, nil)

	quote, err := svc.Create(context.Background(), testCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, QuoteStatusDraft, quote.Status)
	assert.Equal(t, "Q-"+time.Now().Format("200601")+"-0001", quote.QuoteNumber)
	assert.True(t, quote.DiscountTotal.Equal(dec("25.00")))
	assert.True(t, quote.GrandTotalAfter.Equal(dec("275.00")))
	require.Len(t, quote.Lines, 2)
	assert.True(t, quote.Lines[0].DiscountAmount.Equal(dec("20.00")))
	assert.True(t, quote.Lines[1].DiscountAmount.Equal(dec("5.00")))
	assert.True(t, quote.Lines[0].LineTotalHT.Equal(dec("200.00")))
	assert.True(t, quote.Lines[0].LineTotalTTC.Equal(dec("240.00")))
	assert.Equal(t, []int64{11}, repo.redemptions[quote.ID])
}

func TestCreateQuoteEvaluationFailureAborts(t *testing.T) {
	repo := newMockRepository()
	eval := &fakeEvaluator{evalError: errors.New("catalog down")}
	svc := NewService(repo, eval, nil, nil)

	_, err := svc.Create(context.Background(), testCreateRequest())
	require.Error(t, err)
	assert.Empty(t, repo.quotes)
}

func TestUpdateQuoteRejectsNonDraft(t *testing.T) {
	repo := newMockRepository()
	repo.quotes[1] = &Quote{ID: 1, ClientID: 7, CurrencyCode: "EUR", Status: QuoteStatusSent}
	svc := NewService(repo, &fakeEvaluator{}, nil, nil)

	_, err := svc.Update(context.Background(), 1, UpdateQuoteRequest{})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateQuoteReevaluates(t *testing.T) {
	repo := newMockRepository()
	eval := &fakeEvaluator{}
	svc := NewService(repo, eval, nil, nil)

	quote, err := svc.Create(context.Background(), testCreateRequest())
	require.NoError(t, err)
	require.Equal(t, 1, eval.calls)

	newLines := []QuoteLineRequest{{ProductID: 3, Quantity: 5, UnitPriceHT: dec("10.00"), TaxRate: dec("20")}}
	updated, err := svc.Update(context.Background(), quote.ID, UpdateQuoteRequest{Lines: &newLines})
	require.NoError(t, err)
	assert.Equal(t, 2, eval.calls)
	require.Len(t, updated.Lines, 1)
	assert.Equal(t, int64(3), updated.Lines[0].ProductID)
}

func TestApplyPersistsLineDiscounts(t *testing.T) {
	repo := newMockRepository()
	eval := &fakeEvaluator{}
	svc := NewService(repo, eval, nil, nil)

	quote, err := svc.Create(context.Background(), testCreateRequest())
	require.NoError(t, err)

	eval.result = promotion.DiscountResult{
		Subtotal:            dec("250.00"),
		TaxTotal:            dec("50.00"),
		GrandTotal:          dec("300.00"),
		DiscountTotal:       dec("30.00"),
		GrandTotalAfter:     dec("270.00"),
		AppliedPromotions:   []promotion.AppliedPromotion{{PromotionID: 9, Name: "Flash", Amount: dec("30.00")}},
		LinesTotalDiscounts: []decimal.Decimal{dec("24.00"), dec("6.00")},
	}

	result, err := svc.Apply(context.Background(), quote.ID, ApplyRequest{}, "")
	require.NoError(t, err)
	assert.True(t, result.DiscountTotal.Equal(dec("30.00")))

	stored, err := repo.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.True(t, stored.DiscountTotal.Equal(dec("30.00")))
	assert.True(t, stored.Lines[0].DiscountAmount.Equal(dec("24.00")))
	assert.True(t, stored.Lines[1].DiscountAmount.Equal(dec("6.00")))
}

func TestApplyRejectsClosedQuote(t *testing.T) {
	repo := newMockRepository()
	repo.quotes[1] = &Quote{ID: 1, ClientID: 7, CurrencyCode: "EUR", Status: QuoteStatusAccepted}
	svc := NewService(repo, &fakeEvaluator{}, nil, nil)

	_, err := svc.Apply(context.Background(), 1, ApplyRequest{}, "")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatusTransitions(t *testing.T) {
	repo := newMockRepository()
	eval := &fakeEvaluator{}
	svc := NewService(repo, eval, nil, nil)

	quote, err := svc.Create(context.Background(), testCreateRequest())
	require.NoError(t, err)

	sent, err := svc.Send(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, QuoteStatusSent, sent.Status)

	_, err = svc.Send(context.Background(), quote.ID)
	require.ErrorIs(t, err, ErrInvalidStatus)

	accepted, err := svc.Accept(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, QuoteStatusAccepted, accepted.Status)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	repo := newMockRepository()
	eval := &fakeEvaluator{}
	svc := NewService(repo, eval, nil, nil)

	quote, err := svc.Create(context.Background(), testCreateRequest())
	require.NoError(t, err)

	eval.result = promotion.DiscountResult{
		DiscountTotal:       dec("99.00"),
		LinesTotalDiscounts: []decimal.Decimal{dec("99.00"), decimal.Zero},
	}
	result, err := svc.Preview(context.Background(), quote.ID, PreviewQuoteRequest{})
	require.NoError(t, err)
	assert.True(t, result.DiscountTotal.Equal(dec("99.00")))

	stored, err := repo.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.True(t, stored.DiscountTotal.IsZero())
}
