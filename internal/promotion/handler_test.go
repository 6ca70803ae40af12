package promotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EZERROUK/x-panel-sub000/internal/observability"
)

type staticResolver map[int64]int64

func (r staticResolver) CategoriesByProduct(ctx context.Context, productIDs []int64) (map[int64]int64, error) {
	return r, nil
}

func newPreviewHandler(catalog Catalog) *Handler {
	engine := NewEngine(catalog, nil)
	service := NewService(engine, nil, staticResolver{1: 1})
	return NewHandler(nil, service, observability.NewMetrics())
}

func previewBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(PreviewRequest{
		ClientID:     1,
		CurrencyCode: "EUR",
		Items: []PreviewItemRequest{
			{ProductID: 1, Quantity: 2, UnitPriceHT: dec("100"), TaxRate: dec("20")},
		},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestPreviewReturnsDiscounts(t *testing.T) {
	handler := newPreviewHandler(staticCatalog{promos: []Promotion{orderPromo(1, 1)}})

	req := httptest.NewRequest(http.MethodPost, "/promotions/preview", previewBody(t))
	rec := httptest.NewRecorder()
	handler.Preview(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Error)
	assert.True(t, resp.DiscountTotal.Equal(dec("20")))
}

func TestPreviewDegradesToZeroOnCatalogFailure(t *testing.T) {
	handler := newPreviewHandler(staticCatalog{err: errors.New("catalog down")})

	req := httptest.NewRequest(http.MethodPost, "/promotions/preview", previewBody(t))
	rec := httptest.NewRecorder()
	handler.Preview(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "degraded preview must stay a 200")
	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "promotion evaluation unavailable", resp.Error)
	assert.True(t, resp.DiscountTotal.IsZero())
	require.Len(t, resp.LinesTotalDiscounts, 1)
	assert.True(t, resp.LinesTotalDiscounts[0].IsZero())
}

func TestPreviewRejectsMalformedBody(t *testing.T) {
	handler := newPreviewHandler(staticCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/promotions/preview", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	handler.Preview(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewRejectsMalformedCartLines(t *testing.T) {
	handler := newPreviewHandler(staticCatalog{promos: []Promotion{orderPromo(1, 1)}})

	// Structural line defects are caller mistakes: they must be a 400, not
	// the degraded 200 that signals a catalog outage.
	bad := []PreviewItemRequest{
		{ProductID: 1, Quantity: 1, UnitPriceHT: dec("-5"), TaxRate: dec("20")},
		{ProductID: 1, Quantity: 1, UnitPriceHT: dec("10"), TaxRate: dec("120")},
	}
	for _, item := range bad {
		body, err := json.Marshal(PreviewRequest{
			ClientID:     1,
			CurrencyCode: "EUR",
			Items:        []PreviewItemRequest{item},
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/promotions/preview", bytes.NewBuffer(body))
		rec := httptest.NewRecorder()
		handler.Preview(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid cart line")
		assert.NotContains(t, rec.Body.String(), "promotion evaluation unavailable")
	}
}

func TestPreviewRejectsEmptyItems(t *testing.T) {
	handler := newPreviewHandler(staticCatalog{})

	body, err := json.Marshal(PreviewRequest{ClientID: 1, CurrencyCode: "EUR"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/promotions/preview", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	handler.Preview(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
