package promotion

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/EZERROUK/x-panel-sub000/internal/observability"
	"github.com/EZERROUK/x-panel-sub000/internal/platform/httpx"
)

// Handler serves the promotion HTTP surface: transient preview and the
// read-only catalog listing.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// Preview evaluates a transient cart. Malformed payloads are rejected with
// 400; catalog failures degrade to a 200 with zeroed totals and an error
// message so the quote-creation UI keeps working when the promotion
// subsystem is down.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}

	result, err := h.service.Preview(r.Context(), req)
	if err != nil {
		if isCartError(err) {
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
			return
		}
		h.logger.Error("promotion preview degraded", slog.Any("error", err))
		h.metrics.ObserveEvaluation("degraded")
		httpx.JSON(w, http.StatusOK, PreviewResponse{
			DiscountResult: ZeroResult(len(req.Items)),
			Error:          "promotion evaluation unavailable",
		})
		return
	}

	h.metrics.ObserveEvaluation("ok")
	httpx.JSON(w, http.StatusOK, PreviewResponse{DiscountResult: result})
}

// isCartError reports whether err is a structural cart defect. Those are
// caller mistakes and must surface as 400, never as the degraded 200 that
// signals a catalog outage.
func isCartError(err error) bool {
	return errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInvalidLine) ||
		errors.Is(err, ErrInvalidCurrency)
}

// List returns a catalog page.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	promos, total, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list promotions failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if promos == nil {
		promos = []Promotion{}
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Promotions: promos, Total: total})
}

// Get returns one promotion.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid promotion id", httpx.ErrValidation))
		return
	}

	promo, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get promotion failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, promo)
}
