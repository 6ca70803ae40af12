package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/EZERROUK/x-panel-sub000/internal/platform/httpx"
	"github.com/EZERROUK/x-panel-sub000/internal/promotion"
	"github.com/EZERROUK/x-panel-sub000/internal/shared"
)

// Handler serves the quote HTTP surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// ListResponse is the paginated quote listing payload.
type ListResponse struct {
	Quotes []Quote `json:"quotes"`
	Total  int     `json:"total"`
}

// Create persists a new quote, evaluating discounts up front.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid JSON body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}

	quote, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, "create quote failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

// Update rewrites a DRAFT quote.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req UpdateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid JSON body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}

	quote, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, "update quote failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

// Preview evaluates discounts against a stored quote without persisting.
// Unlike the transient cart preview this endpoint fails hard: the caller is
// looking at a concrete quote and a silent zero-discount answer would be
// mistaken for "no promotions match".
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	req := PreviewQuoteRequest{}
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid JSON body", httpx.ErrValidation))
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
			return
		}
	}

	result, err := h.service.Preview(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, "preview quote failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// Apply re-evaluates and persists the discount snapshot. Clients supply an
// Idempotency-Key header to make retries safe; absent one, a key is minted
// per request so the store still guards against transaction replays.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	req := ApplyRequest{}
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid JSON body", httpx.ErrValidation))
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
			return
		}
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = uuid.New().String()
	}

	result, err := h.service.Apply(r.Context(), id, req, key)
	if err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err.Error()))
			return
		}
		h.respondServiceError(w, "apply promotions failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ApplyResponse{QuoteID: id, Result: result})
}

// Send transitions DRAFT to SENT.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Send)
}

// Accept transitions SENT to ACCEPTED.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Accept)
}

// Reject transitions SENT to REJECTED.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reject)
}

// Get returns one quote with its lines.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	quote, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get quote failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

// List returns a quote page, filterable by client and status.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListQuotesRequest{}
	req.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	req.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if v := r.URL.Query().Get("client_id"); v != "" {
		clientID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid client_id", httpx.ErrValidation))
			return
		}
		req.ClientID = &clientID
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := QuoteStatus(v)
		req.Status = &status
	}

	list, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, "list quotes failed", err)
		return
	}
	if list == nil {
		list = []Quote{}
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Quotes: list, Total: total})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (*Quote, error)) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	quote, err := fn(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "quote transition failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) quoteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid quote id", httpx.ErrValidation))
		return 0, false
	}
	return id, true
}

// isCartError reports whether err is a cart validation failure surfaced by
// the engine, which maps to a 400 rather than a 500.
func isCartError(err error) bool {
	return errors.Is(err, promotion.ErrEmptyCart) ||
		errors.Is(err, promotion.ErrInvalidLine) ||
		errors.Is(err, promotion.ErrInvalidCurrency)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrInvalidStatus):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err.Error()))
	case isCartError(err):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
