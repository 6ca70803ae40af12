package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EZERROUK/x-panel-sub000/internal/masterdata/categories"
	"github.com/EZERROUK/x-panel-sub000/internal/masterdata/products"
	"github.com/EZERROUK/x-panel-sub000/internal/observability"
	"github.com/EZERROUK/x-panel-sub000/internal/promotion"
	"github.com/EZERROUK/x-panel-sub000/internal/sales/quotes"
	"github.com/EZERROUK/x-panel-sub000/jobs"
)

const healthPingTimeout = 2 * time.Second

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Pool             *pgxpool.Pool
	PromotionHandler *promotion.Handler
	QuoteHandler     *quotes.Handler
	ProductHandler   *products.Handler
	CategoryHandler  *categories.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := `{"status":"ok"}`
		if params.Pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
			defer cancel()
			if err := params.Pool.Ping(ctx); err != nil {
				params.Logger.Error("health check failed", slog.Any("error", err))
				status = http.StatusServiceUnavailable
				body = `{"status":"degraded"}`
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})

	r.Route("/api", func(r chi.Router) {
		if params.PromotionHandler != nil {
			params.PromotionHandler.MountRoutes(r)
		}
		if params.QuoteHandler != nil {
			params.QuoteHandler.MountRoutes(r)
		}
		if params.ProductHandler != nil {
			params.ProductHandler.MountRoutes(r)
		}
		if params.CategoryHandler != nil {
			params.CategoryHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
