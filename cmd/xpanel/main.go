package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/EZERROUK/x-panel-sub000/internal/app"
	"github.com/EZERROUK/x-panel-sub000/internal/masterdata/categories"
	"github.com/EZERROUK/x-panel-sub000/internal/masterdata/products"
	"github.com/EZERROUK/x-panel-sub000/internal/observability"
	"github.com/EZERROUK/x-panel-sub000/internal/platform/cache"
	"github.com/EZERROUK/x-panel-sub000/internal/platform/db"
	"github.com/EZERROUK/x-panel-sub000/internal/promotion"
	"github.com/EZERROUK/x-panel-sub000/internal/sales/quotes"
	"github.com/EZERROUK/x-panel-sub000/internal/shared"
	"github.com/EZERROUK/x-panel-sub000/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(pool)

	promoRepo := promotion.NewRepository(pool)
	var catalog promotion.Catalog = promoRepo
	if redisClient != nil {
		catalog = promotion.NewCachedCatalog(promoRepo, redisClient, cfg.CatalogCacheTTL)
	}
	ledger := promotion.NewLedger(pool)
	engine := promotion.NewEngine(catalog, ledger)

	productRepo := products.NewRepository(pool)
	categoryRepo := categories.NewRepository(pool)

	promoService := promotion.NewService(engine, promoRepo, productRepo)
	promoHandler := promotion.NewHandler(logger, promoService, metrics)

	quoteRepo := quotes.NewRepository(pool)
	quoteService := quotes.NewService(quoteRepo, promoService, idempotencyStore, metrics)
	quoteHandler := quotes.NewHandler(logger, quoteService)

	productHandler := products.NewHandler(logger, productRepo)
	categoryHandler := categories.NewHandler(logger, categoryRepo)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Warn("job client unavailable", slog.Any("error", err))
		jobClient = nil
	}
	defer func() {
		if jobClient == nil {
			return
		}
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	var enqueuer jobs.Enqueuer
	if jobClient != nil {
		enqueuer = jobClient
	}
	jobHandler := jobs.NewHandler(inspector, enqueuer, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Pool:             pool,
		PromotionHandler: promoHandler,
		QuoteHandler:     quoteHandler,
		ProductHandler:   productHandler,
		CategoryHandler:  categoryHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
