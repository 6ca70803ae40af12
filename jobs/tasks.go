// Package jobs contains the background task definitions and the Asynq
// worker runtime.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EZERROUK/x-panel-sub000/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPromotionExpire deactivates promotions whose window has passed.
	TaskPromotionExpire = "promotion:expire"
	// TaskIdempotencyCleanup prunes old processed-request keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// PromotionExpirePayload carries scheduling metadata.
type PromotionExpirePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewPromotionExpireTask constructs the expiry sweep task.
func NewPromotionExpireTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(PromotionExpirePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPromotionExpire, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// CacheInvalidator bumps the promotion catalog cache version after a sweep
// changes catalog state. Implemented by promotion.CachedCatalog.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// NewPromotionExpireHandler returns the handler for TaskPromotionExpire.
// The sweep is advisory: the engine already filters on the activity window,
// so deactivating expired rows only shrinks the set the catalog loads.
func NewPromotionExpireHandler(pool *pgxpool.Pool, invalidator CacheInvalidator, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PromotionExpirePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tag, err := pool.Exec(ctx, `UPDATE promotions SET is_active = FALSE, updated_at = NOW()
			WHERE is_active = TRUE AND ends_at IS NOT NULL AND ends_at < NOW()`)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 && invalidator != nil {
			if err := invalidator.Invalidate(ctx); err != nil {
				logger.Warn("catalog cache invalidation failed", slog.Any("error", err))
			}
		}
		logger.Info("promotion expiry sweep complete", slog.Int64("deactivated", tag.RowsAffected()))
		return nil
	}
}

// NewIdempotencyCleanupHandler returns the handler for TaskIdempotencyCleanup.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := payload.Retention
		if retention <= 0 {
			retention = 7 * 24 * time.Hour
		}
		if err := store.Cleanup(ctx, retention); err != nil {
			return err
		}
		logger.Info("idempotency key cleanup complete", slog.Duration("retention", retention))
		return nil
	}
}
