package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/island-getaway-service/internal/models"
	"github.com/kjstillabower/island-getaway-service/internal/observability"
	"github.com/kjstillabower/island-getaway-service/internal/settle"
)

// ForecastRefresher is implemented by the service layer. Refresh fetches from upstream and
// overwrites the cache entry even when it is still fresh, so periodic runs renew entries before
// the TTL runs out. Declared here to avoid a circular dependency on the service package.
type ForecastRefresher interface {
	Refresh(ctx context.Context, island models.Island) (models.Forecast, error)
}

// CacheWarmer prefetches forecasts so recommendation requests start from a warm cache.
type CacheWarmer struct {
	refresher ForecastRefresher
	logger    *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given refresher and logger.
func NewCacheWarmer(refresher ForecastRefresher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{refresher: refresher, logger: logger}
}

// Warm refreshes every island concurrently and waits for all of them.
// Returns the joined per-island errors, or nil when every island warmed.
func (w *CacheWarmer) Warm(ctx context.Context, islands []models.Island) error {
	start := time.Now()
	w.logger.Info("warming cache", zap.Int("islands", len(islands)))

	results := settle.All(ctx, len(islands), func(ctx context.Context, i int) (models.Forecast, error) {
		return w.refresher.Refresh(ctx, islands[i])
	})

	var errs []error
	for _, r := range settle.Errors(results) {
		errs = append(errs, fmt.Errorf("warm %s: %w", islands[r.Index].ID, r.Err))
	}

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	observability.CacheWarmingErrorsTotal.Add(float64(len(errs)))
	switch {
	case len(errs) == 0:
		observability.CacheWarmingTotal.WithLabelValues("success").Inc()
	case len(errs) < len(islands):
		observability.CacheWarmingTotal.WithLabelValues("partial").Inc()
	default:
		observability.CacheWarmingTotal.WithLabelValues("error").Inc()
	}
	w.logger.Info("cache warming complete",
		zap.Int("islands", len(islands)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))

	if len(errs) > 0 {
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}
