package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/island-getaway-service/internal/cache"
	"github.com/kjstillabower/island-getaway-service/internal/client"
	"github.com/kjstillabower/island-getaway-service/internal/models"
	"github.com/kjstillabower/island-getaway-service/internal/observability"
)

// ForecastService serves island forecasts cache-aside: fresh cache entries are returned
// as-is; misses go upstream and the result is written back.
type ForecastService struct {
	client          client.WeatherClient
	cache           cache.Cache
	logger          *zap.Logger
	stampedeTracker *stampedeTracker
	coalescer       *requestCoalescer // nil when coalescing is disabled
}

// NewForecastService creates a ForecastService. Concurrent misses for one island share a
// single upstream call when coalesceTimeout > 0.
func NewForecastService(c client.WeatherClient, ch cache.Cache, logger *zap.Logger, coalesceTimeout time.Duration) *ForecastService {
	if logger == nil {
		logger = zap.NewNop()
	}
	var coalescer *requestCoalescer
	if coalesceTimeout > 0 {
		coalescer = newRequestCoalescer(coalesceTimeout)
	}
	return &ForecastService{
		client:          c,
		cache:           ch,
		logger:          logger,
		stampedeTracker: newStampedeTracker(),
		coalescer:       coalescer,
	}
}

// GetForecast returns the forecast for island, keyed by island id.
// Cache errors are logged and treated as misses; a failed cache write never fails the call.
func (s *ForecastService) GetForecast(ctx context.Context, island models.Island) (models.Forecast, error) {
	key := normalizeKey(island.ID)
	start := time.Now()
	logger := observability.LoggerFromContext(ctx, s.logger)
	observability.RecordIslandQuery(key)

	getStart := time.Now()
	cached, ok, err := s.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	switch {
	case err != nil:
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
		logger.Warn("cache get failed", zap.String("island", key), zap.Error(err))
	case ok:
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
		observability.CacheLookupsTotal.WithLabelValues("hit").Inc()
		logger.Debug("forecast served", zap.String("island", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return cached, nil
	default:
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
	}
	observability.CacheLookupsTotal.WithLabelValues("miss").Inc()

	concurrentMisses := s.stampedeTracker.RecordMiss(key)
	defer s.stampedeTracker.RecordDone(key)
	islandLabel := observability.MetricIslandLabel(key)
	if concurrentMisses > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(islandLabel).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(islandLabel).Observe(float64(concurrentMisses))
	}

	logger.Debug("cache miss, fetching upstream", zap.String("island", key))
	forecast, err := s.fetchAndStore(ctx, key, island)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("fetch forecast for %s: %w", key, err)
	}

	logger.Debug("forecast served", zap.String("island", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return forecast, nil
}

// Refresh fetches island from upstream and overwrites its cache entry without reading the cache
// first, so an entry that is still fresh gets a new insertion time. The cache warmer calls it.
func (s *ForecastService) Refresh(ctx context.Context, island models.Island) (models.Forecast, error) {
	key := normalizeKey(island.ID)
	forecast, err := s.fetchAndStore(ctx, key, island)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("refresh forecast for %s: %w", key, err)
	}
	return forecast, nil
}

// fetchAndStore calls the upstream and writes the result to the cache. Concurrent calls for the
// same key share one upstream request when coalescing is enabled.
func (s *ForecastService) fetchAndStore(ctx context.Context, key string, island models.Island) (models.Forecast, error) {
	fetch := func(ctx context.Context) (models.Forecast, error) {
		f, err := s.client.GetForecast(ctx, island.Lat, island.Lon)
		if err != nil {
			return models.Forecast{}, err
		}
		s.store(ctx, key, f)
		return f, nil
	}
	if s.coalescer == nil {
		return fetch(ctx)
	}
	waitStart := time.Now()
	forecast, shared, err := s.coalescer.GetOrDo(ctx, key, fetch)
	if shared {
		observability.RequestCoalescingHitsTotal.WithLabelValues(observability.MetricIslandLabel(key)).Inc()
		observability.RequestCoalescingWaitSeconds.Observe(time.Since(waitStart).Seconds())
	}
	return forecast, err
}

// store writes a fresh forecast to the cache, logging failures.
func (s *ForecastService) store(ctx context.Context, key string, f models.Forecast) {
	logger := observability.LoggerFromContext(ctx, s.logger)
	setStart := time.Now()
	if err := s.cache.Set(ctx, key, f); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		logger.Warn("cache set failed", zap.String("island", key), zap.Error(err))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, decode, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") || strings.Contains(errStr, "no servers") {
		return "connection"
	}
	if strings.Contains(errStr, "decode") {
		return "decode"
	}
	return "unknown"
}

// normalizeKey trims and lowercases island ids so cache keys are stable.
func normalizeKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
