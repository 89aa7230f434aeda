// Package scheduler periodically warms the forecast cache for every catalog island.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/island-getaway-service/internal/catalog"
	"github.com/kjstillabower/island-getaway-service/internal/models"
)

const defaultInterval = 4 * time.Minute

// Warmer fetches forecasts for islands so they land in the cache.
type Warmer interface {
	Warm(ctx context.Context, islands []models.Island) error
}

// Scheduler runs the warm job on a fixed interval. The first run starts immediately and
// runs never overlap.
type Scheduler struct {
	scheduler *gocron.Scheduler
	catalog   catalog.Source
	warmer    Warmer
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Scheduler. interval <= 0 uses 4 minutes so entries refresh inside the
// 5 minute cache TTL; timeout <= 0 uses interval.
func New(src catalog.Source, warmer Warmer, interval, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if timeout <= 0 {
		timeout = interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		catalog:   src,
		warmer:    warmer,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the warm job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Warn("scheduled cache warming failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cache warming: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("cache warming scheduled", zap.Duration("interval", s.interval))
	return nil
}

// RunOnce loads the catalog and warms every island.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	islands, err := s.catalog.Islands(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	return s.warmer.Warm(ctx, islands)
}

// Stop stops the scheduler. A run in progress finishes on its own timeout.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
