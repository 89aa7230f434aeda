package http

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kjstillabower/island-getaway-service/internal/observability"
)

// InFlightTracker counts requests being served and mirrors the count into a gauge, so the
// httpRequestsInFlight metric and the shutdown drain read the same number.
type InFlightTracker struct {
	count atomic.Int64
	gauge prometheus.Gauge
}

// NewInFlightTracker creates a tracker. gauge may be nil.
func NewInFlightTracker(gauge prometheus.Gauge) *InFlightTracker {
	return &InFlightTracker{gauge: gauge}
}

// Track marks a request as started. The returned func marks it finished and must be called
// exactly once.
func (t *InFlightTracker) Track() (done func()) {
	t.count.Add(1)
	if t.gauge != nil {
		t.gauge.Inc()
	}
	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		if t.gauge != nil {
			t.gauge.Dec()
		}
		t.count.Add(-1)
	}
}

// Count returns the number of requests still being served.
func (t *InFlightTracker) Count() int64 {
	return t.count.Load()
}

// WaitForZero polls every checkInterval until no request is in flight or ctx is done.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	if t.Count() == 0 {
		return nil
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.Count() == 0 {
				return nil
			}
		}
	}
}

// requestsInFlight is the process-wide tracker behind MetricsMiddleware and the shutdown drain.
var requestsInFlight = NewInFlightTracker(observability.HTTPRequestsInFlight)

// InFlightCount returns the number of requests MetricsMiddleware is currently serving.
func InFlightCount() int64 {
	return requestsInFlight.Count()
}

// WaitForInFlight blocks until in-flight requests drain or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return requestsInFlight.WaitForZero(ctx, checkInterval)
}
