// Package lifecycle holds process-wide state used by health reporting.
package lifecycle

import (
	"sync/atomic"
	"time"

	"github.com/kjstillabower/island-getaway-service/internal/traffic"
)

// Status is the health status reported by /api/health.
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusDegraded     Status = "degraded"
	StatusShuttingDown Status = "shutting-down"
)

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// HealthConfig controls when weather upstream failures mark the service degraded.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// MinSamples avoids flapping on one or two failures at low traffic.
	MinSamples int
}

// Report is a point-in-time health evaluation.
type Report struct {
	Status         Status
	UpstreamErrors int
	UpstreamTotal  int
}

// Evaluate returns shutting-down while draining, degraded when the upstream error
// percentage in the window reaches the threshold, otherwise healthy.
func Evaluate(cfg HealthConfig) Report {
	errs, total := traffic.ErrorRate(cfg.DegradedWindow)
	r := Report{Status: StatusHealthy, UpstreamErrors: errs, UpstreamTotal: total}
	switch {
	case IsShuttingDown():
		r.Status = StatusShuttingDown
	case total > 0 && total >= cfg.MinSamples && errs*100 >= cfg.DegradedErrorPct*total:
		r.Status = StatusDegraded
	}
	return r
}
