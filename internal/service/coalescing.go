package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/island-getaway-service/internal/models"
)

// inFlightRequest tracks a single upstream fetch that several callers may wait for.
type inFlightRequest struct {
	done   chan struct{}
	result models.Forecast
	err    error
}

// requestCoalescer collapses concurrent fetches for the same island into one upstream call.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
	timeout  time.Duration
}

// newRequestCoalescer creates a requestCoalescer. timeout bounds the shared fetch.
func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightRequest),
		timeout:  timeout,
	}
}

// GetOrDo joins the in-flight fetch for key or starts one. shared reports whether the
// caller joined a fetch started by someone else.
//
// The fetch runs detached from any single caller's cancellation so one client leaving
// does not fail the others; it keeps the first caller's values (logger, correlation id).
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func(ctx context.Context) (models.Forecast, error)) (result models.Forecast, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if !exists {
		req = &inFlightRequest{done: make(chan struct{})}
		rc.inFlight[key] = req
		rc.mu.Unlock()

		go func() {
			fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
			defer cancel()
			req.result, req.err = fn(fetchCtx)
			rc.cleanup(key)
			close(req.done)
		}()
	} else {
		rc.mu.Unlock()
	}

	select {
	case <-req.done:
		return req.result, exists, req.err
	case <-ctx.Done():
		return models.Forecast{}, exists, ctx.Err()
	}
}

// cleanup removes the in-flight request for key. Must be called after the fetch completes.
func (rc *requestCoalescer) cleanup(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.inFlight, key)
}
