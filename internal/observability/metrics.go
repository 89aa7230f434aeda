package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/island-getaway-service/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases on /api/trips/recommendations.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate per provider (open_meteo, open_meteo_marine, amadeus). Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per provider. Watch for: p95 > 2s (upstream degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Retry attempts per provider. Watch for: high retries = unstable upstream.
	UpstreamRetriesTotal *prometheus.CounterVec

	// Upstream failures by stable category (see client.CategorizeError).
	UpstreamErrorsTotal *prometheus.CounterVec

	// Cache lookups by result (hit, miss). Hit rate = hit/(hit+miss).
	CacheLookupsTotal *prometheus.CounterVec

	// Cache backend errors by operation and category.
	CacheErrorsTotal *prometheus.CounterVec

	// Cache operation latency. Watch for: memcached slowness.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Concurrent misses for the same island. Watch for: recommendation bursts after expiry.
	CacheStampedeDetectedTotal *prometheus.CounterVec

	// Number of concurrent misses observed when a stampede is detected.
	CacheStampedeConcurrency *prometheus.HistogramVec

	// Callers that shared another caller's in-flight upstream fetch.
	RequestCoalescingHitsTotal *prometheus.CounterVec

	// Time callers spent waiting on a coalesced fetch.
	RequestCoalescingWaitSeconds prometheus.Histogram

	// Flight searches by source (live, synthetic). Watch for: synthetic share when Amadeus is configured.
	FlightSearchesTotal *prometheus.CounterVec

	// Per-airport flight query failures by category.
	FlightAirportFailuresTotal *prometheus.CounterVec

	// Distribution of computed beach scores.
	BeachScore prometheus.Histogram

	// Island lookups (allow-list from catalog; others use island=other).
	IslandQueriesTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per component (0 closed, 1 half-open, 2 open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Cache warming runs by outcome (success, partial, error).
	CacheWarmingTotal *prometheus.CounterVec

	// Islands that failed to warm.
	CacheWarmingErrorsTotal prometheus.Counter

	// Duration of a warming run.
	CacheWarmingDurationSeconds prometheus.Histogram

	// In-flight requests when shutdown began.
	ShutdownInFlightRequests prometheus.Gauge

	trackedIslandsMu sync.RWMutex
	trackedIslands   map[string]struct{}

	rateLimitGaugesOnce sync.Once

	cacheSizeMu sync.RWMutex
	cacheSize   func() int
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls by provider and status",
		},
		[]string{"provider", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of retry attempts for upstream calls",
		},
		[]string{"provider"},
	)
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "Upstream failures by provider and category",
		},
		[]string{"provider", "category"},
	)
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheLookupsTotal",
			Help: "Forecast cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation and category",
		},
		[]string{"operation", "category"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation", "result"},
	)
	CacheStampedeDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Concurrent cache misses for the same island",
		},
		[]string{"island"},
	)
	CacheStampedeConcurrency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheStampedeConcurrency",
			Help:    "Concurrent misses observed per stampede",
			Buckets: []float64{2, 3, 5, 10, 20},
		},
		[]string{"island"},
	)
	RequestCoalescingHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requestCoalescingHitsTotal",
			Help: "Callers that shared an in-flight upstream fetch",
		},
		[]string{"island"},
	)
	RequestCoalescingWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "requestCoalescingWaitSeconds",
			Help:    "Time spent waiting on a coalesced fetch",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
	FlightSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightSearchesTotal",
			Help: "Flight searches by result source (live, synthetic)",
		},
		[]string{"source"},
	)
	FlightAirportFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightAirportFailuresTotal",
			Help: "Per-airport flight query failures by category",
		},
		[]string{"category"},
	)
	BeachScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beachScore",
			Help:    "Computed beach scores",
			Buckets: []float64{10, 20, 30, 40, 55, 75, 90, 100},
		},
	)
	IslandQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "islandQueriesTotal",
			Help: "Forecast lookups by island (allow-list; others use island=other)",
		},
		[]string{"island"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	CacheWarmingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warming runs by outcome",
		},
		[]string{"status"},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Islands that failed to warm",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Duration of a cache warming run",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	ShutdownInFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "Requests in flight when shutdown began",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamRetriesTotal, UpstreamErrorsTotal,
		CacheLookupsTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		CacheStampedeDetectedTotal, CacheStampedeConcurrency,
		RequestCoalescingHitsTotal, RequestCoalescingWaitSeconds,
		FlightSearchesTotal, FlightAirportFailuresTotal,
		BeachScore, IslandQueriesTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		ShutdownInFlightRequests,
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "cacheEntries",
				Help: "Forecast entries held by the in-process cache, fresh or stale",
			},
			func() float64 {
				cacheSizeMu.RLock()
				defer cacheSizeMu.RUnlock()
				if cacheSize == nil {
					return 0
				}
				return float64(cacheSize())
			},
		),
	)
}

// SetCacheSizeSource sets the function behind the cacheEntries gauge. nil reports 0.
// Only the in-memory backend has a local size; memcached leaves it unset.
func SetCacheSizeSource(size func() int) {
	cacheSizeMu.Lock()
	cacheSize = size
	cacheSizeMu.Unlock()
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load. Uses the same window as health reporting.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window; are we rejecting requests",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "upstreamOutcomesInWindow",
					Help: "Weather upstream outcomes in sliding window",
				},
				func() float64 {
					_, total := traffic.ErrorRate(window)
					return float64(total)
				},
			),
		)
	})
}

// SetTrackedIslands sets the allow-list for island metrics. Other ids increment "other".
func SetTrackedIslands(ids []string) {
	trackedIslandsMu.Lock()
	defer trackedIslandsMu.Unlock()
	trackedIslands = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		trackedIslands[normalizeIsland(id)] = struct{}{}
	}
}

// MetricIslandLabel returns the island id when tracked, otherwise "other".
func MetricIslandLabel(id string) string {
	id = normalizeIsland(id)
	trackedIslandsMu.RLock()
	_, ok := trackedIslands[id] // nil map read is safe in Go
	trackedIslandsMu.RUnlock()
	if ok {
		return id
	}
	return "other"
}

// RecordIslandQuery records a forecast lookup for the given island.
func RecordIslandQuery(id string) {
	IslandQueriesTotal.WithLabelValues(MetricIslandLabel(id)).Inc()
}

// RecordCircuitBreakerTransition records a breaker state change and updates the state gauge.
// state values follow circuitBreakerState: 0 closed, 1 half-open, 2 open.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(CircuitBreakerStateValue(to))
}

// CircuitBreakerStateValue maps a state name to its gauge value.
func CircuitBreakerStateValue(state string) float64 {
	switch strings.ReplaceAll(strings.ToLower(state), "-", "_") {
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordShutdownInFlight records the number of requests still running when shutdown began.
func RecordShutdownInFlight(n int64) {
	ShutdownInFlightRequests.Set(float64(n))
}

func normalizeIsland(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
