package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, service, flights and cache packages.
func TestMetrics_Usable(t *testing.T) {
	// Route uses path template to avoid cardinality (e.g. /api/islands/{id} not /api/islands/aruba)
	HTTPRequestsTotal.WithLabelValues("GET", "/api/islands/{id}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/islands/{id}").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("open_meteo", "success").Inc()
	UpstreamCallsTotal.WithLabelValues("open_meteo_marine", "error").Inc()
	UpstreamDuration.WithLabelValues("amadeus", "success").Observe(0.1)
	UpstreamRetriesTotal.WithLabelValues("open_meteo").Inc()
	UpstreamErrorsTotal.WithLabelValues("open_meteo", "timeout").Inc()
	CacheLookupsTotal.WithLabelValues("hit").Inc()
	CacheErrorsTotal.WithLabelValues("get", "timeout").Inc()
	CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(0.001)
	CacheStampedeDetectedTotal.WithLabelValues("aruba").Inc()
	CacheStampedeConcurrency.WithLabelValues("aruba").Observe(3)
	RequestCoalescingHitsTotal.WithLabelValues("aruba").Inc()
	RequestCoalescingWaitSeconds.Observe(0.2)
	FlightSearchesTotal.WithLabelValues("synthetic").Inc()
	FlightAirportFailuresTotal.WithLabelValues("upstream_5xx").Inc()
	BeachScore.Observe(72)
	CacheWarmingTotal.WithLabelValues("success").Inc()
	CacheWarmingErrorsTotal.Inc()
	CacheWarmingDurationSeconds.Observe(1.5)
	RecordShutdownInFlight(3)
}

func TestMetricIslandLabel(t *testing.T) {
	SetTrackedIslands([]string{"aruba", " Jamaica "})
	defer SetTrackedIslands(nil)

	tests := map[string]string{
		"aruba":    "aruba",
		"ARUBA ":   "aruba",
		"jamaica":  "jamaica",
		"atlantis": "other",
	}
	for in, want := range tests {
		if got := MetricIslandLabel(in); got != want {
			t.Errorf("MetricIslandLabel(%q) = %q, want %q", in, got, want)
		}
	}
	RecordIslandQuery("aruba")
	RecordIslandQuery("atlantis")
}

func TestCircuitBreakerStateValue(t *testing.T) {
	tests := map[string]float64{"closed": 0, "half_open": 1, "half-open": 1, "open": 2, "bogus": 0}
	for in, want := range tests {
		if got := CircuitBreakerStateValue(in); got != want {
			t.Errorf("CircuitBreakerStateValue(%q) = %v, want %v", in, got, want)
		}
	}
	RecordCircuitBreakerTransition("weather_api", "closed", "open")
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/health", "2xx").Inc()
	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}

func TestSetCacheSizeSource_ReportsEntries(t *testing.T) {
	SetCacheSizeSource(func() int { return 7 })
	t.Cleanup(func() { SetCacheSizeSource(nil) })

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if body := w.Body.String(); !strings.Contains(body, "cacheEntries 7") {
		t.Errorf("metrics output missing cacheEntries 7:\n%s", body)
	}

	SetCacheSizeSource(nil)
	w = httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if body := w.Body.String(); !strings.Contains(body, "cacheEntries 0") {
		t.Error("metrics output should report cacheEntries 0 without a source")
	}
}
