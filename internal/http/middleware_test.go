package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/island-getaway-service/internal/observability"
	"github.com/kjstillabower/island-getaway-service/internal/traffic"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var seenID string
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seenID = observability.CorrelationID(r.Context())
		observability.LoggerFromContext(r.Context(), nil).Info("inside")
	})

	t.Run("generated", func(t *testing.T) {
		w := serve(t, router, "/x")
		got := w.Header().Get("X-Correlation-ID")
		if got == "" || got != seenID {
			t.Errorf("header = %q, context = %q", got, seenID)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Correlation-ID", "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Header().Get("X-Correlation-ID") != "abc-123" || seenID != "abc-123" {
			t.Errorf("header = %q, context = %q, want abc-123", w.Header().Get("X-Correlation-ID"), seenID)
		}
		entries := logs.FilterMessage("inside").All()
		last := entries[len(entries)-1]
		if last.ContextMap()["correlation_id"] != "abc-123" {
			t.Errorf("logger fields = %v", last.ContextMap())
		}
	})
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	var during int64
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/api/islands/{id}", func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
		if got := getRoute(r); got != "/api/islands/{id}" {
			t.Errorf("getRoute() = %q, want template", got)
		}
		w.WriteHeader(http.StatusTeapot)
	})

	w := serve(t, router, "/api/islands/aruba")
	if w.Code != http.StatusTeapot {
		t.Fatalf("status = %d", w.Code)
	}
	if during < 1 {
		t.Errorf("in-flight during request = %d, want >= 1", during)
	}
	if after := InFlightCount(); after != 0 {
		t.Errorf("in-flight after request = %d, want 0", after)
	}
}

func TestStatusCodeString(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 404: "4xx", 429: "4xx", 503: "5xx"} {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(0.001), 2)))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {})

	codes := []int{}
	for i := 0; i < 4; i++ {
		codes = append(codes, serve(t, router, "/x").Code)
	}
	want := []int{200, 200, 429, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}
	if n := traffic.DenialCount(time.Minute); n != 2 {
		t.Errorf("DenialCount = %d, want 2", n)
	}

	w := serve(t, router, "/x")
	if code, _, reqID := decodeError(t, w); code != "RATE_LIMITED" || reqID == "" {
		t.Errorf("error = %q/%q", code, reqID)
	}
}

func TestRateLimitMiddleware_NilLimiter(t *testing.T) {
	h := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 10; i++ {
		if w := serve(t, h, "/x"); w.Code != http.StatusOK {
			t.Fatalf("status = %d with nil limiter", w.Code)
		}
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := TimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	_ = serve(t, h, "/x")
	if !ok || time.Until(deadline) > 50*time.Millisecond {
		t.Errorf("deadline = %v (set %v)", deadline, ok)
	}

	h = TimeoutMiddleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = r.Context().Deadline()
	}))
	_ = serve(t, h, "/x")
	if ok {
		t.Error("zero timeout should not set a deadline")
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"any origin", []string{"*"}, http.MethodGet, "https://example.com", http.StatusOK, "*"},
		{"listed origin", []string{"https://app.example.com"}, http.MethodGet, "https://app.example.com", http.StatusOK, "https://app.example.com"},
		{"unlisted origin", []string{"https://app.example.com"}, http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"preflight", nil, http.MethodOptions, "https://example.com", http.StatusNoContent, "*"},
		{"no origin header", []string{"*"}, http.MethodGet, "", http.StatusOK, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/islands", nil).WithContext(context.Background())
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			w := httptest.NewRecorder()
			CORSMiddleware(tc.allowed)(next).ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tc.wantAllow)
			}
		})
	}
}
