package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/island-getaway-service/internal/lifecycle"
	"github.com/kjstillabower/island-getaway-service/internal/models"
	"github.com/kjstillabower/island-getaway-service/internal/traffic"
	"github.com/kjstillabower/island-getaway-service/internal/trips"
)

// fakeTrips is a TripService with canned answers. err, when set, fails every call.
type fakeTrips struct {
	err       error
	lastRec   trips.RecommendationQuery
	lastQuery trips.SearchQuery
}

var aruba = models.Island{ID: "aruba", Name: "Aruba", NearestAirport: "AUA"}

func (f *fakeTrips) Islands(ctx context.Context) ([]models.Island, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.Island{aruba}, nil
}

func (f *fakeTrips) Island(ctx context.Context, id string) (models.Island, error) {
	if f.err != nil {
		return models.Island{}, f.err
	}
	if id != "aruba" {
		return models.Island{}, fmt.Errorf("%w: %s", trips.ErrNotFound, id)
	}
	return aruba, nil
}

func (f *fakeTrips) ListForecasts(ctx context.Context) ([]models.IslandWeather, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.IslandWeather{{Island: aruba, Weather: &models.Forecast{BeachScore: 91}}}, nil
}

func (f *fakeTrips) IslandForecast(ctx context.Context, id string) (models.IslandWeather, error) {
	island, err := f.Island(ctx, id)
	if err != nil {
		return models.IslandWeather{}, err
	}
	return models.IslandWeather{Island: island}, nil
}

func (f *fakeTrips) Recommendations(ctx context.Context, q trips.RecommendationQuery) (models.Recommendations, error) {
	f.lastRec = q
	if f.err != nil {
		return models.Recommendations{}, f.err
	}
	return models.Recommendations{
		Recommendations: []models.Trip{{Island: aruba, TripScore: 88}},
		AllTrips:        []models.Trip{{Island: aruba, TripScore: 91}},
		Dates:           models.TripDates{Departure: "2026-10-23", Return: "2026-10-26"},
		Origin:          "nyc",
	}, nil
}

func (f *fakeTrips) Search(ctx context.Context, q trips.SearchQuery) (models.TripSearch, error) {
	f.lastQuery = q
	if f.err != nil {
		return models.TripSearch{}, f.err
	}
	return models.TripSearch{Island: aruba, Flights: []models.FlightOffer{}, Origin: q.Origin}, nil
}

func newTestRouter(ft *fakeTrips, hc *HealthConfig, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	NewHandler(ft, hc, logger).Routes(router)
	return router
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (code, message, requestID string) {
	t.Helper()
	var body struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code, body.Error.Message, body.Error.RequestID
}

func TestRoutes_Success(t *testing.T) {
	router := newTestRouter(&fakeTrips{}, nil, nil)
	tests := []struct {
		path string
	}{
		{"/"},
		{"/api/islands"},
		{"/api/islands/forecasts"},
		{"/api/islands/aruba"},
		{"/api/islands/aruba/forecast"},
		{"/api/trips/recommendations"},
		{"/api/trips/search?islandId=aruba&departureDate=2026-10-23"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			w := serve(t, router, tc.path)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestGetRecommendations_PassesQuery(t *testing.T) {
	ft := &fakeTrips{}
	router := newTestRouter(ft, nil, nil)
	w := serve(t, router, "/api/trips/recommendations?origin=mia&departure=2026-11-06&return=2026-11-09")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	want := trips.RecommendationQuery{Origin: "mia", Departure: "2026-11-06", Return: "2026-11-09"}
	if ft.lastRec != want {
		t.Errorf("query = %+v, want %+v", ft.lastRec, want)
	}

	var body models.Recommendations
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Recommendations) != 1 || body.Recommendations[0].TripScore != 88 || body.Origin != "nyc" {
		t.Errorf("body = %+v", body)
	}
}

func TestSearchTrips_PassesQuery(t *testing.T) {
	ft := &fakeTrips{}
	router := newTestRouter(ft, nil, nil)
	_ = serve(t, router, "/api/trips/search?islandId=aruba&departureDate=2026-11-06&returnDate=2026-11-09&origin=sea")
	want := trips.SearchQuery{IslandID: "aruba", Departure: "2026-11-06", Return: "2026-11-09", Origin: "sea"}
	if ft.lastQuery != want {
		t.Errorf("query = %+v, want %+v", ft.lastQuery, want)
	}
}

func TestErrors_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		path       string
		wantStatus int
		wantCode   string
	}{
		{"invalid request", fmt.Errorf("%w: date must be YYYY-MM-DD", trips.ErrInvalidRequest), "/api/trips/search", http.StatusBadRequest, "INVALID_REQUEST"},
		{"not found", nil, "/api/islands/atlantis", http.StatusNotFound, "NOT_FOUND"},
		{"catalog failure", fmt.Errorf("%w: disk", trips.ErrCatalogLoad), "/api/islands", http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unexpected", errors.New("boom"), "/api/trips/recommendations", http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeTrips{err: tc.err}, nil, nil)
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.Header.Set("X-Correlation-ID", "req-42")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			code, msg, reqID := decodeError(t, w)
			if code != tc.wantCode {
				t.Errorf("code = %q, want %q", code, tc.wantCode)
			}
			if reqID != "req-42" {
				t.Errorf("requestId = %q, want req-42", reqID)
			}
			if tc.wantStatus == http.StatusInternalServerError && msg != "Internal server error" {
				t.Errorf("500 message = %q, want generic text", msg)
			}
		})
	}
}

func TestErrors_InternalErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	router := newTestRouter(&fakeTrips{err: errors.New("boom")}, nil, zap.New(core))
	_ = serve(t, router, "/api/islands")
	entries := logs.FilterMessage("request failed").All()
	if len(entries) != 1 {
		t.Fatalf("error logs = %d, want 1", len(entries))
	}
	if _, ok := entries[0].ContextMap()["correlation_id"]; !ok {
		t.Error("error log missing correlation_id")
	}
}

func TestUnknownRoute(t *testing.T) {
	router := newTestRouter(&fakeTrips{}, nil, nil)
	w := serve(t, router, "/api/volcanoes")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if code, _, _ := decodeError(t, w); code != "NOT_FOUND" {
		t.Errorf("code = %q", code)
	}
}

func TestGetHealth(t *testing.T) {
	hcfg := lifecycle.HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50, MinSamples: 4}
	tests := []struct {
		name       string
		setup      func()
		cachePing  func() error
		wantStatus int
		wantState  string
		wantCache  string
	}{
		{
			name:       "healthy",
			setup:      func() {},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name: "degraded on upstream errors",
			setup: func() {
				for i := 0; i < 3; i++ {
					traffic.RecordError()
				}
				traffic.RecordSuccess()
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
		},
		{
			name: "below min samples stays healthy",
			setup: func() {
				traffic.RecordError()
			},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name:       "shutting down wins",
			setup:      func() { lifecycle.SetShuttingDown(true) },
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "shutting-down",
		},
		{
			name:       "cache unreachable reported",
			setup:      func() {},
			cachePing:  func() error { return errors.New("no servers") },
			wantStatus: http.StatusOK,
			wantState:  "healthy",
			wantCache:  "unhealthy",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			traffic.Reset()
			lifecycle.SetShuttingDown(false)
			t.Cleanup(func() {
				traffic.Reset()
				lifecycle.SetShuttingDown(false)
			})
			tc.setup()

			router := newTestRouter(&fakeTrips{}, &HealthConfig{Lifecycle: hcfg, Version: "test", CachePing: tc.cachePing}, nil)
			w := serve(t, router, "/api/health")
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var body struct {
				Status  string            `json:"status"`
				Service string            `json:"service"`
				Checks  map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tc.wantState {
				t.Errorf("status = %q, want %q", body.Status, tc.wantState)
			}
			if body.Service != "island-getaway-service" {
				t.Errorf("service = %q", body.Service)
			}
			if body.Checks["flights"] != "synthetic" {
				t.Errorf("flights check = %q, want synthetic", body.Checks["flights"])
			}
			if tc.wantCache != "" && body.Checks["cache"] != tc.wantCache {
				t.Errorf("cache check = %q, want %q", body.Checks["cache"], tc.wantCache)
			}
		})
	}
}

func TestGetHealth_LogsTransition(t *testing.T) {
	traffic.Reset()
	lifecycle.SetShuttingDown(false)
	t.Cleanup(func() { lifecycle.SetShuttingDown(false) })

	core, logs := observer.New(zap.InfoLevel)
	router := newTestRouter(&fakeTrips{}, nil, zap.New(core))
	_ = serve(t, router, "/api/health")
	lifecycle.SetShuttingDown(true)
	_ = serve(t, router, "/api/health")

	if n := logs.FilterMessage("health status transition").Len(); n != 1 {
		t.Errorf("transition logs = %d, want 1", n)
	}
}
