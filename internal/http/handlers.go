package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/island-getaway-service/internal/lifecycle"
	"github.com/kjstillabower/island-getaway-service/internal/models"
	"github.com/kjstillabower/island-getaway-service/internal/observability"
	"github.com/kjstillabower/island-getaway-service/internal/trips"
)

const serviceName = "island-getaway-service"

// TripService answers the island and trip queries. Implemented by *trips.Service.
type TripService interface {
	Islands(ctx context.Context) ([]models.Island, error)
	Island(ctx context.Context, id string) (models.Island, error)
	ListForecasts(ctx context.Context) ([]models.IslandWeather, error)
	IslandForecast(ctx context.Context, id string) (models.IslandWeather, error)
	Recommendations(ctx context.Context, q trips.RecommendationQuery) (models.Recommendations, error)
	Search(ctx context.Context, q trips.SearchQuery) (models.TripSearch, error)
}

// HealthConfig holds the inputs of the health handler.
type HealthConfig struct {
	Lifecycle lifecycle.HealthConfig
	Version   string
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	// FlightsLive reports whether a live flight provider is configured.
	FlightsLive bool
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	trips            TripService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev lifecycle.Status
}

// NewHandler returns a new Handler.
func NewHandler(tripService TripService, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if healthConfig == nil {
		healthConfig = &HealthConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{trips: tripService, healthConfig: healthConfig, logger: logger}
}

// Routes registers every endpoint on router. The /api/islands and /api/trips routes get the
// rate limit and request timeout; health, metrics and the index do not.
func (h *Handler) Routes(router *mux.Router, api ...mux.MiddlewareFunc) {
	router.HandleFunc("/", h.GetIndex).Methods(http.MethodGet)
	router.HandleFunc("/api/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	islands := router.PathPrefix("/api/islands").Subrouter()
	islands.Use(api...)
	islands.HandleFunc("", h.ListIslands).Methods(http.MethodGet)
	islands.HandleFunc("/forecasts", h.ListForecasts).Methods(http.MethodGet)
	islands.HandleFunc("/{id}", h.GetIsland).Methods(http.MethodGet)
	islands.HandleFunc("/{id}/forecast", h.GetIslandForecast).Methods(http.MethodGet)

	tripRoutes := router.PathPrefix("/api/trips").Subrouter()
	tripRoutes.Use(api...)
	tripRoutes.HandleFunc("/recommendations", h.GetRecommendations).Methods(http.MethodGet)
	tripRoutes.HandleFunc("/search", h.SearchTrips).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
}

// GetIndex handles GET /.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    serviceName,
		"version": h.healthConfig.Version,
		"endpoints": []string{
			"GET /api/health",
			"GET /api/islands",
			"GET /api/islands/forecasts",
			"GET /api/islands/{id}",
			"GET /api/islands/{id}/forecast",
			"GET /api/trips/recommendations?origin=&departure=&return=",
			"GET /api/trips/search?islandId=&departureDate=&returnDate=&origin=",
			"GET /metrics",
		},
	})
}

// ListIslands handles GET /api/islands.
func (h *Handler) ListIslands(w http.ResponseWriter, r *http.Request) {
	islands, err := h.trips.Islands(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, islands)
}

// ListForecasts handles GET /api/islands/forecasts.
func (h *Handler) ListForecasts(w http.ResponseWriter, r *http.Request) {
	list, err := h.trips.ListForecasts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetIsland handles GET /api/islands/{id}.
func (h *Handler) GetIsland(w http.ResponseWriter, r *http.Request) {
	island, err := h.trips.Island(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, island)
}

// GetIslandForecast handles GET /api/islands/{id}/forecast.
func (h *Handler) GetIslandForecast(w http.ResponseWriter, r *http.Request) {
	iw, err := h.trips.IslandForecast(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iw)
}

// GetRecommendations handles GET /api/trips/recommendations.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recs, err := h.trips.Recommendations(r.Context(), trips.RecommendationQuery{
		Origin:    q.Get("origin"),
		Departure: q.Get("departure"),
		Return:    q.Get("return"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// SearchTrips handles GET /api/trips/search.
func (h *Handler) SearchTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.trips.Search(r.Context(), trips.SearchQuery{
		IslandID:  q.Get("islandId"),
		Departure: q.Get("departureDate"),
		Return:    q.Get("returnDate"),
		Origin:    q.Get("origin"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetHealth handles GET /api/health.
// Decision order: shutting-down > degraded (weather upstream error rate) > healthy.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := lifecycle.Evaluate(h.healthConfig.Lifecycle)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != report.Status {
		h.logger.Info("health status transition",
			zap.String("previous_status", string(prev)),
			zap.String("current_status", string(report.Status)),
			zap.Int("upstream_errors", report.UpstreamErrors),
			zap.Int("upstream_total", report.UpstreamTotal))
	}
	h.healthStatusPrev = report.Status
	h.healthStatusMu.Unlock()

	statusCode := http.StatusOK
	if report.Status != lifecycle.StatusHealthy {
		statusCode = http.StatusServiceUnavailable
	}

	checks := map[string]string{"weatherApi": "healthy"}
	if report.Status == lifecycle.StatusDegraded {
		checks["weatherApi"] = "unhealthy"
	}
	if h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	if h.healthConfig.FlightsLive {
		checks["flights"] = "live"
	} else {
		checks["flights"] = "synthetic"
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    report.Status,
		"service":   serviceName,
		"version":   h.healthConfig.Version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":{code,message,requestId}}. requestId is the correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps trips errors to 400, 404 or a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context(), nil)
	switch {
	case errors.Is(err, trips.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, trips.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Island not found")
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
