// Package trips ranks island getaways by weather and flight cost.
//
// Every query reads the island catalog, fetches forecasts concurrently (staggered to spare the
// weather provider) and tolerates per-island failures by leaving that island's weather empty.
// Only catalog failures, bad input and unknown islands fail a request.
package trips

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/island-getaway-service/internal/catalog"
	"github.com/kjstillabower/island-getaway-service/internal/flights"
	"github.com/kjstillabower/island-getaway-service/internal/models"
	"github.com/kjstillabower/island-getaway-service/internal/observability"
	"github.com/kjstillabower/island-getaway-service/internal/score"
	"github.com/kjstillabower/island-getaway-service/internal/settle"
	"github.com/kjstillabower/island-getaway-service/internal/units"
	"github.com/kjstillabower/island-getaway-service/internal/validation"
)

var (
	ErrCatalogLoad    = errors.New("island catalog unavailable")
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("island not found")
)

// Defaults for Config zero values.
const (
	DefaultStagger       = 50 * time.Millisecond
	DefaultTopN          = 5
	DefaultMinBeachScore = 40
)

// ForecastGetter returns the (possibly cached) forecast for an island.
type ForecastGetter interface {
	GetForecast(ctx context.Context, island models.Island) (models.Forecast, error)
}

// FlightSearcher returns offers ascending by price. It never fails.
type FlightSearcher interface {
	Search(ctx context.Context, destination, departureDate, returnDate, originGroup string) []models.FlightOffer
}

// Config tunes the orchestrator. Zero values use the package defaults.
type Config struct {
	// Stagger delays the i-th island's forecast fetch by i*Stagger. Negative disables it.
	Stagger time.Duration
	// TopN bounds the number of recommendations.
	TopN int
	// MinBeachScore is the exclusive lower bound for a recommendation candidate.
	// Negative admits every island with weather.
	MinBeachScore int
	Now           func() time.Time
}

// RecommendationQuery selects the origin group and travel window. Both dates must be set
// to override the upcoming weekend.
type RecommendationQuery struct {
	Origin    string
	Departure string
	Return    string
}

// SearchQuery is an ad-hoc trip search for one island.
type SearchQuery struct {
	IslandID  string
	Departure string
	Return    string
	Origin    string
}

// Service answers the recommendation, listing and search queries.
type Service struct {
	catalog   catalog.Source
	forecasts ForecastGetter
	flights   FlightSearcher
	cfg       Config
	logger    *zap.Logger
}

// NewService creates a Service.
func NewService(src catalog.Source, forecasts ForecastGetter, fl FlightSearcher, cfg Config, logger *zap.Logger) *Service {
	switch {
	case cfg.Stagger == 0:
		cfg.Stagger = DefaultStagger
	case cfg.Stagger < 0:
		cfg.Stagger = 0
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	switch {
	case cfg.MinBeachScore == 0:
		cfg.MinBeachScore = DefaultMinBeachScore
	case cfg.MinBeachScore < 0:
		cfg.MinBeachScore = -1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: src, forecasts: forecasts, flights: fl, cfg: cfg, logger: logger}
}

// Islands returns the catalog.
func (s *Service) Islands(ctx context.Context) ([]models.Island, error) {
	islands, err := s.catalog.Islands(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogLoad, err)
	}
	return islands, nil
}

// Island returns one catalog entry by id.
func (s *Service) Island(ctx context.Context, id string) (models.Island, error) {
	id, err := validation.ValidateIslandID(id)
	if err != nil {
		return models.Island{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	islands, err := s.Islands(ctx)
	if err != nil {
		return models.Island{}, err
	}
	island, ok := catalog.Find(islands, id)
	if !ok {
		return models.Island{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return island, nil
}

// IslandForecast returns one island with its forecast. Weather is nil when the fetch fails.
func (s *Service) IslandForecast(ctx context.Context, id string) (models.IslandWeather, error) {
	island, err := s.Island(ctx, id)
	if err != nil {
		return models.IslandWeather{}, err
	}
	return models.IslandWeather{Island: island, Weather: s.forecast(ctx, island)}, nil
}

// ListForecasts returns every island with its forecast, best beach score first.
// Islands without weather sort as score 0.
func (s *Service) ListForecasts(ctx context.Context) ([]models.IslandWeather, error) {
	islands, err := s.Islands(ctx)
	if err != nil {
		return nil, err
	}
	weather := s.forecastAll(ctx, islands)

	out := make([]models.IslandWeather, len(islands))
	for i, island := range islands {
		out[i] = models.IslandWeather{Island: island, Weather: weather[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return beachScore(out[i].Weather) > beachScore(out[j].Weather)
	})
	return out, nil
}

// Recommendations ranks the best-weather islands by trip score and lists every island with
// weather as a flight-less trip.
func (s *Service) Recommendations(ctx context.Context, q RecommendationQuery) (models.Recommendations, error) {
	origin, err := resolveOrigin(q.Origin)
	if err != nil {
		return models.Recommendations{}, err
	}
	dates, err := s.resolveDates(q.Departure, q.Return)
	if err != nil {
		return models.Recommendations{}, err
	}
	islands, err := s.Islands(ctx)
	if err != nil {
		return models.Recommendations{}, err
	}

	weather := s.forecastAll(ctx, islands)

	var withWeather []models.Trip
	for i, island := range islands {
		if weather[i] == nil {
			continue
		}
		withWeather = append(withWeather, models.Trip{
			Island:    island,
			Weather:   weather[i],
			TripScore: weather[i].BeachScore,
			Dates:     dates,
		})
	}
	sortTrips(withWeather)

	var candidates []models.Trip
	for _, t := range withWeather {
		if t.Weather.BeachScore > s.cfg.MinBeachScore {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) > s.cfg.TopN {
		candidates = candidates[:s.cfg.TopN]
	}

	priced := settle.All(ctx, len(candidates), func(ctx context.Context, i int) (models.Trip, error) {
		trip := candidates[i]
		offers := s.flights.Search(ctx, trip.Island.NearestAirport, dates.Departure, dates.Return, origin)
		if len(offers) > 0 {
			cheapest := offers[0]
			trip.Flight = &cheapest
			trip.TripScore = score.Trip(trip.Weather.BeachScore, &cheapest.Price)
		}
		return trip, nil
	})
	recommendations := settle.Values(priced)
	sortTrips(recommendations)

	if withWeather == nil {
		withWeather = []models.Trip{}
	}
	return models.Recommendations{
		Recommendations: recommendations,
		AllTrips:        withWeather,
		Dates:           dates,
		Origin:          origin,
	}, nil
}

// Search returns one island's forecast, flight offers and a manual booking link.
// islandId and the departure date are validated before any upstream call.
func (s *Service) Search(ctx context.Context, q SearchQuery) (models.TripSearch, error) {
	id, err := validation.ValidateIslandID(q.IslandID)
	if err != nil {
		return models.TripSearch{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := validation.ValidateDateRange(q.Departure, q.Return); err != nil {
		return models.TripSearch{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	origin, err := resolveOrigin(q.Origin)
	if err != nil {
		return models.TripSearch{}, err
	}
	island, err := s.Island(ctx, id)
	if err != nil {
		return models.TripSearch{}, err
	}
	dates := models.TripDates{Departure: q.Departure, Return: q.Return}

	var (
		weather *models.Forecast
		offers  []models.FlightOffer
	)
	settle.All(ctx, 2, func(ctx context.Context, i int) (struct{}, error) {
		if i == 0 {
			weather = s.forecast(ctx, island)
		} else {
			offers = s.flights.Search(ctx, island.NearestAirport, dates.Departure, dates.Return, origin)
		}
		return struct{}{}, nil
	})
	if offers == nil {
		offers = []models.FlightOffer{}
	}

	return models.TripSearch{
		Island:    island,
		Weather:   weather,
		Flights:   offers,
		SearchURL: flights.SearchURL(flights.OriginLabel(origin), island.NearestAirport, dates.Departure, dates.Return),
		Dates:     dates,
		Origin:    origin,
	}, nil
}

// forecastAll fetches every island's forecast, delaying the i-th call by i*Stagger.
// Failed or cancelled fetches leave a nil entry.
func (s *Service) forecastAll(ctx context.Context, islands []models.Island) []*models.Forecast {
	results := settle.All(ctx, len(islands), func(ctx context.Context, i int) (*models.Forecast, error) {
		if err := settle.Sleep(ctx, time.Duration(i)*s.cfg.Stagger); err != nil {
			return nil, err
		}
		return s.forecast(ctx, islands[i]), nil
	})
	out := make([]*models.Forecast, len(islands))
	for _, r := range results {
		out[r.Index] = r.Value
	}
	return out
}

// forecast returns nil and logs when the island's forecast cannot be fetched.
func (s *Service) forecast(ctx context.Context, island models.Island) *models.Forecast {
	f, err := s.forecasts.GetForecast(ctx, island)
	if err != nil {
		observability.LoggerFromContext(ctx, s.logger).Warn("forecast unavailable",
			zap.String("island", island.ID), zap.Error(err))
		return nil
	}
	return &f
}

// resolveDates uses the supplied window when both dates are set, else the upcoming weekend.
func (s *Service) resolveDates(departure, returnDate string) (models.TripDates, error) {
	if departure == "" || returnDate == "" {
		fri, mon := units.NextWeekend(s.cfg.Now())
		return models.TripDates{Departure: fri, Return: mon}, nil
	}
	if err := validation.ValidateDateRange(departure, returnDate); err != nil {
		return models.TripDates{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return models.TripDates{Departure: departure, Return: returnDate}, nil
}

func resolveOrigin(raw string) (string, error) {
	origin, err := validation.ValidateOrigin(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if origin == "" {
		origin = flights.DefaultOrigin
	}
	return origin, nil
}

func sortTrips(trips []models.Trip) {
	sort.SliceStable(trips, func(i, j int) bool { return trips[i].TripScore > trips[j].TripScore })
}

func beachScore(f *models.Forecast) int {
	if f == nil {
		return 0
	}
	return f.BeachScore
}
