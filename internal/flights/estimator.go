// Package flights estimates round-trip prices to an island from a traveler's origin group.
//
// With a live provider configured, every origin airport is queried in parallel and the
// cheapest offers win. Without one, or when every airport comes back empty, offers are
// synthesized from a fixed price table.
package flights

import (
	"context"
	"errors"
	"math/rand"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/island-getaway-service/internal/client"
	"github.com/kjstillabower/island-getaway-service/internal/models"
	"github.com/kjstillabower/island-getaway-service/internal/observability"
	"github.com/kjstillabower/island-getaway-service/internal/settle"
)

// MaxOffers bounds the number of offers returned by Search.
const MaxOffers = 5

// Source labels for flight search metrics.
const (
	SourceLive      = "live"
	SourceSynthetic = "synthetic"
)

// Estimator returns flight offers for a destination. It never fails.
type Estimator struct {
	provider Provider
	logger   *zap.Logger
	intn     func(n int) int
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithRandom replaces the jitter source for synthetic prices. intn must return a value in
// [0, n) and be safe for concurrent use.
func WithRandom(intn func(n int) int) Option {
	return func(e *Estimator) { e.intn = intn }
}

// NewEstimator creates an Estimator. A nil provider means every search is synthetic.
func NewEstimator(provider Provider, logger *zap.Logger, opts ...Option) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Estimator{provider: provider, logger: logger, intn: rand.Intn}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Live reports whether a live provider is configured.
func (e *Estimator) Live() bool {
	return e.provider != nil
}

// Search returns at most MaxOffers offers ascending by price. Per-airport provider failures
// are logged and skipped; an empty live result falls back to synthetic offers.
func (e *Estimator) Search(ctx context.Context, destination, departureDate, returnDate, originGroup string) []models.FlightOffer {
	airports := Airports(originGroup)

	if e.provider == nil {
		return e.synthetic(destination, departureDate, returnDate, originGroup, airports)
	}

	logger := observability.LoggerFromContext(ctx, e.logger)
	results := settle.All(ctx, len(airports), func(ctx context.Context, i int) ([]models.FlightOffer, error) {
		return e.provider.SearchAirport(ctx, airports[i], destination, departureDate, returnDate)
	})

	for _, r := range settle.Errors(results) {
		observability.FlightAirportFailuresTotal.WithLabelValues(CategorizeError(r.Err)).Inc()
		logger.Warn("flight search failed for origin airport",
			zap.String("origin", airports[r.Index]),
			zap.String("destination", destination),
			zap.Error(r.Err))
	}

	var offers []models.FlightOffer
	for _, batch := range settle.Values(results) {
		offers = append(offers, batch...)
	}
	if len(offers) == 0 {
		logger.Debug("no live flight offers, using synthetic prices", zap.String("destination", destination))
		return e.synthetic(destination, departureDate, returnDate, originGroup, airports)
	}

	observability.FlightSearchesTotal.WithLabelValues(SourceLive).Inc()
	sortByPrice(offers)
	if len(offers) > MaxOffers {
		offers = offers[:MaxOffers]
	}
	return offers
}

func (e *Estimator) synthetic(destination, departureDate, returnDate, originGroup string, airports []string) []models.FlightOffer {
	observability.FlightSearchesTotal.WithLabelValues(SourceSynthetic).Inc()
	offers := syntheticOffers(destination, departureDate, returnDate, originGroup, airports, e.intn)
	if len(offers) > MaxOffers {
		offers = offers[:MaxOffers]
	}
	return offers
}

// CategorizeError labels a per-airport failure for metrics.
func CategorizeError(err error) string {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return string(client.ErrorCategoryCircuitOpen)
	}
	return string(client.CategorizeError(err))
}
