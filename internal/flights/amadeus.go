package flights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/island-getaway-service/internal/models"
	"github.com/kjstillabower/island-getaway-service/internal/observability"
)

// ProviderAmadeus is the upstream metrics label for flight offer calls.
const ProviderAmadeus = "amadeus"

// tokenSkew refreshes the access token slightly before it expires.
const tokenSkew = 30 * time.Second

// ErrCircuitOpen is returned while the Amadeus breaker rejects calls.
var ErrCircuitOpen = errors.New("amadeus circuit open")

// Provider returns live offers from one origin airport.
type Provider interface {
	SearchAirport(ctx context.Context, origin, destination, departureDate, returnDate string) ([]models.FlightOffer, error)
}

// ProviderError is a non-2xx answer from the flight provider for one origin airport.
type ProviderError struct {
	Origin     string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("flight search from %s: HTTP %d", e.Origin, e.StatusCode)
	}
	return fmt.Sprintf("flight search from %s: %v", e.Origin, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// HTTPStatus returns the upstream status, 0 for transport failures.
func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

// AmadeusConfig configures an AmadeusClient.
type AmadeusConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	// Breaker trips after this many consecutive server-side failures.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	HTTPClient      *http.Client
	Logger          *zap.Logger
	Now             func() time.Time
}

// AmadeusClient searches flight offers with the Amadeus Self-Service API.
// The OAuth2 client-credentials token is cached until shortly before it expires.
type AmadeusClient struct {
	baseURL      *url.URL
	clientID     string
	clientSecret string
	timeout      time.Duration
	client       *http.Client
	breaker      *gobreaker.CircuitBreaker
	logger       *zap.Logger
	now          func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewAmadeusClient returns a client, or an error when credentials or the base URL are missing.
func NewAmadeusClient(cfg AmadeusConfig) (*AmadeusClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("amadeus client id and secret are required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid amadeus url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	failures := cfg.BreakerFailures
	logger := cfg.Logger
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        ProviderAmadeus,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.RecordCircuitBreakerTransition(name, from.String(), to.String())
			logger.Warn("circuit breaker state change",
				zap.String("component", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &AmadeusClient{
		baseURL:      u,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timeout:      cfg.Timeout,
		client:       cfg.HTTPClient,
		breaker:      breaker,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type offersResponse struct {
	Data []amadeusOffer `json:"data"`
}

type amadeusOffer struct {
	ID    string `json:"id"`
	Price struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"price"`
	Itineraries []amadeusItinerary `json:"itineraries"`
}

type amadeusItinerary struct {
	Duration string           `json:"duration"`
	Segments []amadeusSegment `json:"segments"`
}

type amadeusSegment struct {
	Departure   amadeusEndpoint `json:"departure"`
	Arrival     amadeusEndpoint `json:"arrival"`
	CarrierCode string          `json:"carrierCode"`
}

type amadeusEndpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

// SearchAirport queries offers from a single origin airport.
// Client errors (4xx) are returned but do not count against the breaker: they usually mean
// the route has no service.
func (c *AmadeusClient) SearchAirport(ctx context.Context, origin, destination, departureDate, returnDate string) ([]models.FlightOffer, error) {
	var clientErr error
	result, err := c.breaker.Execute(func() (interface{}, error) {
		offers, err := c.searchAirport(ctx, origin, destination, departureDate, returnDate)
		var provErr *ProviderError
		if errors.As(err, &provErr) && provErr.StatusCode >= 400 && provErr.StatusCode < 500 && provErr.StatusCode != http.StatusTooManyRequests {
			clientErr = err
			return nil, nil
		}
		return offers, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &ProviderError{Origin: origin, Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
	}
	if err != nil {
		return nil, err
	}
	if clientErr != nil {
		return nil, clientErr
	}
	offers, _ := result.([]models.FlightOffer)
	return offers, nil
}

func (c *AmadeusClient) searchAirport(ctx context.Context, origin, destination, departureDate, returnDate string) ([]models.FlightOffer, error) {
	token, err := c.accessToken(ctx, origin)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("originLocationCode", origin)
	params.Set("destinationLocationCode", destination)
	params.Set("departureDate", departureDate)
	if returnDate != "" {
		params.Set("returnDate", returnDate)
	}
	params.Set("adults", "1")
	params.Set("currencyCode", "USD")
	params.Set("max", "3")

	u := c.baseURL.JoinPath("/v2/shopping/flight-offers")
	u.RawQuery = params.Encode()

	var resp offersResponse
	if err := c.do(ctx, origin, http.MethodGet, u.String(), token, nil, &resp); err != nil {
		return nil, err
	}

	offers := make([]models.FlightOffer, 0, len(resp.Data))
	for _, o := range resp.Data {
		offer, ok := parseOffer(o, origin)
		if !ok {
			c.logger.Debug("skipping malformed flight offer", zap.String("origin", origin), zap.String("id", o.ID))
			continue
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// accessToken returns the cached token or fetches a new one. origin only labels errors.
func (c *AmadeusClient) accessToken(ctx context.Context, origin string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	var tok tokenResponse
	u := c.baseURL.JoinPath("/v1/security/oauth2/token")
	if err := c.do(ctx, origin, http.MethodPost, u.String(), "", strings.NewReader(form.Encode()), &tok); err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("fetch access token: empty token")
	}
	c.token = tok.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSkew)
	return c.token, nil
}

// do performs one request with a per-call timeout and decodes the JSON body into out.
func (c *AmadeusClient) do(ctx context.Context, origin, method, rawURL, token string, body io.Reader, out interface{}) error {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(ProviderAmadeus, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(ProviderAmadeus, "error").Observe(time.Since(start).Seconds())
		return &ProviderError{Origin: origin, Err: err}
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(ProviderAmadeus, status).Inc()
	observability.UpstreamDuration.WithLabelValues(ProviderAmadeus, status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &ProviderError{Origin: origin, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Origin: origin, Err: fmt.Errorf("parse response: %w", err)}
	}
	return nil
}

func parseOffer(o amadeusOffer, origin string) (models.FlightOffer, bool) {
	if len(o.Itineraries) == 0 || len(o.Itineraries[0].Segments) == 0 {
		return models.FlightOffer{}, false
	}
	price, err := strconv.ParseFloat(o.Price.Total, 64)
	if err != nil || price <= 0 {
		return models.FlightOffer{}, false
	}
	outbound := o.Itineraries[0]
	offer := models.FlightOffer{
		ID:         o.ID,
		Origin:     origin,
		Price:      price,
		Currency:   o.Price.Currency,
		Outbound:   toLeg(outbound),
		BookingURL: bookingURL(origin, outbound.Segments[0].Arrival.IATACode),
	}
	if len(o.Itineraries) > 1 && len(o.Itineraries[1].Segments) > 0 {
		ret := toLeg(o.Itineraries[1])
		offer.Return = &ret
	}
	return offer, true
}

func toLeg(it amadeusItinerary) models.FlightLeg {
	first, last := it.Segments[0], it.Segments[len(it.Segments)-1]
	return models.FlightLeg{
		Departure: first.Departure.At,
		Arrival:   last.Arrival.At,
		Duration:  it.Duration,
		Stops:     len(it.Segments) - 1,
		Carrier:   first.CarrierCode,
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == http.StatusTooManyRequests:
		return "rate_limited"
	case code >= 400 && code < 500:
		return "client_error"
	case code >= 500:
		return "server_error"
	default:
		return "error"
	}
}
