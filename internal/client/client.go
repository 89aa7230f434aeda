package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/island-getaway-service/internal/circuitbreaker"
	"github.com/kjstillabower/island-getaway-service/internal/models"
	"github.com/kjstillabower/island-getaway-service/internal/observability"
	"github.com/kjstillabower/island-getaway-service/internal/traffic"
)

// Provider labels used in upstream metrics.
const (
	ProviderForecast = "open_meteo"
	ProviderMarine   = "open_meteo_marine"
)

const (
	dailyForecastFields = "temperature_2m_max,temperature_2m_min,precipitation_sum,precipitation_probability_max,weather_code,sunshine_duration,uv_index_max,wind_speed_10m_max"
	currentFields       = "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m,uv_index"
	dailyMarineFields   = "wave_height_max,wave_period_max"
	currentMarineFields = "ocean_current_velocity,wave_height"
	forecastDays        = "7"
)

// WeatherClient fetches a normalized beach forecast for a coordinate.
type WeatherClient interface {
	GetForecast(ctx context.Context, lat, lon float64) (models.Forecast, error)
	Ping(ctx context.Context) error
}

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
)

// WeatherProviderError is a non-2xx answer from the forecast endpoint. It fails the forecast.
type WeatherProviderError struct {
	StatusCode int
	Err        error
}

func (e *WeatherProviderError) Error() string {
	return fmt.Sprintf("open-meteo forecast: HTTP %d: %v", e.StatusCode, e.Err)
}

func (e *WeatherProviderError) Unwrap() error { return e.Err }

// MarineProviderError is any failure of the marine endpoint. Callers log and ignore it;
// wave heights are simply absent from the forecast.
type MarineProviderError struct {
	StatusCode int
	Err        error
}

func (e *MarineProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("open-meteo marine: HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("open-meteo marine: %v", e.Err)
}

func (e *MarineProviderError) Unwrap() error { return e.Err }

// Config configures an OpenMeteoClient. Zero retry values use the defaults.
type Config struct {
	ForecastURL    string
	MarineURL      string
	Timeout        time.Duration
	MarineTimeout  time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// Limiter, when set, is waited on before every upstream request.
	Limiter *rate.Limiter
	// Breaker, when set, guards forecast calls.
	Breaker    *circuitbreaker.CircuitBreaker
	HTTPClient *http.Client
	Logger     *zap.Logger
	Now        func() time.Time
}

// OpenMeteoClient talks to the Open-Meteo forecast and marine APIs.
type OpenMeteoClient struct {
	forecastURL    *url.URL
	marineURL      *url.URL
	timeout        time.Duration
	marineTimeout  time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	limiter        *rate.Limiter
	breaker        *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
	now            func() time.Time
}

func NewOpenMeteoClient(cfg Config) (*OpenMeteoClient, error) {
	forecastURL, err := parseBaseURL(cfg.ForecastURL)
	if err != nil {
		return nil, fmt.Errorf("forecast url: %w", err)
	}
	marineURL, err := parseBaseURL(cfg.MarineURL)
	if err != nil {
		return nil, fmt.Errorf("marine url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MarineTimeout <= 0 {
		cfg.MarineTimeout = cfg.Timeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 100 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 2 * time.Second
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

	return &OpenMeteoClient{
		forecastURL:    forecastURL,
		marineURL:      marineURL,
		timeout:        cfg.Timeout,
		marineTimeout:  cfg.MarineTimeout,
		client:         cfg.HTTPClient,
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		retryMaxDelay:  cfg.RetryMaxDelay,
		limiter:        cfg.Limiter,
		breaker:        cfg.Breaker,
		logger:         cfg.Logger,
		now:            cfg.Now,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", raw)
	}
	return u, nil
}

type forecastResponse struct {
	Daily   models.RawDaily   `json:"daily"`
	Current models.RawCurrent `json:"current"`
}

type marineResponse struct {
	Daily struct {
		WaveHeightMax []*float64 `json:"wave_height_max"`
		WavePeriodMax []*float64 `json:"wave_period_max"`
	} `json:"daily"`
	Current struct {
		WaveHeight           *float64 `json:"wave_height"`
		OceanCurrentVelocity *float64 `json:"ocean_current_velocity"`
	} `json:"current"`
}

// GetForecast fetches the 7-day forecast and marine data for a coordinate concurrently.
// A forecast failure fails the call; a marine failure only drops wave heights.
func (c *OpenMeteoClient) GetForecast(ctx context.Context, lat, lon float64) (models.Forecast, error) {
	logger := observability.LoggerFromContext(ctx, c.logger)

	var (
		wg        sync.WaitGroup
		marine    *marineResponse
		marineErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		marine, marineErr = c.fetchMarine(ctx, lat, lon)
	}()

	fc, err := c.fetchForecastGuarded(ctx, lat, lon)
	wg.Wait()
	if err != nil {
		traffic.RecordError()
		observability.UpstreamErrorsTotal.WithLabelValues(ProviderForecast, string(CategorizeError(err))).Inc()
		return models.Forecast{}, err
	}
	traffic.RecordSuccess()

	if marineErr != nil {
		logger.Debug("marine data unavailable",
			zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(marineErr))
		marine = nil
	}

	forecast := buildForecast(fc.Daily, fc.Current, marine, c.now())
	observability.BeachScore.Observe(float64(forecast.BeachScore))
	return forecast, nil
}

func (c *OpenMeteoClient) fetchForecastGuarded(ctx context.Context, lat, lon float64) (forecastResponse, error) {
	if c.breaker == nil {
		return c.fetchForecast(ctx, lat, lon)
	}
	var resp forecastResponse
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.fetchForecast(ctx, lat, lon)
		return err
	})
	return resp, err
}

// fetchForecast calls the forecast endpoint with retry, exponential backoff and jitter.
func (c *OpenMeteoClient) fetchForecast(ctx context.Context, lat, lon float64) (forecastResponse, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(ProviderForecast).Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return forecastResponse{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		var resp forecastResponse
		err := c.call(ctx, ProviderForecast, c.forecastRequestURL(lat, lon), c.timeout, &resp)
		if err == nil {
			return resp, nil
		}

		var statusErr *httpStatusError
		if errors.As(err, &statusErr) {
			err = &WeatherProviderError{StatusCode: statusErr.code, Err: statusErr.sentinel()}
		}
		lastErr = err
		if ctx.Err() != nil || !c.isRetryable(err) {
			return forecastResponse{}, err
		}
	}

	return forecastResponse{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

// fetchMarine makes a single attempt; marine data is optional.
func (c *OpenMeteoClient) fetchMarine(ctx context.Context, lat, lon float64) (*marineResponse, error) {
	var resp marineResponse
	err := c.call(ctx, ProviderMarine, c.marineRequestURL(lat, lon), c.marineTimeout, &resp)
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) {
			return nil, &MarineProviderError{StatusCode: statusErr.code, Err: statusErr.sentinel()}
		}
		return nil, &MarineProviderError{Err: err}
	}
	return &resp, nil
}

// httpStatusError carries a non-2xx status out of call.
type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

func (e *httpStatusError) sentinel() error {
	if e.code == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return ErrUpstreamFailure
}

// call performs one GET with a per-call timeout and decodes a JSON body into out.
func (c *OpenMeteoClient) call(ctx context.Context, provider, rawURL string, timeout time.Duration, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(provider, "error").Inc()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(provider, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(provider, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(provider, status).Inc()
	observability.UpstreamDuration.WithLabelValues(provider, status).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &httpStatusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *OpenMeteoClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *WeatherProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode == http.StatusTooManyRequests || provErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

func (c *OpenMeteoClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *OpenMeteoClient) forecastRequestURL(lat, lon float64) string {
	params := coordParams(lat, lon)
	params.Set("daily", dailyForecastFields)
	params.Set("current", currentFields)
	u := *c.forecastURL
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *OpenMeteoClient) marineRequestURL(lat, lon float64) string {
	params := coordParams(lat, lon)
	params.Set("daily", dailyMarineFields)
	params.Set("current", currentMarineFields)
	u := *c.marineURL
	u.RawQuery = params.Encode()
	return u.String()
}

func coordParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("timezone", "auto")
	params.Set("forecast_days", forecastDays)
	return params
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// Ping checks that the forecast endpoint answers. Used as a startup probe.
func (c *OpenMeteoClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	params := coordParams(0, 0)
	params.Set("current", "temperature_2m")
	params.Set("forecast_days", "1")
	u := *c.forecastURL
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &WeatherProviderError{StatusCode: resp.StatusCode, Err: ErrUpstreamFailure}
	}
	return nil
}
