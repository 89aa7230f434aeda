package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/island-getaway-service/internal/cache"
	"github.com/kjstillabower/island-getaway-service/internal/catalog"
	"github.com/kjstillabower/island-getaway-service/internal/circuitbreaker"
	"github.com/kjstillabower/island-getaway-service/internal/client"
	"github.com/kjstillabower/island-getaway-service/internal/config"
	"github.com/kjstillabower/island-getaway-service/internal/flights"
	httphandler "github.com/kjstillabower/island-getaway-service/internal/http"
	"github.com/kjstillabower/island-getaway-service/internal/lifecycle"
	"github.com/kjstillabower/island-getaway-service/internal/observability"
	"github.com/kjstillabower/island-getaway-service/internal/scheduler"
	"github.com/kjstillabower/island-getaway-service/internal/service"
	"github.com/kjstillabower/island-getaway-service/internal/trips"
)

const weatherComponent = "weather_api"

// app holds the wired service graph.
type app struct {
	handler       http.Handler
	weatherClient *client.OpenMeteoClient
	memcached     *cache.MemcachedCache
	scheduler     *scheduler.Scheduler
}

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("wiring", zap.Error(err))
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.WeatherAPITimeout)
	if err := a.weatherClient.Ping(pingCtx); err != nil {
		logger.Warn("weather upstream not reachable at startup", zap.Error(err))
	}
	pingCancel()

	if a.scheduler != nil {
		if err := a.scheduler.Start(); err != nil {
			logger.Fatal("cache warming scheduler", zap.Error(err))
		}
		logger.Info("cache warming scheduled", zap.Duration("interval", cfg.WarmingInterval))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	if err := httphandler.WaitForInFlight(shutdownCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	a.close(logger)
	logger.Info("shutdown complete")
}

// newApp wires clients, caches, services and the router from cfg. It starts nothing.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
		Component:        weatherComponent,
		OnStateChange: func(component string, from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(component, from.String(), to.String())
			logger.Warn("circuit breaker state change",
				zap.String("component", component),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	observability.CircuitBreakerState.WithLabelValues(weatherComponent).Set(0)

	weatherClient, err := client.NewOpenMeteoClient(client.Config{
		ForecastURL:    cfg.WeatherAPIURL,
		MarineURL:      cfg.MarineAPIURL,
		Timeout:        cfg.WeatherAPITimeout,
		MarineTimeout:  cfg.MarineAPITimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		Limiter:        rate.NewLimiter(rate.Limit(cfg.WeatherRateRPS), cfg.WeatherRateBurst),
		Breaker:        breaker,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	a.weatherClient = weatherClient

	var cacheSvc cache.Cache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.CacheTTL, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("memcached cache: %w", err)
		}
		a.memcached = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		mem := cache.NewInMemoryCache(cfg.CacheTTL, nil)
		observability.SetCacheSizeSource(mem.Len)
		cacheSvc = mem
		logger.Info("cache backend: in_memory")
	}
	forecasts := service.NewForecastService(weatherClient, cacheSvc, logger, cfg.CoalesceTimeout)

	var provider flights.Provider
	if cfg.FlightsLive() {
		amadeus, err := flights.NewAmadeusClient(flights.AmadeusConfig{
			BaseURL:         cfg.AmadeusURL,
			ClientID:        cfg.AmadeusClientID,
			ClientSecret:    cfg.AmadeusClientSecret,
			Timeout:         cfg.AmadeusTimeout,
			BreakerFailures: cfg.AmadeusBreakerFailures,
			BreakerTimeout:  cfg.AmadeusBreakerTimeout,
			Logger:          logger,
		})
		if err != nil {
			return nil, fmt.Errorf("amadeus client: %w", err)
		}
		provider = amadeus
		logger.Info("flight prices: amadeus", zap.String("url", cfg.AmadeusURL))
	} else {
		logger.Info("flight prices: synthetic (no amadeus credentials)")
	}
	estimator := flights.NewEstimator(provider, logger)

	var src catalog.Source = catalog.Embedded()
	if cfg.CatalogPath != "" {
		src = catalog.NewFileSource(cfg.CatalogPath)
		logger.Info("island catalog from file", zap.String("path", cfg.CatalogPath))
	}

	// trips treats 0 as "use the default"; a configured 0 means no stagger or no minimum.
	stagger := cfg.TripStagger
	if stagger <= 0 {
		stagger = -1
	}
	minBeach := cfg.TripMinBeachScore
	if minBeach <= 0 {
		minBeach = -1
	}
	tripService := trips.NewService(src, forecasts, estimator, trips.Config{
		Stagger:       stagger,
		TopN:          cfg.TripTopN,
		MinBeachScore: minBeach,
	}, logger)

	if cfg.WarmingEnabled {
		a.scheduler = scheduler.New(src, cache.NewCacheWarmer(forecasts, logger), cfg.WarmingInterval, cfg.WarmingTimeout, logger)
	}

	healthConfig := &httphandler.HealthConfig{
		Lifecycle: lifecycle.HealthConfig{
			DegradedWindow:   cfg.DegradedWindow,
			DegradedErrorPct: cfg.DegradedErrorPct,
			MinSamples:       cfg.DegradedMinSamples,
		},
		Version:     cfg.Version,
		FlightsLive: estimator.Live(),
	}
	if a.memcached != nil {
		healthConfig.CachePing = a.memcached.Ping
	}

	observability.RegisterRateLimitGauges(cfg.DegradedWindow)
	if len(cfg.TrackedIslands) > 0 {
		observability.SetTrackedIslands(cfg.TrackedIslands)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	httphandler.NewHandler(tripService, healthConfig, logger).Routes(router,
		httphandler.RateLimitMiddleware(limiter),
		httphandler.TimeoutMiddleware(cfg.RequestTimeout),
	)
	a.handler = httphandler.CORSMiddleware(cfg.CORSAllowedOrigins)(router)
	return a, nil
}

// close releases connections held by the app.
func (a *app) close(logger *zap.Logger) {
	if a.memcached != nil {
		if err := a.memcached.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
}
