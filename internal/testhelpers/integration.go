//go:build integration
// +build integration

// Package testhelpers builds the live service stack for integration tests.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/island-getaway-service/internal/cache"
	"github.com/kjstillabower/island-getaway-service/internal/catalog"
	"github.com/kjstillabower/island-getaway-service/internal/client"
	"github.com/kjstillabower/island-getaway-service/internal/flights"
	"github.com/kjstillabower/island-getaway-service/internal/service"
	"github.com/kjstillabower/island-getaway-service/internal/trips"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	ForecastURL   string
	MarineURL     string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
	AmadeusURL    string
	AmadeusID     string
	AmadeusSecret string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test unless OPEN_METEO_INTEGRATION is set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("OPEN_METEO_INTEGRATION") == "" {
		t.Skip("OPEN_METEO_INTEGRATION not set, skipping integration test")
	}

	cfg := IntegrationTestConfig{
		ForecastURL:   envOr("WEATHER_API_URL", "https://api.open-meteo.com/v1/forecast"),
		MarineURL:     envOr("MARINE_API_URL", "https://marine-api.open-meteo.com/v1/marine"),
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: envOr("MEMCACHED_ADDRS", "localhost:11211"),
		AmadeusURL:    envOr("AMADEUS_URL", "https://test.api.amadeus.com"),
		AmadeusID:     os.Getenv("AMADEUS_CLIENT_ID"),
		AmadeusSecret: os.Getenv("AMADEUS_CLIENT_SECRET"),
	}
	return cfg
}

// SetupIntegrationStack creates the trips service over live upstreams and the configured cache.
// Flights are live only when Amadeus credentials are present. Returns the service, the cache
// and a cleanup function.
func SetupIntegrationStack(t *testing.T, cfg IntegrationTestConfig) (*trips.Service, cache.Cache, func()) {
	t.Helper()
	logger := zap.NewNop()

	weatherClient, err := client.NewOpenMeteoClient(client.Config{
		ForecastURL: cfg.ForecastURL,
		MarineURL:   cfg.MarineURL,
		Timeout:     10 * time.Second,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}

	var cacheSvc cache.Cache
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, cache.DefaultTTL, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			cacheSvc = mc
			cleanup = func() { _ = mc.Close() }
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available, using in-memory cache")
		}
	}
	if cacheSvc == nil {
		cacheSvc = cache.NewInMemoryCache(cache.DefaultTTL, nil)
	}

	var provider flights.Provider
	if cfg.AmadeusID != "" && cfg.AmadeusSecret != "" {
		amadeus, err := flights.NewAmadeusClient(flights.AmadeusConfig{
			BaseURL:      cfg.AmadeusURL,
			ClientID:     cfg.AmadeusID,
			ClientSecret: cfg.AmadeusSecret,
			Logger:       logger,
		})
		if err != nil {
			t.Fatalf("NewAmadeusClient() error = %v", err)
		}
		provider = amadeus
	}

	forecasts := service.NewForecastService(weatherClient, cacheSvc, logger, 10*time.Second)
	svc := trips.NewService(catalog.Embedded(), forecasts, flights.NewEstimator(provider, logger), trips.Config{}, logger)
	return svc, cacheSvc, cleanup
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
