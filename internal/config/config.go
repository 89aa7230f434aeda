package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	Version string

	ServerPort string

	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	WeatherRateRPS    float64
	WeatherRateBurst  int
	MarineAPIURL      string
	MarineAPITimeout  time.Duration

	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheBackend   string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	CoalesceTimeout       time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	AmadeusURL             string
	AmadeusClientID        string
	AmadeusClientSecret    string
	AmadeusTimeout         time.Duration
	AmadeusBreakerFailures uint32
	AmadeusBreakerTimeout  time.Duration

	TripStagger       time.Duration
	TripTopN          int
	TripMinBeachScore int

	CatalogPath string

	WarmingEnabled  bool
	WarmingInterval time.Duration
	WarmingTimeout  time.Duration

	ShutdownTimeout time.Duration

	DegradedWindow     time.Duration
	DegradedErrorPct   int
	DegradedMinSamples int

	CORSAllowedOrigins []string
	TrackedIslands     []string
}

// FlightsLive reports whether Amadeus credentials are configured.
func (c *Config) FlightsLive() bool {
	return c.AmadeusClientID != "" && c.AmadeusClientSecret != ""
}

type fileConfig struct {
	Version string `yaml:"version"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL       string  `yaml:"url"`
		Timeout   string  `yaml:"timeout"`
		RateRPS   float64 `yaml:"rate_rps"`
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"weather_api"`

	MarineAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"marine_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend         string `yaml:"backend"`
		TTL             string `yaml:"ttl"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
		Memcached       struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Flights struct {
		Amadeus struct {
			URL             string `yaml:"url"`
			Timeout         string `yaml:"timeout"`
			BreakerFailures uint32 `yaml:"breaker_failures"`
			BreakerTimeout  string `yaml:"breaker_timeout"`
		} `yaml:"amadeus"`
	} `yaml:"flights"`

	Trips struct {
		Stagger       string `yaml:"stagger"`
		TopN          int    `yaml:"top_n"`
		MinBeachScore *int   `yaml:"min_beach_score"`
	} `yaml:"trips"`

	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`

	Warming struct {
		Enabled  *bool  `yaml:"enabled"`
		Interval string `yaml:"interval"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"warming"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		DegradedWindow     string `yaml:"degraded_window"`
		DegradedErrorPct   int    `yaml:"degraded_error_pct"`
		DegradedMinSamples int    `yaml:"degraded_min_samples"`
	} `yaml:"lifecycle"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Metrics struct {
		TrackedIslands []string `yaml:"tracked_islands"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	AmadeusClientID     string `yaml:"amadeus_client_id"`
	AmadeusClientSecret string `yaml:"amadeus_client_secret"`
}

// Load reads configuration from .env (optional), config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. Amadeus credentials come from env or the secrets file; without them
// flights are synthetic. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	cfg.Version = stringOr(fc.Version, "1.0.0")

	cfg.ServerPort = envOr("PORT", fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "3001"
	}

	cfg.WeatherAPIURL = stringOr(fc.WeatherAPI.URL, "https://api.open-meteo.com/v1/forecast")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)
	cfg.WeatherRateRPS = fc.WeatherAPI.RateRPS
	if cfg.WeatherRateRPS <= 0 {
		cfg.WeatherRateRPS = 10
	}
	cfg.WeatherRateBurst = fc.WeatherAPI.RateBurst
	if cfg.WeatherRateBurst <= 0 {
		cfg.WeatherRateBurst = 20
	}
	cfg.MarineAPIURL = stringOr(fc.MarineAPI.URL, "https://marine-api.open-meteo.com/v1/marine")
	cfg.MarineAPITimeout = parseDuration(fc.MarineAPI.Timeout, 5*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 30*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.CacheBackend = strings.ToLower(envOr("CACHE_BACKEND", fc.Cache.Backend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.CoalesceTimeout = parseDurationOrZero(fc.Cache.CoalesceTimeout, 15*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 200*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}
	cb := fc.Reliability.CircuitBreaker
	cfg.BreakerFailureThreshold = intOr(cb.FailureThreshold, 5)
	cfg.BreakerSuccessThreshold = intOr(cb.SuccessThreshold, 2)
	cfg.BreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	am := fc.Flights.Amadeus
	cfg.AmadeusURL = stringOr(am.URL, "https://test.api.amadeus.com")
	cfg.AmadeusTimeout = parseDuration(am.Timeout, 10*time.Second)
	cfg.AmadeusBreakerFailures = am.BreakerFailures
	if cfg.AmadeusBreakerFailures == 0 {
		cfg.AmadeusBreakerFailures = 5
	}
	cfg.AmadeusBreakerTimeout = parseDuration(am.BreakerTimeout, time.Minute)
	if err := loadAmadeusCredentials(cfg, cwd); err != nil {
		return nil, err
	}

	cfg.TripStagger = parseDurationOrZero(fc.Trips.Stagger, 50*time.Millisecond)
	cfg.TripTopN = intOr(fc.Trips.TopN, 5)
	cfg.TripMinBeachScore = 40
	if fc.Trips.MinBeachScore != nil {
		cfg.TripMinBeachScore = *fc.Trips.MinBeachScore
	}

	cfg.CatalogPath = envOr("CATALOG_PATH", fc.Catalog.Path)

	cfg.WarmingEnabled = true
	if fc.Warming.Enabled != nil {
		cfg.WarmingEnabled = *fc.Warming.Enabled
	}
	cfg.WarmingInterval = parseDuration(fc.Warming.Interval, 4*time.Minute)
	cfg.WarmingTimeout = parseDuration(fc.Warming.Timeout, time.Minute)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = intOr(fc.Lifecycle.DegradedErrorPct, 50)
	cfg.DegradedMinSamples = intOr(fc.Lifecycle.DegradedMinSamples, 5)

	cfg.CORSAllowedOrigins = fc.CORS.AllowedOrigins
	cfg.TrackedIslands = fc.Metrics.TrackedIslands

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAmadeusCredentials prefers env and falls back to config/secrets.yaml.
func loadAmadeusCredentials(cfg *Config, cwd string) error {
	cfg.AmadeusClientID = strings.TrimSpace(os.Getenv("AMADEUS_CLIENT_ID"))
	cfg.AmadeusClientSecret = strings.TrimSpace(os.Getenv("AMADEUS_CLIENT_SECRET"))
	if cfg.AmadeusClientID != "" && cfg.AmadeusClientSecret != "" {
		return nil
	}

	secretsData, err := os.ReadFile(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return fmt.Errorf("parse secrets file: %w", err)
	}
	if cfg.AmadeusClientID == "" {
		cfg.AmadeusClientID = strings.TrimSpace(sec.AmadeusClientID)
	}
	if cfg.AmadeusClientSecret == "" {
		cfg.AmadeusClientSecret = strings.TrimSpace(sec.AmadeusClientSecret)
	}
	return nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is so callers can use them to disable a feature.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

func stringOr(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

func intOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// validate performs post-load validation of configuration values.
// RequestTimeout is raised above WeatherAPITimeout when needed.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("WEATHER_API_TIMEOUT must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if (cfg.AmadeusClientID == "") != (cfg.AmadeusClientSecret == "") {
		return fmt.Errorf("AMADEUS_CLIENT_ID and AMADEUS_CLIENT_SECRET must be set together")
	}
	if cfg.TripMinBeachScore < 0 || cfg.TripMinBeachScore > 100 {
		return fmt.Errorf("trips.min_beach_score must be between 0 and 100, got %d", cfg.TripMinBeachScore)
	}
	if cfg.WarmingEnabled && cfg.WarmingInterval >= cfg.CacheTTL {
		return fmt.Errorf("warming.interval (%s) must be shorter than cache.ttl (%s)", cfg.WarmingInterval, cfg.CacheTTL)
	}
	return nil
}
