package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the forecasting core. It is built
// once at startup and threaded explicitly through every component; no
// package reads the environment except this one.
type Config struct {
	// Server
	Env string // development, staging, production

	// Pipeline
	Forecast ForecastConfig

	// External signal sources
	Sources SourcesConfig

	// Model registry (optional collaborator)
	Database DatabaseConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// ForecastConfig holds the pipeline knobs.
type ForecastConfig struct {
	Horizon          int
	LagDepths        []int
	RollingWindows   []int
	ExternalLags     []int // auto-derivation lags for external columns
	ConfidenceLevels []float64
	HoldoutDays      int // trailing rows reserved for backtest weighting
	FitTimeout       time.Duration
}

// SourcesConfig enumerates the configurable signal sources. Order matters:
// on duplicate field names the first-configured source wins.
type SourcesConfig struct {
	Timeout   time.Duration // per-source fetch budget
	RateLimit float64       // outgoing requests per second, 0 disables throttling
	RateBurst int
	Weather   WeatherConfig
	News      NewsConfig
	Analytics AnalyticsConfig
	Orders    OrdersConfig
}

// WeatherConfig holds the weather source configuration.
type WeatherConfig struct {
	Enabled  bool
	BaseURL  string
	APIKey   string
	Location string
}

// NewsConfig holds the news source configuration.
type NewsConfig struct {
	Enabled  bool
	BaseURL  string
	Keywords []string
}

// AnalyticsConfig holds the web analytics source configuration.
type AnalyticsConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
}

// OrdersConfig holds the e-commerce orders source configuration.
type OrdersConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
}

// DatabaseConfig holds PostgreSQL configuration for the model registry.
type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Load reads configuration from environment variables. Only this function
// calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Forecast: ForecastConfig{
			Horizon:          getEnvAsInt("FORECAST_HORIZON", 30),
			LagDepths:        getEnvAsInts("FORECAST_LAG_DEPTHS", []int{1, 2, 3, 7, 14, 30}),
			RollingWindows:   getEnvAsInts("FORECAST_ROLLING_WINDOWS", []int{7, 14, 30}),
			ExternalLags:     getEnvAsInts("FORECAST_EXTERNAL_LAGS", []int{1, 3, 7}),
			ConfidenceLevels: getEnvAsFloats("FORECAST_CONFIDENCE_LEVELS", []float64{0.1, 0.5, 0.9}),
			HoldoutDays:      getEnvAsInt("FORECAST_HOLDOUT_DAYS", 14),
			FitTimeout:       getEnvAsDuration("FORECAST_FIT_TIMEOUT", "60s"),
		},

		Sources: SourcesConfig{
			Timeout:   getEnvAsDuration("SOURCE_TIMEOUT", "10s"),
			RateLimit: getEnvAsFloat("SOURCE_RATE_LIMIT", 5),
			RateBurst: getEnvAsInt("SOURCE_RATE_BURST", 1),
			Weather: WeatherConfig{
				Enabled:  getEnvAsBool("SOURCE_WEATHER_ENABLED", false),
				BaseURL:  getEnv("SOURCE_WEATHER_BASE_URL", "https://api.open-meteo.com/v1"),
				APIKey:   getEnv("SOURCE_WEATHER_API_KEY", ""),
				Location: getEnv("SOURCE_WEATHER_LOCATION", "New York"),
			},
			News: NewsConfig{
				Enabled:  getEnvAsBool("SOURCE_NEWS_ENABLED", false),
				BaseURL:  getEnv("SOURCE_NEWS_BASE_URL", ""),
				Keywords: getEnvAsStrings("SOURCE_NEWS_KEYWORDS", []string{"business", "economy"}),
			},
			Analytics: AnalyticsConfig{
				Enabled: getEnvAsBool("SOURCE_ANALYTICS_ENABLED", false),
				BaseURL: getEnv("SOURCE_ANALYTICS_BASE_URL", ""),
				APIKey:  getEnv("SOURCE_ANALYTICS_API_KEY", ""),
			},
			Orders: OrdersConfig{
				Enabled: getEnvAsBool("SOURCE_ORDERS_ENABLED", false),
				BaseURL: getEnv("SOURCE_ORDERS_BASE_URL", ""),
				APIKey:  getEnv("SOURCE_ORDERS_API_KEY", ""),
			},
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency before any fetch or fit runs.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.Forecast.Horizon <= 0 {
		return fmt.Errorf("FORECAST_HORIZON must be positive, got %d", c.Forecast.Horizon)
	}
	if c.Forecast.HoldoutDays <= 0 {
		return fmt.Errorf("FORECAST_HOLDOUT_DAYS must be positive, got %d", c.Forecast.HoldoutDays)
	}
	for _, lag := range c.Forecast.LagDepths {
		if lag <= 0 {
			return fmt.Errorf("lag depths must be positive, got %d", lag)
		}
	}
	for _, w := range c.Forecast.RollingWindows {
		if w <= 1 {
			return fmt.Errorf("rolling windows must be > 1, got %d", w)
		}
	}
	for _, lvl := range c.Forecast.ConfidenceLevels {
		if lvl <= 0 || lvl >= 1 {
			return fmt.Errorf("confidence levels must be in (0, 1), got %v", lvl)
		}
	}
	if c.Sources.RateLimit < 0 {
		return fmt.Errorf("SOURCE_RATE_LIMIT must be non-negative, got %v", c.Sources.RateLimit)
	}
	if c.Sources.RateLimit > 0 && c.Sources.RateBurst < 1 {
		return fmt.Errorf("SOURCE_RATE_BURST must be positive when throttling, got %d", c.Sources.RateBurst)
	}
	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsInts(key string, defaultValue []int) []int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []int
	for _, part := range strings.Split(valueStr, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}

func getEnvAsFloats(key string, defaultValue []float64) []float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []float64
	for _, part := range strings.Split(valueStr, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}

func getEnvAsStrings(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
