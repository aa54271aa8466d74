package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration, loaded from the environment
// with sensible defaults for local runs.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Provider      ProviderConfig
	Engine        EngineConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port               string
	RateLimitPerSecond int
	RateLimitBurst     int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type ProviderConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	MaxPhotos      int
	MinPhotoHeight int
}

// EngineConfig tunes the staleness-aware cache engine.
type EngineConfig struct {
	FreshnessThreshold   time.Duration
	MaxConcurrentFetches int
	FetchTimeout         time.Duration

	RadiusMultiplier    float64
	MaxRadiusMeters     float64
	CenterOffsetDegrees float64
	SearchCacheTTL      time.Duration
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

// Load reads configuration from the environment. A .env file is applied first
// when present (local development); real environments set variables directly.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			RateLimitPerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "places"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Provider: ProviderConfig{
			BaseURL:        getEnv("PLACES_API_BASE_URL", "https://places.googleapis.com/v1"),
			APIKey:         os.Getenv("PLACES_API_KEY"),
			RequestTimeout: getEnvDuration("PLACES_API_TIMEOUT", 10*time.Second),
			MaxPhotos:      getEnvInt("PLACES_MAX_PHOTOS", 8),
			MinPhotoHeight: getEnvInt("PLACES_MIN_PHOTO_HEIGHT", 400),
		},
		Engine: EngineConfig{
			FreshnessThreshold:   getEnvDuration("FRESHNESS_THRESHOLD", 7*24*time.Hour),
			MaxConcurrentFetches: getEnvInt("MAX_CONCURRENT_FETCHES", 10),
			FetchTimeout:         getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
			RadiusMultiplier:     getEnvFloat("RADIUS_MULTIPLIER", 1.5),
			MaxRadiusMeters:      getEnvFloat("MAX_RADIUS_METERS", 50000),
			CenterOffsetDegrees:  getEnvFloat("CENTER_OFFSET_DEGREES", 0.01),
			SearchCacheTTL:       getEnvDuration("SEARCH_CACHE_TTL", 5*time.Minute),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Engine.FreshnessThreshold <= 0 {
		return fmt.Errorf("FRESHNESS_THRESHOLD must be positive")
	}
	if c.Engine.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_FETCHES must be positive")
	}
	if c.Engine.RadiusMultiplier <= 1 {
		return fmt.Errorf("RADIUS_MULTIPLIER must be greater than 1")
	}
	if c.Engine.MaxRadiusMeters <= 0 {
		return fmt.Errorf("MAX_RADIUS_METERS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
