package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Storage
	DatabaseDSN string
	SeedFile    string

	// Payment providers
	ZoopAPIURL   string
	UseAPIURL    string
	ZoopPageSize int

	// HTTP client
	HTTPTimeout         time.Duration
	ProviderCallTimeout time.Duration

	// Resilience
	FetchAttempts             int
	InitialBackoff            time.Duration
	MaxConcurrentAggregations int

	// Cache
	TokenCacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Auth
	JWTSecret      string
	AccessTokenTTL time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 3333),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DATABASE_DSN", "financeiro.db"),
		SeedFile:    getEnv("SEED_FILE", "seed.yaml"),

		ZoopAPIURL:   getEnv("ZOOP_API_URL", "https://api.zoop.ws"),
		UseAPIURL:    getEnv("USE_API_URL", "https://api.useboletos.com.br"),
		ZoopPageSize: getEnvInt("ZOOP_PAGE_SIZE", 1000),

		HTTPTimeout:         getEnvDuration("HTTP_TIMEOUT", 60*time.Second),
		ProviderCallTimeout: getEnvDuration("PROVIDER_CALL_TIMEOUT", 30*time.Second),

		FetchAttempts:             getEnvInt("FETCH_ATTEMPTS", 3),
		InitialBackoff:            getEnvDuration("INITIAL_BACKOFF", 200*time.Millisecond),
		MaxConcurrentAggregations: getEnvInt("MAX_CONCURRENT_AGGREGATIONS", 4),

		TokenCacheTTL: getEnvDuration("TOKEN_CACHE_TTL", time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		JWTSecret:      getEnv("JWT_SECRET", "financeiro-default-dev-secret-change-me"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 50*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
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
