// Package config loads the process-wide configuration once at startup and
// hands the rest of the service an immutable snapshot. Nothing re-reads the
// environment after Load returns.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"crudgate.org/internal/auth"
)

// Config is the immutable startup snapshot.
type Config struct {
	Addr        string
	GRPCAddr    string // empty disables the gRPC health listener
	Environment string

	PostgresDSN string

	TokenSecret      string
	TokenLifetime    time.Duration
	RenewalThreshold time.Duration
	TokenAlgorithm   string
	TokenIssuer      string

	ResetTTL        time.Duration
	CleanupInterval time.Duration

	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
}

// Load reads the environment (plus an optional .env file) into a snapshot.
// The token secret is required: the service must never sign with a default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:        getEnv("CRUDGATE_ADDR", ":8080"),
		GRPCAddr:    getEnv("CRUDGATE_GRPC_ADDR", ""),
		Environment: getEnv("CRUDGATE_ENV", "development"),
		PostgresDSN: getEnv("CRUDGATE_PG_DSN", ""),

		TokenSecret:      os.Getenv("CRUDGATE_JWT_SECRET"),
		TokenLifetime:    getSecondsEnv("CRUDGATE_JWT_LIFETIME", 604800),
		RenewalThreshold: getSecondsEnv("CRUDGATE_JWT_RENEWAL_THRESHOLD", 3600),
		TokenAlgorithm:   getEnv("CRUDGATE_JWT_ALGORITHM", "HS256"),
		TokenIssuer:      getEnv("CRUDGATE_JWT_ISSUER", "crudgate"),

		ResetTTL:        getSecondsEnv("CRUDGATE_RESET_TTL", 3600),
		CleanupInterval: getSecondsEnv("CRUDGATE_CLEANUP_INTERVAL", 900),

		RateBurst:    getIntEnv("CRUDGATE_RATE_BURST", 20),
		RatePerSec:   getIntEnv("CRUDGATE_RATE_PER_SEC", 10),
		MaxBodyBytes: int64(getIntEnv("CRUDGATE_MAX_BODY_BYTES", 1<<20)),
	}

	if cfg.TokenSecret == "" {
		return nil, errors.New("config: CRUDGATE_JWT_SECRET is required")
	}
	return cfg, nil
}

// TokenConfig maps the snapshot onto the auth service configuration.
func (c *Config) TokenConfig() auth.Config {
	return auth.Config{
		Secret:           c.TokenSecret,
		Lifetime:         c.TokenLifetime,
		RenewalThreshold: c.RenewalThreshold,
		Algorithm:        c.TokenAlgorithm,
		Issuer:           c.TokenIssuer,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getSecondsEnv(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getIntEnv(key, fallbackSeconds)) * time.Second
}
