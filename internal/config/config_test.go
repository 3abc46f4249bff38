package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CRUDGATE_ADDR", "CRUDGATE_GRPC_ADDR", "CRUDGATE_ENV", "CRUDGATE_PG_DSN",
		"CRUDGATE_JWT_SECRET", "CRUDGATE_JWT_LIFETIME", "CRUDGATE_JWT_RENEWAL_THRESHOLD",
		"CRUDGATE_JWT_ALGORITHM", "CRUDGATE_JWT_ISSUER",
		"CRUDGATE_RESET_TTL", "CRUDGATE_CLEANUP_INTERVAL",
		"CRUDGATE_RATE_BURST", "CRUDGATE_RATE_PER_SEC", "CRUDGATE_MAX_BODY_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRUDGATE_JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.Environment != "development" {
		t.Fatalf("Environment = %q", cfg.Environment)
	}
	if cfg.TokenLifetime != 7*24*time.Hour {
		t.Fatalf("TokenLifetime = %v", cfg.TokenLifetime)
	}
	if cfg.RenewalThreshold != time.Hour {
		t.Fatalf("RenewalThreshold = %v", cfg.RenewalThreshold)
	}
	if cfg.TokenAlgorithm != "HS256" || cfg.TokenIssuer != "crudgate" {
		t.Fatalf("token defaults = %q/%q", cfg.TokenAlgorithm, cfg.TokenIssuer)
	}
	if cfg.ResetTTL != time.Hour || cfg.CleanupInterval != 15*time.Minute {
		t.Fatalf("reset defaults = %v/%v", cfg.ResetTTL, cfg.CleanupInterval)
	}
	if cfg.RateBurst != 20 || cfg.RatePerSec != 10 || cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("limit defaults = %d/%d/%d", cfg.RateBurst, cfg.RatePerSec, cfg.MaxBodyBytes)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without CRUDGATE_JWT_SECRET")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRUDGATE_JWT_SECRET", "test-secret")
	t.Setenv("CRUDGATE_ADDR", ":9090")
	t.Setenv("CRUDGATE_JWT_LIFETIME", "3600")
	t.Setenv("CRUDGATE_JWT_ALGORITHM", "HS512")
	t.Setenv("CRUDGATE_RATE_BURST", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.TokenLifetime != time.Hour {
		t.Fatalf("TokenLifetime = %v", cfg.TokenLifetime)
	}
	if cfg.TokenAlgorithm != "HS512" {
		t.Fatalf("TokenAlgorithm = %q", cfg.TokenAlgorithm)
	}
	if cfg.RateBurst != 5 {
		t.Fatalf("RateBurst = %d", cfg.RateBurst)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRUDGATE_JWT_SECRET", "test-secret")
	t.Setenv("CRUDGATE_JWT_LIFETIME", "a-week")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TokenLifetime != 7*24*time.Hour {
		t.Fatalf("TokenLifetime = %v", cfg.TokenLifetime)
	}
}

func TestTokenConfigMapsSnapshot(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRUDGATE_JWT_SECRET", "test-secret")
	t.Setenv("CRUDGATE_JWT_ISSUER", "crudgate-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tc := cfg.TokenConfig()
	if tc.Secret != "test-secret" || tc.Issuer != "crudgate-test" {
		t.Fatalf("TokenConfig = %+v", tc)
	}
	if tc.Lifetime != cfg.TokenLifetime || tc.RenewalThreshold != cfg.RenewalThreshold {
		t.Fatalf("durations not carried over: %+v", tc)
	}
}
