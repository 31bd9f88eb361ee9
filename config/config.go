package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the gateway configuration
type Config struct {
	BackendURL       string        // Marketplace backend API base URL (required)
	FrontendURL      string        // Frontend rendering origin for guarded page navigations
	Port             string        // Service port
	Environment      string        // development | production
	RequestTimeout   time.Duration // Per-request timeout against the backend
	RefreshTimeout   time.Duration // Timeout for refresh-token calls
	FetchRetries     int           // Transient-failure retries per fetch (on top of the first attempt)
	PublicCacheSize  int           // Max entries in the public response cache
	PublicCacheTTL   time.Duration // TTL for cached public responses
	RateLimitPerSec  float64       // Per-IP request rate on guarded paths
	RateLimitBurst   int           // Per-IP burst on guarded paths
	BreakerThreshold int           // Consecutive backend failures before the circuit opens
	BreakerCooldown  time.Duration // How long the circuit stays open
}

// Load reads configuration from environment variables. A .env file is
// honoured when present so local runs match compose deployments.
// BACKEND_URL has no default: a gateway without a backend is a
// deployment mistake that should fail at startup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		BackendURL:       getEnv("BACKEND_URL", ""),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		Port:             getEnv("PORT", "8890"),
		Environment:      getEnv("APP_ENV", "development"),
		RequestTimeout:   15 * time.Second,
		RefreshTimeout:   5 * time.Second,
		FetchRetries:     1,
		PublicCacheSize:  512,
		PublicCacheTTL:   30 * time.Second,
		RateLimitPerSec:  20,
		RateLimitBurst:   40,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		duration, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUEST_TIMEOUT format: %w", err)
		}
		config.RequestTimeout = duration
	}

	if v := os.Getenv("PUBLIC_CACHE_TTL"); v != "" {
		duration, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PUBLIC_CACHE_TTL format: %w", err)
		}
		config.PublicCacheTTL = duration
	}

	if v := os.Getenv("FETCH_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid FETCH_RETRIES value: %q", v)
		}
		config.FetchRetries = n
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL must be set")
	}

	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.PublicCacheTTL <= 0 {
		return fmt.Errorf("PUBLIC_CACHE_TTL must be positive")
	}

	return nil
}

// SecureCookies reports whether cookies should carry the Secure
// attribute. Only disabled in development so local HTTP works.
func (c *Config) SecureCookies() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	// Check for _FILE suffix
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
