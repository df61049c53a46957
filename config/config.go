// Package config reads process configuration from the environment, the way
// kshinn-umbra-gateway/config/config.go does: a thin Load() over getEnv/
// getEnvInt helpers, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the demo worker's process configuration. Everything the
// core itself needs (host config, restrictions, payment methods, bots,
// facilitator) lives in the KV store and is read through the cached
// configuration views instead — this struct only covers what bootstrap and
// the demo HTTP server need to start up.
type Config struct {
	// APIKey authenticates both the bootstrap credential fetch and the
	// telemetry sinks.
	APIKey string

	// APIBaseURL is the control-plane host for bootstrap and telemetry.
	APIBaseURL string

	// RedisURL/RedisToken/RedisTenantID, when all set, bypass the bootstrap
	// credential fetch entirely (spec.md §6, "bypasses bootstrap").
	RedisURL      string
	RedisToken    string
	RedisTenantID string

	// Platform and SDKVersion are stamped into the health-check response.
	Platform   string
	SDKVersion string

	// CoreVersion is the core_version reported by the health check.
	CoreVersion string

	// APIKeySecret, when set, enables the optional operator API-key JWT
	// validator (bootstrap.APIKeyValidator).
	APIKeySecret []byte
	APIKeyTTL    time.Duration

	// Port is the demo HTTP server's listen port.
	Port int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first if present, same dev convenience the
// teacher gateway offers.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		APIKey:        getEnv("FOLDSET_API_KEY", ""),
		APIBaseURL:    getEnv("API_BASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisToken:    getEnv("REDIS_TOKEN", ""),
		RedisTenantID: getEnv("REDIS_TENANT_ID", ""),
		Platform:      getEnv("PLATFORM", "unknown"),
		SDKVersion:    getEnv("SDK_VERSION", "unknown"),
		CoreVersion:   getEnv("CORE_VERSION", "0.1.0"),
		APIKeyTTL:     time.Duration(getEnvInt("API_KEY_TTL_HOURS", 24*90)) * time.Hour,
		Port:          getEnvInt("PORT", 8080),
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("FOLDSET_API_KEY env var is required")
	}

	if secretHex := getEnv("API_KEY_JWT_SECRET", ""); secretHex != "" {
		cfg.APIKeySecret = []byte(secretHex)
	}

	return cfg, nil
}

// HasRedisOverride reports whether Redis credentials were supplied directly
// instead of through the bootstrap endpoint.
func (c *Config) HasRedisOverride() bool {
	return c.RedisURL != "" && c.RedisToken != "" && c.RedisTenantID != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
