// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

/*
Package config handles SDK-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (Transport, Credential Store) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This keeps the SDK Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/townspark/townspark-go/internal/platform/constants"
)

// # Configuration Schema

// Config holds all runtime configuration for the TownSpark client SDK.
type Config struct {

	// APIBaseURL is the root of the TownSpark REST API.
	APIBaseURL string `env:"TOWNSPARK_API_URL" envDefault:"http://localhost:8000/api"`

	// RequestTimeoutSeconds bounds every outbound HTTP call.
	RequestTimeoutSeconds int `env:"TOWNSPARK_REQUEST_TIMEOUT" envDefault:"30"`

	// Credential persistence backend: "memory", "file", or "redis".
	CredentialBackend string `env:"TOWNSPARK_CREDENTIAL_BACKEND" envDefault:"file"`

	// CredentialFile is the path of the file-backed credential store.
	CredentialFile string `env:"TOWNSPARK_CREDENTIAL_FILE" envDefault:".townspark/credentials.json"`

	// Key-Value Store (Redis), required only for the redis backend.
	RedisURL string `env:"TOWNSPARK_REDIS_URL"`

	// DeviceID namespaces redis-stored credentials per client instance.
	DeviceID string `env:"TOWNSPARK_DEVICE_ID" envDefault:"default"`

	// Outbound rate limit in requests per second. Zero disables limiting.
	RateLimitRPS float64 `env:"TOWNSPARK_RATE_LIMIT_RPS" envDefault:"0"`

	Debug bool `env:"TOWNSPARK_DEBUG" envDefault:"false"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.CredentialBackend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("config: TOWNSPARK_REDIS_URL is required for the redis credential backend")
	}

	return cfg, nil
}

// RequestTimeout returns the configured per-request deadline as a duration.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return constants.DefaultRequestTimeout
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
