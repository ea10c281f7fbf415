// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Gateway) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the worker is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Serina ingestion worker.
type Config struct {

	// Server settings (operational HTTP surface)
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Queue and coordination backend (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Ingestion pipeline tuning
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
	PollInterval      time.Duration `env:"POLL_INTERVAL"      envDefault:"5m"`
	JobMaxAttempts    int           `env:"JOB_MAX_ATTEMPTS"   envDefault:"3"`

	// Resilience gateway tuning
	BreakerThreshold int           `env:"BREAKER_THRESHOLD" envDefault:"5"`
	BreakerRecovery  time.Duration `env:"BREAKER_RECOVERY"  envDefault:"60s"`
	ScrapeRateRPS    float64       `env:"SCRAPE_RATE_RPS"   envDefault:"1"`
	ScrapeRateBurst  int           `env:"SCRAPE_RATE_BURST" envDefault:"3"`
	TokenWaitTimeout time.Duration `env:"TOKEN_WAIT_TIMEOUT" envDefault:"10s"`

	// AllowedHosts is the comma-separated list of upstream hostnames the
	// gateway will permit. Matching is exact, never suffix-based.
	AllowedHosts string `env:"ALLOWED_HOSTS,required"`

	// KyoshiroBaseURL roots the built-in Kyoshiro scrape capability. Its
	// host must also appear in AllowedHosts or every poll will be rejected.
	KyoshiroBaseURL string `env:"KYOSHIRO_BASE_URL" envDefault:"https://kyoshiro.to"`

	// Source hygiene
	SourceDisableThreshold int `env:"SOURCE_DISABLE_THRESHOLD" envDefault:"10"`

	// Reconciliation lock
	LockLease       time.Duration `env:"LOCK_LEASE"        envDefault:"30s"`
	LockWaitTimeout time.Duration `env:"LOCK_WAIT_TIMEOUT" envDefault:"5s"`

	// DLQ health alerting
	DLQWarningThreshold  int           `env:"DLQ_WARNING_THRESHOLD"  envDefault:"50"`
	DLQErrorThreshold    int           `env:"DLQ_ERROR_THRESHOLD"    envDefault:"200"`
	DLQCriticalThreshold int           `env:"DLQ_CRITICAL_THRESHOLD" envDefault:"500"`
	DLQAlertCooldown     time.Duration `env:"DLQ_ALERT_COOLDOWN"     envDefault:"15m"`
	DLQCheckInterval     time.Duration `env:"DLQ_CHECK_INTERVAL"     envDefault:"1m"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// AllowedHostList splits the configured host allow-list into its entries.
func (c *Config) AllowedHostList() []string {
	parts := strings.Split(c.AllowedHosts, ",")
	hosts := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			hosts = append(hosts, trimmed)
		}
	}
	return hosts
}

// IsDevelopment reports whether the worker is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the worker is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
