// Package config provides environment-aware configuration management for
// the Braid process: backing business API connectivity, cache/rate-limit
// sizing, service-credential expiry, audit storage, and logging, all
// overridable via environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aishacrm/braid/infrastructure/runtime"
)

// Config holds Braid's full process configuration.
type Config struct {
	Env runtime.Environment

	// Backing business API
	BackendBaseURL     string
	BackendAPIKey      string
	BackendHTTPTimeout time.Duration

	// Service credential (minted for the backing business API)
	ServiceTokenSubject string
	ServiceTokenExpiry  time.Duration

	// Cache Coordinator / Metrics Accumulator (shared counter backend)
	CacheDefaultTTL    time.Duration
	CacheMaxEntries    int
	CacheSweepInterval time.Duration

	// Security Gate rate limiting
	RateLimitEnabled bool

	// Audit Sink
	AuditLogPath    string
	AuditRingSize   int
	AuditDatabaseDSN string

	// Logging
	LogLevel  string
	LogFormat string

	// Server
	ServerPort int

	// Metrics (host-process instrumentation, distinct from C6)
	MetricsEnabled bool
	MetricsPort    int

	// Features
	EnableDebugEndpoints bool
	TestMode             bool
}

// Load reads BRAID_ENV, optionally loads a matching config/<env>.env file,
// and populates Config from the environment with sane development
// defaults.
func Load() (*Config, error) {
	envStr := os.Getenv("BRAID_ENV")
	if envStr == "" {
		envStr = string(runtime.Development)
	}
	env, ok := runtime.ParseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid BRAID_ENV: %s (must be development, testing, or production)", envStr)
	}

	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	if err := godotenv.Load(configFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("Warning: could not load %s: %v\n", configFile, err)
		}
	}

	cfg := &Config{Env: env}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromEnv() error {
	c.BackendBaseURL = runtime.ResolveString("", "BACKEND_BASE_URL", "http://localhost:4000")
	c.BackendAPIKey = runtime.ResolveString("", "BACKEND_API_KEY", "")
	c.BackendHTTPTimeout = runtime.ResolveDuration(0, "BACKEND_HTTP_TIMEOUT", 10*time.Second)

	c.ServiceTokenSubject = runtime.ResolveString("", "SERVICE_TOKEN_SUBJECT", "braid-dispatcher")
	c.ServiceTokenExpiry = runtime.ResolveDuration(0, "SERVICE_TOKEN_EXPIRY", 2*time.Minute)

	c.CacheDefaultTTL = runtime.ResolveDuration(0, "CACHE_DEFAULT_TTL", 60*time.Second)
	c.CacheMaxEntries = runtime.ResolveInt(0, "CACHE_MAX_ENTRIES", 10000)
	c.CacheSweepInterval = runtime.ResolveDuration(0, "CACHE_SWEEP_INTERVAL", 30*time.Second)

	c.RateLimitEnabled = runtime.ResolveBool(true, "RATE_LIMIT_ENABLED")

	c.AuditLogPath = runtime.ResolveString("", "AUDIT_LOG_PATH", "")
	c.AuditRingSize = runtime.ResolveInt(0, "AUDIT_RING_SIZE", 200)
	c.AuditDatabaseDSN = runtime.ResolveString("", "AUDIT_DATABASE_DSN", "")

	c.LogLevel = runtime.ResolveString("", "LOG_LEVEL", "info")
	c.LogFormat = runtime.ResolveString("", "LOG_FORMAT", "json")
	if c.Env == runtime.Development {
		c.LogFormat = runtime.ResolveString("", "LOG_FORMAT", "text")
	}

	c.ServerPort = runtime.ResolveInt(0, "SERVER_PORT", 8090)

	c.MetricsEnabled = runtime.ResolveBool(c.Env == runtime.Production, "METRICS_ENABLED")
	c.MetricsPort = runtime.ResolveInt(0, "METRICS_PORT", 9090)

	c.EnableDebugEndpoints = runtime.ResolveBool(false, "ENABLE_DEBUG_ENDPOINTS")
	c.TestMode = runtime.ResolveBool(false, "TEST_MODE")

	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == runtime.Development }
func (c *Config) IsTesting() bool     { return c.Env == runtime.Testing }
func (c *Config) IsProduction() bool  { return c.Env == runtime.Production }

// Validate enforces production-only hardening constraints, gating
// dev-only toggles behind an environment check.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.EnableDebugEndpoints {
			return fmt.Errorf("ENABLE_DEBUG_ENDPOINTS must be false in production")
		}
		if c.TestMode {
			return fmt.Errorf("TEST_MODE must be false in production")
		}
		if !c.RateLimitEnabled {
			return fmt.Errorf("RATE_LIMIT_ENABLED must be true in production")
		}
		if strings.TrimSpace(c.BackendAPIKey) == "" {
			return fmt.Errorf("BACKEND_API_KEY is required in production")
		}
	}

	if c.ServerPort < 1024 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d (must be between 1024 and 65535)", c.ServerPort)
	}
	if c.ServiceTokenExpiry <= 0 {
		return fmt.Errorf("SERVICE_TOKEN_EXPIRY must be positive")
	}

	return nil
}
