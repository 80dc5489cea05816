package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/c1advanced/c1prep/internal/api"
	"github.com/c1advanced/c1prep/internal/validator"
	"github.com/joho/godotenv"
)

// Environment overrides
const (
	EnvAPIURL   = "C1PREP_API_URL"
	EnvLevel    = "C1PREP_LEVEL"
	EnvOffline  = "C1PREP_OFFLINE"
	EnvAMQPURL  = "C1PREP_AMQP_URL"
	EnvLogLevel = "C1PREP_LOG_LEVEL"
)

// LoadDotEnv loads .env from the working directory into the process
// environment. Variables already set win; a missing file is ignored.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		slog.Debug("load .env", "error", err)
	}
}

// ApplyEnv overrides cfg with C1PREP_* environment variables.
func ApplyEnv(cfg *Config) {
	cfg.API.BaseURL = getEnv(EnvAPIURL, cfg.API.BaseURL)
	cfg.Practice.Level = getEnv(EnvLevel, cfg.Practice.Level)
	cfg.Practice.ForceOffline = getEnvBool(EnvOffline, cfg.Practice.ForceOffline)
	cfg.Events.AMQPURL = getEnv(EnvAMQPURL, cfg.Events.AMQPURL)
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
}

// Validate checks every field through the shared validator.
func (c *Config) Validate() error {
	return validator.Default().Struct(c)
}

// Timeout returns the API timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// APIResilience converts the yaml toggles into the client's settings.
func (c *Config) APIResilience(logger *slog.Logger) api.ResilienceConfig {
	return api.ResilienceConfig{
		EnableCircuitBreaker: c.Resilience.CircuitBreaker,
		EnableBulkhead:       c.Resilience.Bulkhead,
		EnableRateLimit:      c.Resilience.RateLimit,
		EnableRetry:          c.Resilience.Retry,
		MaxConcurrent:        c.Resilience.MaxConcurrent,
		RatePerSecond:        c.Resilience.RatePerSecond,
		Logger:               logger,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
