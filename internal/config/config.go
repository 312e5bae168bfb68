// apps/go-server/internal/config/config.go
//
// Server configuration.
//   - Reads .env (if present) via godotenv, then the process environment.
//   - Fills defaults for every setting and validates the result.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const devSessionSecret = "dev_secret_change_me"

// Config holds all server configuration.
type Config struct {
	Port         string `validate:"required,numeric"`
	LogLevel     string `validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogPretty    bool
	ClientOrigin string `validate:"required,url"`

	// SymbolsFile overrides the embedded card alphabet when set.
	SymbolsFile   string
	MismatchDelay time.Duration `validate:"gt=0"`

	SessionSecret string        `validate:"required"`
	SessionTTL    time.Duration `validate:"gt=0"`
}

var validate = validator.New()

// Load reads configuration from the environment (and .env, if present).
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	delayMs, err := getEnvInt("MISMATCH_DELAY_MS", 1500)
	if err != nil {
		return nil, err
	}
	ttlMin, err := getEnvInt("SESSION_TTL_MINUTES", 120)
	if err != nil {
		return nil, err
	}
	pretty, err := strconv.ParseBool(getEnv("LOG_PRETTY", "false"))
	if err != nil {
		return nil, fmt.Errorf("LOG_PRETTY: %w", err)
	}

	cfg := &Config{
		Port:          getEnv("PORT", "5175"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     pretty,
		ClientOrigin:  getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		SymbolsFile:   os.Getenv("SYMBOLS_FILE"),
		MismatchDelay: time.Duration(delayMs) * time.Millisecond,
		SessionSecret: getEnv("SESSION_SECRET", devSessionSecret),
		SessionTTL:    time.Duration(ttlMin) * time.Minute,
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DevSecret reports whether the built-in development secret is in use.
func (c *Config) DevSecret() bool {
	return c.SessionSecret == devSessionSecret
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
