package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Port                    string        `mapstructure:"PORT"`
	Env                     string        `mapstructure:"ENV"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	StoreBackend            string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL             string        `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins             []string      `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey          string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer              string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience            string        `mapstructure:"AUTH_AUDIENCE"`
	MockLatency             time.Duration `mapstructure:"MOCK_LATENCY"`
	SeedMockData            bool          `mapstructure:"SEED_MOCK_DATA"`
	ValidationSessionTTL    time.Duration `mapstructure:"VALIDATION_SESSION_TTL"`
	RateLimitRPS            float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst          int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout          time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CompletionSweepSchedule string        `mapstructure:"COMPLETION_SWEEP_SCHEDULE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "STORE_BACKEND", "DATABASE_URL",
	"DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"MOCK_LATENCY", "SEED_MOCK_DATA", "VALIDATION_SESSION_TTL",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"COMPLETION_SWEEP_SCHEDULE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_ISSUER", "chart")
	v.SetDefault("MOCK_LATENCY", "0s")
	v.SetDefault("SEED_MOCK_DATA", true)
	v.SetDefault("VALIDATION_SESSION_TTL", "30m")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("COMPLETION_SWEEP_SCHEDULE", "@hourly")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMemory, BackendPostgres, c.StoreBackend)
	}

	if c.IsProduction() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
	}
	if c.MockLatency < 0 {
		return fmt.Errorf("MOCK_LATENCY must not be negative, got %s", c.MockLatency)
	}
	if c.ValidationSessionTTL <= 0 {
		return fmt.Errorf("VALIDATION_SESSION_TTL must be positive, got %s", c.ValidationSessionTTL)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.CompletionSweepSchedule != "" {
		if _, err := cron.ParseStandard(c.CompletionSweepSchedule); err != nil {
			return fmt.Errorf("COMPLETION_SWEEP_SCHEDULE is not a valid cron spec: %w", err)
		}
	}
	return nil
}

// NewLogger builds the process logger: JSON to stdout, or a console writer in
// development. Unknown LOG_LEVEL values fall back to info.
func (c *Config) NewLogger() zerolog.Logger {
	return c.newLogger(os.Stdout)
}

func (c *Config) newLogger(out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if c.IsDev() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()

	if c.IsDev() {
		logger.Warn().Msg("server is running in development mode: requests without a token run as an admin prescriber")
	}
	return logger
}
