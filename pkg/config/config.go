package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	API     APIConfig     `json:"api"`
	Session SessionConfig `json:"session"`
	Redis   RedisConfig   `json:"redis"`
	Logging LoggingConfig `json:"logging"`
	Metrics MetricsConfig `json:"metrics"`
	Tracing TracingConfig `json:"tracing"`
	Stub    StubConfig    `json:"stub"`
}

// APIConfig describes how the backend is reached
type APIConfig struct {
	// BaseURL is the explicit override for the backend address. Empty means
	// the address is guessed from Origin.
	BaseURL         string        `json:"base_url"`
	Origin          string        `json:"origin"`
	BackendPort     int           `json:"backend_port"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	AnalyzeTimeout  time.Duration `json:"analyze_timeout"`
	AnalyzeAttempts int           `json:"analyze_attempts"`
	AnalyzeBackoff  time.Duration `json:"analyze_backoff"`
	UserAgent       string        `json:"user_agent"`
}

// SessionConfig selects where the credential is persisted
type SessionConfig struct {
	Backend string `json:"backend"` // file, redis or memory
	File    string `json:"file"`
	Key     string `json:"key"`
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// MetricsConfig controls the prometheus registry and its listener
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
	Addr      string `json:"addr"`
}

// TracingConfig controls OpenTelemetry export
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	JaegerEndpoint string  `json:"jaeger_endpoint"`
	SamplingRate   float64 `json:"sampling_rate"`
	Environment    string  `json:"environment"`
}

// StubConfig configures the local stub backend
type StubConfig struct {
	Addr      string        `json:"addr"`
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first when present; variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	return FromEnv()
}

// LoadFile is like Load but reads the given env file, which must exist.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*Config, error) {
	config := &Config{
		API: APIConfig{
			BaseURL:         strings.TrimSpace(getEnvString("NEBULA_API_URL", "")),
			Origin:          getEnvString("NEBULA_ORIGIN", "http://localhost:5173"),
			BackendPort:     getEnvInt("NEBULA_BACKEND_PORT", 8000),
			RequestTimeout:  getEnvDuration("NEBULA_REQUEST_TIMEOUT", 30*time.Second),
			AnalyzeTimeout:  getEnvDuration("NEBULA_ANALYZE_TIMEOUT", 5*time.Minute),
			AnalyzeAttempts: getEnvInt("NEBULA_ANALYZE_ATTEMPTS", 3),
			AnalyzeBackoff:  getEnvDuration("NEBULA_ANALYZE_BACKOFF", 2*time.Second),
			UserAgent:       getEnvString("NEBULA_USER_AGENT", "nebula-client/1.0"),
		},
		Session: SessionConfig{
			Backend: getEnvString("NEBULA_SESSION_BACKEND", "file"),
			File:    getEnvString("NEBULA_SESSION_FILE", defaultSessionFile()),
			Key:     getEnvString("NEBULA_SESSION_KEY", "token"),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 4),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "warn"),
			Format: getEnvString("LOG_FORMAT", "text"),
			Output: getEnvString("LOG_OUTPUT", "stderr"),
		},
		Metrics: MetricsConfig{
			Enabled:   getEnvBool("METRICS_ENABLED", true),
			Namespace: getEnvString("METRICS_NAMESPACE", "nebula_client"),
			Addr:      getEnvString("METRICS_ADDR", ""),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("TRACING_ENABLED", false),
			JaegerEndpoint: getEnvString("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			SamplingRate:   getEnvFloat("TRACING_SAMPLING_RATE", 1.0),
			Environment:    getEnvString("ENVIRONMENT", "development"),
		},
		Stub: StubConfig{
			Addr:      getEnvString("STUB_ADDR", ":8000"),
			JWTSecret: getEnvString("STUB_JWT_SECRET", "nebulaglass-dev-secret"),
			TokenTTL:  getEnvDuration("STUB_TOKEN_TTL", 24*time.Hour),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL != "" {
		if err := validateBaseURL("NEBULA_API_URL", c.API.BaseURL); err != nil {
			return err
		}
	}
	if err := validateBaseURL("NEBULA_ORIGIN", c.API.Origin); err != nil {
		return err
	}

	if c.API.BackendPort <= 0 || c.API.BackendPort > 65535 {
		return fmt.Errorf("NEBULA_BACKEND_PORT must be between 1 and 65535, got %d", c.API.BackendPort)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("NEBULA_REQUEST_TIMEOUT must be positive")
	}
	if c.API.AnalyzeTimeout <= 0 {
		return fmt.Errorf("NEBULA_ANALYZE_TIMEOUT must be positive")
	}
	if c.API.AnalyzeAttempts < 1 {
		return fmt.Errorf("NEBULA_ANALYZE_ATTEMPTS must be at least 1, got %d", c.API.AnalyzeAttempts)
	}
	if c.API.AnalyzeBackoff <= 0 {
		return fmt.Errorf("NEBULA_ANALYZE_BACKOFF must be positive")
	}

	switch c.Session.Backend {
	case "file":
		if c.Session.File == "" {
			return fmt.Errorf("NEBULA_SESSION_FILE is required for the file session backend")
		}
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid NEBULA_SESSION_BACKEND: %s (must be file, redis or memory)", c.Session.Backend)
	}
	if c.Session.Key == "" {
		return fmt.Errorf("NEBULA_SESSION_KEY cannot be empty")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("TRACING_SAMPLING_RATE must be between 0 and 1")
	}

	return nil
}

// RedisAddr returns the host:port pair for the Redis server
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func validateBaseURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must have a host, got %q", field, value)
	}
	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".nebulaglass", "session.json")
	}
	return filepath.Join(dir, "nebulaglass", "session.json")
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
