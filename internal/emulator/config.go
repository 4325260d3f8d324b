package emulator

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends selectable through STORE.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds the emulator configuration
type Config struct {
	// Server configuration
	Host string
	Port int

	// Store selects the backend: "memory" or "redis"
	Store string

	// Redis configuration, used when Store is "redis"
	Redis RedisConfig

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// SweepInterval is how often expired token grants are dropped
	SweepInterval time.Duration

	// MetricsPath serves Prometheus metrics; empty disables it
	MetricsPath string
	LogLevel    string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// Address returns the Redis server address
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultConfig returns a memory-backed emulator on port 8080.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Store:           StoreMemory,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		SweepInterval:   time.Minute,
		MetricsPath:     "/metrics",
		LogLevel:        "info",
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			KeyPrefix:    "kvdb",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     50,
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	requestTimeout, err := parseDuration(getEnvOrDefault("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := parseDuration(getEnvOrDefault("SHUTDOWN_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	sweepInterval, err := parseDuration(getEnvOrDefault("SWEEP_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}

	redisPort, err := strconv.Atoi(getEnvOrDefault("REDIS_PORT", "6379"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = port
	cfg.Store = getEnvOrDefault("STORE", StoreMemory)
	cfg.RequestTimeout = requestTimeout
	cfg.ShutdownTimeout = shutdownTimeout
	cfg.SweepInterval = sweepInterval
	cfg.MetricsPath = getEnvOrDefault("METRICS_PATH", cfg.MetricsPath)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Redis.Host = getEnvOrDefault("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = redisPort
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = redisDB
	cfg.Redis.KeyPrefix = getEnvOrDefault("REDIS_KEY_PREFIX", cfg.Redis.KeyPrefix)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("invalid STORE %q: must be %q or %q", c.Store, StoreMemory, StoreRedis)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	return nil
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string) (time.Duration, error) {
	// Try parsing as a duration string (e.g., "1h30m")
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	// Try parsing as seconds
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}
