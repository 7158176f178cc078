package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	LedgerMemory   = "memory"
	LedgerRedis    = "redis"
	LedgerPostgres = "postgres"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Ledger backend: memory, redis or postgres
	LedgerBackend string
	PostgresDSN   string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// RabbitMQ event relay
	AMQPURL   string
	AMQPQueue string

	// Instruction rate limit per signer
	RateLimit       int64
	RateLimitWindow time.Duration

	// Maintenance
	HoldReleaseInterval time.Duration

	// Platform bootstrap file applied when the ledger is empty
	BootstrapPath string

	// Monitoring
	EnableMetrics   bool
	MetricsPort     string
	MetricsInterval time.Duration
}

// LoadConfig reads the environment, after merging a .env file when present.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable .env", "error", err)
	}

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Ledger
		LedgerBackend: getEnv("LEDGER_BACKEND", LedgerRedis),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisPoolSize: getEnvAsInt("REDIS_POOL_SIZE", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// RabbitMQ
		AMQPURL:   getEnv("AMQP_URL", ""),
		AMQPQueue: getEnv("AMQP_QUEUE", "slot.events"),

		// Rate limit
		RateLimit:       int64(getEnvAsInt("RATE_LIMIT", 30)),
		RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),

		// Maintenance
		HoldReleaseInterval: getEnvAsDuration("HOLD_RELEASE_INTERVAL", "5m"),

		BootstrapPath: getEnv("PLATFORM_BOOTSTRAP", ""),

		// Monitoring
		EnableMetrics:   getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsInterval: getEnvAsDuration("METRICS_INTERVAL", "30s"),
	}
}

func (c *Config) Validate() error {
	switch c.LedgerBackend {
	case LedgerMemory, LedgerRedis:
	case LedgerPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("config: POSTGRES_DSN is required for the postgres ledger")
		}
	default:
		return fmt.Errorf("config: unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
