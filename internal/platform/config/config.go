package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"

	AuthModeSignature     = "signature"
	AuthModeTrustedHeader = "trusted_header"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	LogLevel    slog.Level

	StoreBackend string
	PostgresDSN  string
	RedisURL     string
	RedisPrefix  string

	RabbitMQURL      string
	RabbitMQExchange string

	AuthMode string

	RelayInProcess bool
	RelayInterval  time.Duration
	RelayBatchSize int
	EnableLiveFeed bool
	MigrateOnStart bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "ballotbox"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	level, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return Config{}, err
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
	if backend == "" {
		backend = StoreBackendMemory
	}
	switch backend {
	case StoreBackendMemory, StoreBackendPostgres, StoreBackendRedis:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_BACKEND %q", backend)
	}

	authMode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if authMode == "" {
		authMode = AuthModeSignature
	}
	switch authMode {
	case AuthModeSignature, AuthModeTrustedHeader:
	default:
		return Config{}, fmt.Errorf("unsupported AUTH_MODE %q", authMode)
	}

	redisURL := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if redisURL == "" {
		redisURL = "localhost:6379"
	}

	exchange := strings.TrimSpace(os.Getenv("RABBITMQ_EXCHANGE"))
	if exchange == "" {
		exchange = "ballotbox.events"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		LogLevel:    level,

		StoreBackend: backend,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisURL:     redisURL,
		RedisPrefix:  envString("REDIS_KEY_PREFIX", "ballotbox:"),

		RabbitMQURL:      strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		RabbitMQExchange: exchange,

		AuthMode: authMode,

		RelayInProcess: envBool("RELAY_IN_PROCESS", backend == StoreBackendMemory),
		RelayInterval:  envDuration("RELAY_INTERVAL", 2*time.Second),
		RelayBatchSize: envInt("RELAY_BATCH_SIZE", 100),
		EnableLiveFeed: envBool("ENABLE_LIVE_FEED", true),
		MigrateOnStart: envBool("MIGRATE_ON_START", true),
	}, nil
}

func parseLevel(raw string) (slog.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
