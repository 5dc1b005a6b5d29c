package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{
		"SERVICE_NAME", "HTTP_PORT", "LOG_LEVEL", "STORE_BACKEND", "AUTH_MODE",
		"REDIS_URL", "RABBITMQ_URL", "RABBITMQ_EXCHANGE", "RELAY_IN_PROCESS",
		"RELAY_INTERVAL", "RELAY_BATCH_SIZE", "ENABLE_LIVE_FEED",
	} {
		t.Setenv(name, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ServiceName != "ballotbox" || cfg.HTTPPort != "8080" || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.StoreBackend != StoreBackendMemory || cfg.AuthMode != AuthModeSignature {
		t.Fatalf("unexpected backend defaults %+v", cfg)
	}
	if !cfg.RelayInProcess {
		t.Fatalf("memory backend must relay in process by default")
	}
	if cfg.RelayInterval != 2*time.Second || cfg.RelayBatchSize != 100 || !cfg.EnableLiveFeed {
		t.Fatalf("unexpected relay defaults %+v", cfg)
	}
	if cfg.RabbitMQExchange != "ballotbox.events" || cfg.RedisURL != "localhost:6379" {
		t.Fatalf("unexpected broker defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("AUTH_MODE", "trusted_header")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RELAY_INTERVAL", "500ms")
	t.Setenv("RELAY_BATCH_SIZE", "-4")
	t.Setenv("ENABLE_LIVE_FEED", "off")
	t.Setenv("RELAY_IN_PROCESS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.StoreBackend != StoreBackendPostgres || cfg.AuthMode != AuthModeTrustedHeader {
		t.Fatalf("unexpected modes %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.LogLevel)
	}
	if cfg.RelayInProcess {
		t.Fatalf("postgres backend relays in the worker by default")
	}
	if cfg.RelayInterval != 500*time.Millisecond || cfg.RelayBatchSize != 100 || cfg.EnableLiveFeed {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	t.Setenv("STORE_BACKEND", "cassandra")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("AUTH_MODE", "none")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unsupported auth mode error")
	}
	t.Setenv("AUTH_MODE", "")
	t.Setenv("LOG_LEVEL", "loud")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid log level error")
	}
}
