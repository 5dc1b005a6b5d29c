package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dialAttempts = 5
	dialBackoff  = 5 * time.Second
)

// DialRabbitMQ connects to the broker, retrying while it starts up.
func DialRabbitMQ(ctx context.Context, url string, logger *slog.Logger) (*amqp.Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			logger.Info("connected to rabbitmq",
				"event", "rabbitmq_connected",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"attempt", attempt,
			)
			return conn, nil
		}
		lastErr = err
		logger.Warn("rabbitmq dial failed",
			"event", "rabbitmq_dial_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"attempt", attempt,
			"error", err.Error(),
		)
		if attempt == dialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	return nil, fmt.Errorf("could not connect to rabbitmq after %d attempts: %w", dialAttempts, lastErr)
}
