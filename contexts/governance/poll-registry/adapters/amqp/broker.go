package amqpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"ballotbox/contexts/governance/poll-registry/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultPrefetch = 32

// Publisher sends relayed outbox events to a durable topic exchange. The
// routing key is the event topic. Channels are not goroutine safe, so
// publishes are serialized.
type Publisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

func NewPublisher(conn *amqp.Connection, exchange string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	msg, err := toPublishing(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, p.exchange, topic, false, false, msg); err != nil {
		p.logger.Error("amqp publish failed",
			"event", "poll_registry_amqp_publish_failed",
			"module", "governance/poll-registry",
			"layer", "adapter",
			"exchange", p.exchange,
			"topic", topic,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Close()
}

func toPublishing(event ports.EventEnvelope) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event %s: %w", event.EventID, err)
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.EventID,
		CorrelationId: event.TraceID,
		Timestamp:     event.OccurredAt.UTC(),
		Type:          event.EventType,
		AppId:         event.SourceService,
		Headers: amqp.Table{
			"partition_key": event.PartitionKey,
		},
		Body: body,
	}, nil
}

// Subscriber binds one queue per (consumer group, topic) to the exchange, so
// every group receives each event once. Queues are durable unless their group
// is marked transient, in which case they are exclusive to the consuming
// connection and removed by the broker when it goes away.
type Subscriber struct {
	conn      *amqp.Connection
	exchange  string
	prefetch  int
	transient map[string]bool
	logger    *slog.Logger
}

// queueSpec holds the QueueDeclare flags for one consumer group.
type queueSpec struct {
	durable    bool
	autoDelete bool
	exclusive  bool
}

func NewSubscriber(conn *amqp.Connection, exchange string, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		conn:      conn,
		exchange:  exchange,
		prefetch:  defaultPrefetch,
		transient: make(map[string]bool),
		logger:    logger,
	}
}

// MarkTransient makes the queues of consumerGroup live only as long as this
// process, for groups named per instance. Call it before Subscribe.
func (s *Subscriber) MarkTransient(consumerGroup string) {
	s.transient[strings.TrimSpace(consumerGroup)] = true
}

func (s *Subscriber) queueSpec(consumerGroup string) queueSpec {
	if s.transient[strings.TrimSpace(consumerGroup)] {
		return queueSpec{durable: false, autoDelete: true, exclusive: true}
	}
	return queueSpec{durable: true}
}

func (s *Subscriber) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	queueName := QueueName(consumerGroup, topic)
	deliveries, err := s.bind(ch, queueName, topic, s.queueSpec(consumerGroup))
	if err != nil {
		_ = ch.Close()
		return err
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					s.logger.Warn("amqp delivery channel closed",
						"event", "poll_registry_amqp_consumer_closed",
						"module", "governance/poll-registry",
						"layer", "adapter",
						"queue", queueName,
					)
					return
				}
				s.handleDelivery(ctx, delivery, topic, consumerGroup, handler)
			}
		}
	}()
	return nil
}

func (s *Subscriber) bind(ch *amqp.Channel, queueName string, topic string, spec queueSpec) (<-chan amqp.Delivery, error) {
	if err := declareExchange(ch, s.exchange); err != nil {
		return nil, err
	}
	queue, err := ch.QueueDeclare(queueName, spec.durable, spec.autoDelete, spec.exclusive, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	if err := ch.QueueBind(queue.Name, topic, s.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", queue.Name, err)
	}
	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue %s: %w", queue.Name, err)
	}
	return deliveries, nil
}

// handleDelivery acks after the handler succeeds. Undecodable messages and
// handler failures are rejected without requeue.
func (s *Subscriber) handleDelivery(
	ctx context.Context,
	delivery amqp.Delivery,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) {
	var event ports.EventEnvelope
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		s.logger.Error("amqp delivery decode failed",
			"event", "poll_registry_amqp_decode_failed",
			"module", "governance/poll-registry",
			"layer", "adapter",
			"topic", topic,
			"consumer_group", consumerGroup,
			"message_id", delivery.MessageId,
			"error", err.Error(),
		)
		_ = delivery.Nack(false, false)
		return
	}
	if err := handler(ctx, event); err != nil {
		s.logger.Error("consumer handler failed",
			"event", "poll_registry_amqp_consume_failed",
			"module", "governance/poll-registry",
			"layer", "adapter",
			"topic", topic,
			"consumer_group", consumerGroup,
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		_ = delivery.Nack(false, false)
		return
	}
	_ = delivery.Ack(false)
}

func QueueName(consumerGroup string, topic string) string {
	group := strings.TrimSpace(consumerGroup)
	if group == "" {
		return topic
	}
	return group + "." + topic
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

var _ ports.EventPublisher = (*Publisher)(nil)
var _ ports.EventSubscriber = (*Subscriber)(nil)
