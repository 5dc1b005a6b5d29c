package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	pollregistry "ballotbox/contexts/governance/poll-registry"
	amqpadapter "ballotbox/contexts/governance/poll-registry/adapters/amqp"
	authadapter "ballotbox/contexts/governance/poll-registry/adapters/auth"
	"ballotbox/contexts/governance/poll-registry/adapters/memory"
	postgresadapter "ballotbox/contexts/governance/poll-registry/adapters/postgres"
	redisadapter "ballotbox/contexts/governance/poll-registry/adapters/redis"
	websocketadapter "ballotbox/contexts/governance/poll-registry/adapters/websocket"
	"ballotbox/contexts/governance/poll-registry/application/workers"
	"ballotbox/contexts/governance/poll-registry/ports"
	"ballotbox/internal/platform/config"
	"ballotbox/internal/platform/db"
	"ballotbox/internal/platform/httpserver"
	"ballotbox/internal/platform/jobs"
	"ballotbox/internal/platform/kv"
	"ballotbox/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	postgresReadyTimeout = 30 * time.Second
	riverStopTimeout     = 10 * time.Second
)

type APIApp struct {
	server         *httpserver.Server
	hub            *websocketadapter.Hub
	feed           workers.TallyBroadcaster
	relay          workers.OutboxRelay
	relayInProcess bool
	relayInterval  time.Duration
	infra          *infra
	logger         *slog.Logger
}

type WorkerApp struct {
	relay        workers.OutboxRelay
	runner       *jobs.Runner
	pollInterval time.Duration
	infra        *infra
	logger       *slog.Logger
}

// infra is the set of backing services one process connected to.
type infra struct {
	store      ports.Store
	outbox     ports.OutboxRepository
	clock      ports.Clock
	idgen      ports.IDGenerator
	publisher  ports.EventPublisher
	subscriber ports.EventSubscriber
	closers    []func() error
}

func (i *infra) close() error {
	var errs []error
	for idx := len(i.closers) - 1; idx >= 0; idx-- {
		if err := i.closers[idx](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "api")

	deps, err := connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	module := pollregistry.NewModule(pollregistry.Dependencies{
		Store:      deps.store,
		Outbox:     deps.outbox,
		Authorizer: newAuthorizer(cfg, logger),
		Publisher:  deps.publisher,
		Clock:      deps.clock,
		IDGen:      deps.idgen,
		BatchSize:  cfg.RelayBatchSize,
		Logger:     logger,
	})

	var hub *websocketadapter.Hub
	if cfg.EnableLiveFeed {
		hub = websocketadapter.NewHub(logger)
	}
	feed := workers.TallyBroadcaster{
		Subscriber:    deps.subscriber,
		Results:       module.Results,
		ConsumerGroup: liveFeedGroup(),
		Disabled:      hub == nil,
		Logger:        logger,
	}
	if hub != nil {
		feed.Broadcaster = hub
	}

	return &APIApp{
		server:         httpserver.New(module, hub, logger, normalizeAddr(cfg.HTTPPort)),
		hub:            hub,
		feed:           feed,
		relay:          module.Relay,
		relayInProcess: cfg.RelayInProcess,
		relayInterval:  cfg.RelayInterval,
		infra:          deps,
		logger:         logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "worker")
	if cfg.StoreBackend == config.StoreBackendMemory {
		return nil, errors.New("worker needs a shared STORE_BACKEND (postgres or redis); the memory store lives inside the api process")
	}

	deps, err := connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	relay := workers.OutboxRelay{
		Outbox:    deps.outbox,
		Publisher: deps.publisher,
		Clock:     deps.clock,
		BatchSize: cfg.RelayBatchSize,
		Logger:    logger,
	}
	app := &WorkerApp{
		relay:        relay,
		pollInterval: cfg.RelayInterval,
		infra:        deps,
		logger:       logger,
	}

	if cfg.StoreBackend == config.StoreBackendPostgres {
		runner, err := jobs.NewRunner(ctx, jobs.RunnerConfig{
			DSN:      cfg.PostgresDSN,
			Interval: cfg.RelayInterval,
			Migrate:  cfg.MigrateOnStart,
			Relay:    relay,
			Logger:   logger,
		})
		if err != nil {
			_ = deps.close()
			return nil, err
		}
		app.runner = runner
		deps.closers = append(deps.closers, func() error {
			runner.Close()
			return nil
		})
	}
	return app, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"relay_in_process", a.relayInProcess,
		"live_feed", a.hub != nil,
	)

	if err := a.feed.Start(ctx); err != nil {
		return err
	}
	if a.relayInProcess {
		go func() {
			if err := runRelayLoop(ctx, a.relay, a.relayInterval, a.logger); err != nil {
				a.logger.Error("in-process relay stopped",
					"event", "bootstrap_relay_stopped",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}()
	}
	return a.server.Run(ctx)
}

func (a *APIApp) Close() error {
	if a.hub != nil {
		a.hub.Close()
	}
	return a.infra.close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"scheduler", w.scheduler(),
	)
	if w.runner == nil {
		return runRelayLoop(ctx, w.relay, w.pollInterval, w.logger)
	}

	if err := w.runner.Start(ctx); err != nil {
		return fmt.Errorf("start river client: %w", err)
	}
	<-ctx.Done()
	return w.stopRunner()
}

// stopRunner waits for the running relay job, then cancels it if the soft
// stop times out.
func (w *WorkerApp) stopRunner() error {
	softCtx, softCancel := context.WithTimeout(context.Background(), riverStopTimeout)
	defer softCancel()
	err := w.runner.Stop(softCtx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	w.logger.Warn("soft stop timed out, cancelling relay job",
		"event", "bootstrap_worker_hard_stop",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	hardCtx, hardCancel := context.WithTimeout(context.Background(), riverStopTimeout)
	defer hardCancel()
	if err := w.runner.StopAndCancel(hardCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (w *WorkerApp) scheduler() string {
	if w.runner != nil {
		return "river"
	}
	return "ticker"
}

func (w *WorkerApp) Close() error {
	return w.infra.close()
}

func runRelayLoop(ctx context.Context, relay workers.OutboxRelay, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := relay.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("outbox relay cycle failed",
				"event", "bootstrap_relay_cycle_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*infra, error) {
	deps := &infra{
		clock: postgresadapter.SystemClock{},
		idgen: postgresadapter.UUIDGenerator{},
	}

	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required")
		}
		pg, err := db.Connect(ctx, cfg.PostgresDSN, postgresReadyTimeout)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, pg.Close)
		store := postgresadapter.NewStore(pg.DB, logger)
		if cfg.MigrateOnStart {
			if err := store.Migrate(ctx); err != nil {
				_ = deps.close()
				return nil, err
			}
		}
		deps.store = store
		deps.outbox = store
	case config.StoreBackendRedis:
		client, err := kv.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, client.Close)
		store := redisadapter.NewStore(client, cfg.RedisPrefix, logger)
		deps.store = store
		deps.outbox = store
	default:
		store := memory.NewStore()
		deps.store = store
		deps.outbox = store
		deps.clock = store
		deps.idgen = store
	}

	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		bus := messaging.NewBus(logger)
		deps.publisher = bus
		deps.subscriber = bus
		return deps, nil
	}

	conn, err := messaging.DialRabbitMQ(ctx, cfg.RabbitMQURL, logger)
	if err != nil {
		_ = deps.close()
		return nil, err
	}
	deps.closers = append(deps.closers, conn.Close)
	publisher, err := amqpadapter.NewPublisher(conn, cfg.RabbitMQExchange, logger)
	if err != nil {
		_ = deps.close()
		return nil, err
	}
	deps.closers = append(deps.closers, publisher.Close)
	deps.publisher = publisher
	subscriber := amqpadapter.NewSubscriber(conn, cfg.RabbitMQExchange, logger)
	subscriber.MarkTransient(liveFeedGroup())
	deps.subscriber = subscriber
	return deps, nil
}

func newAuthorizer(cfg config.Config, logger *slog.Logger) ports.Authorizer {
	if cfg.AuthMode == config.AuthModeTrustedHeader {
		logger.Warn("trusted header auth enabled; X-Identity is not verified",
			"event", "bootstrap_trusted_header_auth",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return authadapter.TrustedHeaderAuthorizer{}
	}
	return authadapter.SignatureAuthorizer{Logger: logger}
}

func newLogger(cfg config.Config, process string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	logger := slog.New(handler).With("service", cfg.ServiceName, "process", process)
	slog.SetDefault(logger)
	return logger
}

// liveFeedGroup gives each api instance its own queue so every replica
// receives every tally event for its own websocket clients. The group is
// marked transient on the RabbitMQ subscriber, so a replaced instance leaves
// no queue behind.
func liveFeedGroup() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		return "poll-registry-live-tally-cg"
	}
	return "poll-registry-live-tally-cg." + host
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
