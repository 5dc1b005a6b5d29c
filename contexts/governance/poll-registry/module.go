package pollregistry

import (
	"log/slog"

	authadapter "ballotbox/contexts/governance/poll-registry/adapters/auth"
	httpadapter "ballotbox/contexts/governance/poll-registry/adapters/http"
	"ballotbox/contexts/governance/poll-registry/adapters/memory"
	"ballotbox/contexts/governance/poll-registry/application/commands"
	"ballotbox/contexts/governance/poll-registry/application/queries"
	"ballotbox/contexts/governance/poll-registry/application/workers"
	"ballotbox/contexts/governance/poll-registry/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Relay   workers.OutboxRelay
	Results queries.ResultUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Store      ports.Store
	Outbox     ports.OutboxRepository
	Authorizer ports.Authorizer
	Publisher  ports.EventPublisher
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	BatchSize  int
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	pollUseCase := commands.PollUseCase{
		Store:  deps.Store,
		Auth:   deps.Authorizer,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	resultUseCase := queries.ResultUseCase{
		Store:  deps.Store,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Polls:   pollUseCase,
			Results: resultUseCase,
			Logger:  deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.BatchSize,
			Logger:    deps.Logger,
		},
		Results: resultUseCase,
	}
}

// NewInMemoryModule wires the registry to a fresh in-process store. The
// authorizer defaults to the trusted header authorizer.
func NewInMemoryModule(authorizer ports.Authorizer, publisher ports.EventPublisher, logger *slog.Logger) Module {
	if authorizer == nil {
		authorizer = authadapter.TrustedHeaderAuthorizer{}
	}
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Store:      store,
		Outbox:     store,
		Authorizer: authorizer,
		Publisher:  publisher,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
