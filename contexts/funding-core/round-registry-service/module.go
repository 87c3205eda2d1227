package roundregistry

import (
	"log/slog"
	"time"

	httpadapter "quadfund/contexts/funding-core/round-registry-service/adapters/http"
	"quadfund/contexts/funding-core/round-registry-service/adapters/memory"
	"quadfund/contexts/funding-core/round-registry-service/application"
	"quadfund/contexts/funding-core/round-registry-service/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repo           ports.Repository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:           deps.Repo,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Registry: service,
			Logger:   deps.Logger,
		},
	}
}

// NewInMemoryModule wires the registry against the in-memory store. The
// store also implements the matching engine's snapshot loader, so a local
// deployment can serve distributions without postgres.
func NewInMemoryModule(clock ports.Clock, idGen ports.IDGenerator, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repo:        store,
		Idempotency: store,
		Outbox:      store,
		Clock:       clock,
		IDGen:       idGen,
		Logger:      logger,
	})
	module.Store = store
	return module
}
