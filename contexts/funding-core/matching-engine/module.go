package matchingengine

import (
	"log/slog"

	httpadapter "quadfund/contexts/funding-core/matching-engine/adapters/http"
	"quadfund/contexts/funding-core/matching-engine/adapters/memory"
	"quadfund/contexts/funding-core/matching-engine/application/queries"
	"quadfund/contexts/funding-core/matching-engine/domain/entities"
	"quadfund/contexts/funding-core/matching-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Loader ports.SnapshotLoader
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	queryUseCase := queries.UseCase{
		Loader: deps.Loader,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Queries: queryUseCase,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.RoundSnapshot, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Loader: store,
		Logger: logger,
	})
	module.Store = store
	return module
}
