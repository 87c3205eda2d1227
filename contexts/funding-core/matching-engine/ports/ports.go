package ports

import (
	"context"

	"quadfund/contexts/funding-core/matching-engine/domain/entities"
)

// SnapshotLoader is the engine's only suspension point. Implementations
// must return only approved campaigns and only confirmed contributions;
// the engine re-verifies and fails loudly if the contract is violated.
type SnapshotLoader interface {
	LoadRoundForDistribution(ctx context.Context, roundID string) (entities.RoundSnapshot, error)
	LoadRoundForMarginalEstimate(ctx context.Context, roundID string, campaignID string) (entities.RoundSnapshot, error)
}
