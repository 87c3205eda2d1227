package queries

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"quadfund/contexts/funding-core/matching-engine/application/engine"
	"quadfund/contexts/funding-core/matching-engine/domain/entities"
	domainerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
	"quadfund/contexts/funding-core/matching-engine/domain/money"
	"quadfund/contexts/funding-core/matching-engine/ports"
)

// UseCase exposes the engine's read API. It holds no mutable state: every
// call loads a fresh snapshot and computes against it, so concurrent
// invocations never interfere.
type UseCase struct {
	Loader ports.SnapshotLoader
	Logger *slog.Logger
}

// ComputeDistribution returns the full per-campaign matching allocation for
// a round.
func (uc UseCase) ComputeDistribution(ctx context.Context, roundID string) (entities.DistributionReport, error) {
	roundID = strings.TrimSpace(roundID)
	if roundID == "" {
		return entities.DistributionReport{}, domainerrors.ErrInvalidParameter
	}

	snapshot, err := uc.Loader.LoadRoundForDistribution(ctx, roundID)
	if err != nil {
		return entities.DistributionReport{}, err
	}
	report, err := engine.ComputeDistribution(snapshot)
	if err != nil {
		uc.logComputeFailure("distribution_compute_failed", roundID, err)
		return entities.DistributionReport{}, err
	}
	return report, nil
}

// ComputeMarginalEstimate projects the matching impact of one hypothetical
// contribution while leaving the committed distribution untouched.
func (uc UseCase) ComputeMarginalEstimate(
	ctx context.Context,
	roundID string,
	campaignID string,
	donorID string,
	amount money.Money,
) (entities.MarginalEstimate, error) {
	roundID = strings.TrimSpace(roundID)
	campaignID = strings.TrimSpace(campaignID)
	if roundID == "" || campaignID == "" {
		return entities.MarginalEstimate{}, domainerrors.ErrInvalidParameter
	}
	if strings.TrimSpace(donorID) == "" {
		return entities.MarginalEstimate{}, domainerrors.ErrInvalidParameter
	}

	snapshot, err := uc.Loader.LoadRoundForMarginalEstimate(ctx, roundID, campaignID)
	if err != nil {
		return entities.MarginalEstimate{}, err
	}
	estimate, err := engine.EstimateMarginal(snapshot, campaignID, donorID, amount)
	if err != nil {
		uc.logComputeFailure("marginal_estimate_failed", roundID, err)
		return entities.MarginalEstimate{}, err
	}
	return estimate, nil
}

func (uc UseCase) logComputeFailure(event string, roundID string, err error) {
	if uc.Logger == nil {
		return
	}
	level := slog.LevelWarn
	if errors.Is(err, domainerrors.ErrSnapshotIntegrity) {
		// Integrity violations mean the loader handed over corrupt data;
		// they need investigation, not retry.
		level = slog.LevelError
	}
	uc.Logger.Log(context.Background(), level, "matching computation failed",
		"event", event,
		"module", "funding-core/matching-engine",
		"layer", "application",
		"round_id", roundID,
		"error", err.Error(),
	)
}
