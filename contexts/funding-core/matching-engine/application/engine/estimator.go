package engine

import (
	"fmt"

	"quadfund/contexts/funding-core/matching-engine/domain/entities"
	domainerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
	"quadfund/contexts/funding-core/matching-engine/domain/money"
)

// hypotheticalContributionID marks the synthetic record injected by the
// estimator; it never leaves the augmented in-memory snapshot.
const hypotheticalContributionID = "hypothetical"

// EstimateMarginal answers "if this donor gives amount to this campaign
// right now, how much extra matching does that unlock" without committing
// anything.
//
// The hypothetical contribution is merged with the donor's existing totals
// through the normal aggregation path, so an acting donor is never double
// counted as a second unique contributor. The committed distribution is
// untouched; both reports are computed fresh from the snapshot.
//
// In the continuous model the delta is never negative for a non-negative
// amount. Largest-remainder rounding can in principle move one minor unit
// across campaigns on a remainder tie; that boundary case is accepted
// rather than masked.
func EstimateMarginal(
	snapshot entities.RoundSnapshot,
	campaignID string,
	donorID string,
	amount money.Money,
) (entities.MarginalEstimate, error) {
	if amount.IsNegative() {
		return entities.MarginalEstimate{}, fmt.Errorf(
			"hypothetical amount %s: %w", amount, domainerrors.ErrInvalidAmount,
		)
	}
	if !snapshot.HasCampaign(campaignID) {
		return entities.MarginalEstimate{}, domainerrors.ErrCampaignNotFound
	}

	baseline, err := ComputeDistribution(snapshot)
	if err != nil {
		return entities.MarginalEstimate{}, err
	}

	augmented := snapshot
	if amount.IsPositive() {
		augmented.Contributions = append(
			append([]entities.ContributionRecord(nil), snapshot.Contributions...),
			entities.ContributionRecord{
				ContributionID: hypotheticalContributionID,
				CampaignID:     campaignID,
				DonorID:        donorID,
				Amount:         amount,
				Status:         entities.ContributionStatusConfirmed,
			},
		)
	}
	projected, err := ComputeDistribution(augmented)
	if err != nil {
		return entities.MarginalEstimate{}, err
	}

	baselineLine, _ := baseline.Line(campaignID)
	projectedLine, _ := projected.Line(campaignID)
	return entities.MarginalEstimate{
		CampaignID:     campaignID,
		EstimatedMatch: projectedLine.MatchingAmount,
		MarginalMatch:  projectedLine.MatchingAmount.Sub(baselineLine.MatchingAmount),
	}, nil
}
