package engine

import (
	"fmt"
	"strings"

	"quadfund/contexts/funding-core/matching-engine/domain/entities"
	domainerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
	"quadfund/contexts/funding-core/matching-engine/domain/money"
)

// Aggregate holds the per-campaign per-donor totals derived from a snapshot.
// Donor keys are normalized; the invariant is that the sum of donor totals
// for a campaign equals the sum of its raw contribution amounts.
type Aggregate struct {
	DonorTotals        map[string]map[string]money.Money
	ContributionCounts map[string]int
}

// NormalizeDonorID canonicalizes a donor identity (typically a wallet
// address). Case and surrounding whitespace must not split one donor into
// two "unique" contributors, which would inflate a campaign's score.
func NormalizeDonorID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// AggregateContributions builds donor totals for every campaign in the
// snapshot. It is a pure function of its input.
//
// The loader contract already restricts records to confirmed contributions
// of approved campaigns; any violation observed here is fatal.
func AggregateContributions(snapshot entities.RoundSnapshot) (Aggregate, error) {
	agg := Aggregate{
		DonorTotals:        make(map[string]map[string]money.Money, len(snapshot.Campaigns)),
		ContributionCounts: make(map[string]int, len(snapshot.Campaigns)),
	}
	for _, campaign := range snapshot.Campaigns {
		agg.DonorTotals[campaign.CampaignID] = make(map[string]money.Money)
	}

	for _, record := range snapshot.Contributions {
		if record.Status != entities.ContributionStatusConfirmed {
			return Aggregate{}, fmt.Errorf(
				"contribution %s has status %q: %w",
				record.ContributionID, record.Status, domainerrors.ErrSnapshotIntegrity,
			)
		}
		if !record.Amount.IsPositive() {
			return Aggregate{}, fmt.Errorf(
				"contribution %s has non-positive amount %s: %w",
				record.ContributionID, record.Amount, domainerrors.ErrSnapshotIntegrity,
			)
		}
		donor := NormalizeDonorID(record.DonorID)
		if donor == "" {
			return Aggregate{}, fmt.Errorf(
				"contribution %s has a blank donor id: %w",
				record.ContributionID, domainerrors.ErrSnapshotIntegrity,
			)
		}
		totals, ok := agg.DonorTotals[record.CampaignID]
		if !ok {
			return Aggregate{}, fmt.Errorf(
				"contribution %s references campaign %s outside the approved set: %w",
				record.ContributionID, record.CampaignID, domainerrors.ErrSnapshotIntegrity,
			)
		}
		totals[donor] = totals[donor].Add(record.Amount)
		agg.ContributionCounts[record.CampaignID]++
	}
	return agg, nil
}
