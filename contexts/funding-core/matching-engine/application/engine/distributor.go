package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"quadfund/contexts/funding-core/matching-engine/domain/entities"
	domainerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
	"quadfund/contexts/funding-core/matching-engine/domain/money"
)

// Distribute converts campaign scores and the matching pool into exact
// per-campaign amounts using largest-remainder (Hamilton) apportionment:
// each exact share pool*score/total is floored to the minor unit, then the
// leftover is handed out one minor unit at a time to the campaigns with the
// largest fractional remainder, ties broken by ascending campaign id.
//
// This is the single place amounts are rounded, which is what guarantees
// Σ matchingAmount == matchingPool whenever totalScore > 0.
func Distribute(
	roundID string,
	pool money.Money,
	campaigns []entities.CampaignRef,
	scores map[string]float64,
	agg Aggregate,
) (entities.DistributionReport, error) {
	// A pool off the minor-unit grid cannot be conserved: the sub-cent
	// fraction is unallocatable and would vanish from the leftover count.
	if pool.IsNegative() || !pool.IsMinorUnitAligned() {
		return entities.DistributionReport{}, fmt.Errorf(
			"matching pool %s: %w", pool, domainerrors.ErrInvalidAmount,
		)
	}

	ordered := append([]entities.CampaignRef(nil), campaigns...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CampaignID < ordered[j].CampaignID
	})

	scoreDecimals := make(map[string]decimal.Decimal, len(ordered))
	totalScore := decimal.Zero
	for _, campaign := range ordered {
		score := scores[campaign.CampaignID]
		if score < 0 || math.IsNaN(score) || math.IsInf(score, 0) {
			return entities.DistributionReport{}, fmt.Errorf(
				"campaign %s has score %v: %w",
				campaign.CampaignID, score, domainerrors.ErrSnapshotIntegrity,
			)
		}
		d := decimal.NewFromFloat(score)
		scoreDecimals[campaign.CampaignID] = d
		totalScore = totalScore.Add(d)
	}

	allocations := make(map[string]decimal.Decimal, len(ordered))
	if totalScore.IsPositive() {
		// Exact integer arithmetic: QuoRem truncates each share at the
		// minor unit and returns the exact remainder, so remainder ranking
		// never depends on binary floating point.
		poolDec := pool.Decimal()
		floorSum := decimal.Zero
		remainders := make(map[string]decimal.Decimal, len(ordered))
		for _, campaign := range ordered {
			numerator := poolDec.Mul(scoreDecimals[campaign.CampaignID])
			share, remainder := numerator.QuoRem(totalScore, money.MinorUnitPlaces)
			allocations[campaign.CampaignID] = share
			remainders[campaign.CampaignID] = remainder
			floorSum = floorSum.Add(share)
		}

		leftoverCents := poolDec.Sub(floorSum).Mul(decimal.New(1, money.MinorUnitPlaces)).IntPart()
		if leftoverCents > 0 {
			byRemainder := append([]entities.CampaignRef(nil), ordered...)
			sort.SliceStable(byRemainder, func(i, j int) bool {
				cmp := remainders[byRemainder[i].CampaignID].Cmp(remainders[byRemainder[j].CampaignID])
				if cmp == 0 {
					return byRemainder[i].CampaignID < byRemainder[j].CampaignID
				}
				return cmp > 0
			})
			for i := int64(0); i < leftoverCents && i < int64(len(byRemainder)); i++ {
				id := byRemainder[i].CampaignID
				allocations[id] = allocations[id].Add(money.MinorUnit())
			}
		}
	} else {
		// No qualifying contributions yet: a normal terminal state, every
		// campaign reports zero matching.
		for _, campaign := range ordered {
			allocations[campaign.CampaignID] = decimal.Zero
		}
	}

	lines := make([]entities.DistributionLineItem, 0, len(ordered))
	total := money.Zero()
	for _, campaign := range ordered {
		amount := money.FromDecimal(allocations[campaign.CampaignID])
		lines = append(lines, entities.DistributionLineItem{
			CampaignID:             campaign.CampaignID,
			Title:                  campaign.Title,
			MatchingAmount:         amount,
			UniqueContributorCount: len(agg.DonorTotals[campaign.CampaignID]),
			ContributionCount:      agg.ContributionCounts[campaign.CampaignID],
		})
		total = total.Add(amount)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		cmp := lines[i].MatchingAmount.Cmp(lines[j].MatchingAmount)
		if cmp == 0 {
			return lines[i].CampaignID < lines[j].CampaignID
		}
		return cmp > 0
	})

	return entities.DistributionReport{
		RoundID:        roundID,
		Lines:          lines,
		TotalAllocated: total,
	}, nil
}

// ComputeDistribution runs the full pipeline over one snapshot: aggregate
// donor totals, score each campaign, apportion the pool.
func ComputeDistribution(snapshot entities.RoundSnapshot) (entities.DistributionReport, error) {
	agg, err := AggregateContributions(snapshot)
	if err != nil {
		return entities.DistributionReport{}, err
	}
	return Distribute(snapshot.RoundID, snapshot.MatchingPool, snapshot.Campaigns, ScoreCampaigns(agg), agg)
}
