package engine

import (
	"math"
	"sort"

	"quadfund/contexts/funding-core/matching-engine/domain/money"
)

// ScoreCampaign computes the quadratic-funding score of one campaign from
// its per-donor totals:
//
//	score = (Σᵢ sqrt(aᵢ))²
//
// The square root suppresses the marginal value of concentrating capital in
// one donor; the outer square re-expresses the result at amount-like
// magnitude so campaigns stay comparable. A campaign with no donors scores
// zero; a single donor contributing a scores a.
//
// Scores are unitless float64 weights, never Money. Donor terms are summed
// in ascending donor order so repeated computation over an unchanged
// snapshot is bit-identical.
func ScoreCampaign(donorTotals map[string]money.Money) float64 {
	if len(donorTotals) == 0 {
		return 0
	}
	if len(donorTotals) == 1 {
		// sqrt(a) squared is off by an ulp for most amounts; the identity
		// case returns the amount itself so the invariant holds exactly.
		for _, total := range donorTotals {
			return total.Float64()
		}
	}

	donors := make([]string, 0, len(donorTotals))
	for donor := range donorTotals {
		donors = append(donors, donor)
	}
	sort.Strings(donors)

	sumRoots := 0.0
	for _, donor := range donors {
		sumRoots += math.Sqrt(donorTotals[donor].Float64())
	}
	return sumRoots * sumRoots
}

// ScoreCampaigns scores every campaign present in the aggregate.
func ScoreCampaigns(agg Aggregate) map[string]float64 {
	scores := make(map[string]float64, len(agg.DonorTotals))
	for campaignID, totals := range agg.DonorTotals {
		scores[campaignID] = ScoreCampaign(totals)
	}
	return scores
}
