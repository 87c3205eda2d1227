package entities

import "quadfund/contexts/funding-core/matching-engine/domain/money"

const ContributionStatusConfirmed = "confirmed"

// CampaignRef identifies an approved campaign inside a round snapshot.
type CampaignRef struct {
	CampaignID string
	Title      string
}

// ContributionRecord is one confirmed payment. The snapshot loader filters
// to confirmed records; the engine still re-checks the status because a
// silently included pending record would corrupt an audited computation.
type ContributionRecord struct {
	ContributionID string
	CampaignID     string
	DonorID        string
	Amount         money.Money
	Status         string
}

// RoundSnapshot is the immutable input handed to every engine entry point.
// It carries only approved campaigns and confirmed contributions.
type RoundSnapshot struct {
	RoundID       string
	MatchingPool  money.Money
	Campaigns     []CampaignRef
	Contributions []ContributionRecord
}

// HasCampaign reports whether the snapshot includes the campaign.
func (s RoundSnapshot) HasCampaign(campaignID string) bool {
	for _, campaign := range s.Campaigns {
		if campaign.CampaignID == campaignID {
			return true
		}
	}
	return false
}

type DistributionLineItem struct {
	CampaignID             string
	Title                  string
	MatchingAmount         money.Money
	UniqueContributorCount int
	ContributionCount      int
}

// DistributionReport is the ordered allocation result for a whole round.
// Lines are sorted by descending matching amount, then ascending campaign id.
type DistributionReport struct {
	RoundID        string
	Lines          []DistributionLineItem
	TotalAllocated money.Money
}

// Line returns the line item for a campaign, if present.
func (r DistributionReport) Line(campaignID string) (DistributionLineItem, bool) {
	for _, line := range r.Lines {
		if line.CampaignID == campaignID {
			return line, true
		}
	}
	return DistributionLineItem{}, false
}

// MarginalEstimate is the live-UI projection for one hypothetical
// contribution: the campaign's projected total matching and the delta the
// contribution alone would unlock.
type MarginalEstimate struct {
	CampaignID     string
	EstimatedMatch money.Money
	MarginalMatch  money.Money
}
