package engine

import (
	"errors"
	"testing"

	"quadfund/contexts/funding-core/matching-engine/domain/entities"
	domainerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
)

func TestAggregateNormalizesDonorIdentity(t *testing.T) {
	// The same wallet with different casing and stray whitespace must fold
	// into one donor, otherwise the campaign score gets inflated.
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-1",
		MatchingPool: mustMoney(t, "100.00"),
		Campaigns:    []entities.CampaignRef{{CampaignID: "campaign-a"}},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-a", "0xAbCd", mustMoney(t, "10.00")),
			confirmed("c2", "campaign-a", " 0xabcd ", mustMoney(t, "5.00")),
			confirmed("c3", "campaign-a", "0XABCD", mustMoney(t, "5.00")),
		},
	}

	agg, err := AggregateContributions(snapshot)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	totals := agg.DonorTotals["campaign-a"]
	if len(totals) != 1 {
		t.Fatalf("expected one unique donor, got %d", len(totals))
	}
	if got := totals["0xabcd"].String(); got != "20.00" {
		t.Fatalf("expected merged total 20.00, got %s", got)
	}
	if agg.ContributionCounts["campaign-a"] != 3 {
		t.Fatalf("expected 3 raw contributions, got %d", agg.ContributionCounts["campaign-a"])
	}
}

func TestAggregateTotalsMatchRawSum(t *testing.T) {
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-2",
		MatchingPool: mustMoney(t, "100.00"),
		Campaigns:    []entities.CampaignRef{{CampaignID: "campaign-a"}},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-a", "donor-1", mustMoney(t, "1.11")),
			confirmed("c2", "campaign-a", "donor-2", mustMoney(t, "2.22")),
			confirmed("c3", "campaign-a", "donor-1", mustMoney(t, "3.33")),
		},
	}

	agg, err := AggregateContributions(snapshot)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	sum := mustMoney(t, "0")
	for _, total := range agg.DonorTotals["campaign-a"] {
		sum = sum.Add(total)
	}
	if sum.String() != "6.66" {
		t.Fatalf("donor totals must conserve the raw sum, got %s", sum)
	}
}

func TestAggregateRejectsNonConfirmedRecord(t *testing.T) {
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-3",
		MatchingPool: mustMoney(t, "100.00"),
		Campaigns:    []entities.CampaignRef{{CampaignID: "campaign-a"}},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-a", "donor-1", mustMoney(t, "10.00")),
			{
				ContributionID: "c2",
				CampaignID:     "campaign-a",
				DonorID:        "donor-2",
				Amount:         mustMoney(t, "10.00"),
				Status:         "pending",
			},
		},
	}

	_, err := AggregateContributions(snapshot)
	if !errors.Is(err, domainerrors.ErrSnapshotIntegrity) {
		t.Fatalf("expected ErrSnapshotIntegrity for pending record, got %v", err)
	}
}

func TestAggregateRejectsNonPositiveAmount(t *testing.T) {
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-4",
		MatchingPool: mustMoney(t, "100.00"),
		Campaigns:    []entities.CampaignRef{{CampaignID: "campaign-a"}},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-a", "donor-1", mustMoney(t, "0.00")),
		},
	}
	_, err := AggregateContributions(snapshot)
	if !errors.Is(err, domainerrors.ErrSnapshotIntegrity) {
		t.Fatalf("expected ErrSnapshotIntegrity for zero amount, got %v", err)
	}
}

func TestAggregateRejectsUnknownCampaign(t *testing.T) {
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-5",
		MatchingPool: mustMoney(t, "100.00"),
		Campaigns:    []entities.CampaignRef{{CampaignID: "campaign-a"}},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-rejected", "donor-1", mustMoney(t, "10.00")),
		},
	}
	_, err := AggregateContributions(snapshot)
	if !errors.Is(err, domainerrors.ErrSnapshotIntegrity) {
		t.Fatalf("expected ErrSnapshotIntegrity for unapproved campaign, got %v", err)
	}
}
