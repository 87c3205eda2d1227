package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"quadfund/contexts/funding-core/matching-engine/domain/entities"
	domainerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
	"quadfund/contexts/funding-core/matching-engine/domain/money"
)

func mustMoney(t *testing.T, raw string) money.Money {
	t.Helper()
	m, err := money.Parse(raw)
	if err != nil {
		t.Fatalf("parse money %q: %v", raw, err)
	}
	return m
}

func confirmed(id string, campaignID string, donorID string, amount money.Money) entities.ContributionRecord {
	return entities.ContributionRecord{
		ContributionID: id,
		CampaignID:     campaignID,
		DonorID:        donorID,
		Amount:         amount,
		Status:         entities.ContributionStatusConfirmed,
	}
}

func TestDistributeBroadBeatsConcentratedFourToOne(t *testing.T) {
	// 4 donors x $25 scores (4*5)^2 = 400; one donor x $100 scores 100.
	// Equal totals, but matching favors the broad campaign 4:1.
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-1",
		MatchingPool: mustMoney(t, "500.00"),
		Campaigns: []entities.CampaignRef{
			{CampaignID: "campaign-a", Title: "Broad"},
			{CampaignID: "campaign-b", Title: "Concentrated"},
		},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-a", "donor-1", mustMoney(t, "25.00")),
			confirmed("c2", "campaign-a", "donor-2", mustMoney(t, "25.00")),
			confirmed("c3", "campaign-a", "donor-3", mustMoney(t, "25.00")),
			confirmed("c4", "campaign-a", "donor-4", mustMoney(t, "25.00")),
			confirmed("c5", "campaign-b", "donor-5", mustMoney(t, "100.00")),
		},
	}

	report, err := ComputeDistribution(snapshot)
	if err != nil {
		t.Fatalf("compute distribution failed: %v", err)
	}

	broad, ok := report.Line("campaign-a")
	if !ok {
		t.Fatalf("missing line for campaign-a")
	}
	concentrated, ok := report.Line("campaign-b")
	if !ok {
		t.Fatalf("missing line for campaign-b")
	}
	if got := broad.MatchingAmount.String(); got != "400.00" {
		t.Fatalf("expected broad campaign to receive 400.00, got %s", got)
	}
	if got := concentrated.MatchingAmount.String(); got != "100.00" {
		t.Fatalf("expected concentrated campaign to receive 100.00, got %s", got)
	}
	if got := report.TotalAllocated.String(); got != "500.00" {
		t.Fatalf("expected full pool allocated, got %s", got)
	}
	if broad.UniqueContributorCount != 4 || concentrated.UniqueContributorCount != 1 {
		t.Fatalf("unexpected contributor counts: %d / %d",
			broad.UniqueContributorCount, concentrated.UniqueContributorCount)
	}
}

func TestDistributeConservesPoolAcrossRepeatingFractions(t *testing.T) {
	// Three equal campaigns splitting 100.00 force a leftover cent; the
	// largest-remainder pass must still land exactly on the pool.
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-2",
		MatchingPool: mustMoney(t, "100.00"),
		Campaigns: []entities.CampaignRef{
			{CampaignID: "campaign-a"},
			{CampaignID: "campaign-b"},
			{CampaignID: "campaign-c"},
		},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-a", "donor-1", mustMoney(t, "9.00")),
			confirmed("c2", "campaign-b", "donor-2", mustMoney(t, "9.00")),
			confirmed("c3", "campaign-c", "donor-3", mustMoney(t, "9.00")),
		},
	}

	report, err := ComputeDistribution(snapshot)
	if err != nil {
		t.Fatalf("compute distribution failed: %v", err)
	}
	if got := report.TotalAllocated.String(); got != "100.00" {
		t.Fatalf("expected exact conservation, got total %s", got)
	}

	// Remainders tie, so the extra cent goes to the lowest campaign id.
	lineA, _ := report.Line("campaign-a")
	lineB, _ := report.Line("campaign-b")
	lineC, _ := report.Line("campaign-c")
	if lineA.MatchingAmount.String() != "33.34" {
		t.Fatalf("expected campaign-a to win the tie-broken cent, got %s", lineA.MatchingAmount)
	}
	if lineB.MatchingAmount.String() != "33.33" || lineC.MatchingAmount.String() != "33.33" {
		t.Fatalf("unexpected split: %s / %s", lineB.MatchingAmount, lineC.MatchingAmount)
	}

	pool := snapshot.MatchingPool
	for _, line := range report.Lines {
		if line.MatchingAmount.IsNegative() || line.MatchingAmount.Cmp(pool) > 0 {
			t.Fatalf("line %s outside [0, pool]: %s", line.CampaignID, line.MatchingAmount)
		}
	}
}

func TestDistributeZeroActivityIsTerminalNotError(t *testing.T) {
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-3",
		MatchingPool: mustMoney(t, "1000.00"),
		Campaigns: []entities.CampaignRef{
			{CampaignID: "campaign-a"},
			{CampaignID: "campaign-b"},
		},
	}

	report, err := ComputeDistribution(snapshot)
	if err != nil {
		t.Fatalf("expected zero-activity round to succeed, got %v", err)
	}
	if !report.TotalAllocated.IsZero() {
		t.Fatalf("expected zero total, got %s", report.TotalAllocated)
	}
	if len(report.Lines) != 2 {
		t.Fatalf("zero-score campaigns must stay in the report, got %d lines", len(report.Lines))
	}
	for _, line := range report.Lines {
		if !line.MatchingAmount.IsZero() {
			t.Fatalf("expected zero matching for %s, got %s", line.CampaignID, line.MatchingAmount)
		}
	}
}

func TestDistributeKeepsZeroScoreCampaignInReport(t *testing.T) {
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-4",
		MatchingPool: mustMoney(t, "50.00"),
		Campaigns: []entities.CampaignRef{
			{CampaignID: "campaign-a"},
			{CampaignID: "campaign-quiet"},
		},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-a", "donor-1", mustMoney(t, "25.00")),
		},
	}

	report, err := ComputeDistribution(snapshot)
	if err != nil {
		t.Fatalf("compute distribution failed: %v", err)
	}
	quiet, ok := report.Line("campaign-quiet")
	if !ok {
		t.Fatalf("zero-score campaign omitted from report")
	}
	if !quiet.MatchingAmount.IsZero() {
		t.Fatalf("expected zero match, got %s", quiet.MatchingAmount)
	}
	funded, _ := report.Line("campaign-a")
	if funded.MatchingAmount.String() != "50.00" {
		t.Fatalf("expected sole active campaign to take the pool, got %s", funded.MatchingAmount)
	}
}

func TestDistributeLinesOrderedByAmountThenID(t *testing.T) {
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-5",
		MatchingPool: mustMoney(t, "300.00"),
		Campaigns: []entities.CampaignRef{
			{CampaignID: "campaign-c"},
			{CampaignID: "campaign-a"},
			{CampaignID: "campaign-b"},
		},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-c", "donor-1", mustMoney(t, "100.00")),
			confirmed("c2", "campaign-a", "donor-2", mustMoney(t, "25.00")),
			confirmed("c3", "campaign-b", "donor-3", mustMoney(t, "25.00")),
		},
	}

	report, err := ComputeDistribution(snapshot)
	if err != nil {
		t.Fatalf("compute distribution failed: %v", err)
	}
	got := make([]string, 0, len(report.Lines))
	for _, line := range report.Lines {
		got = append(got, line.CampaignID)
	}
	want := []string{"campaign-c", "campaign-a", "campaign-b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected line order: got %v want %v", got, want)
	}
}

func TestDistributeRejectsNegativePool(t *testing.T) {
	_, err := Distribute("round-6", mustMoney(t, "-1.00"),
		[]entities.CampaignRef{{CampaignID: "campaign-a"}},
		map[string]float64{"campaign-a": 1},
		Aggregate{},
	)
	if !errors.Is(err, domainerrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative pool, got %v", err)
	}
}

func TestDistributeRejectsPoolBelowMinorUnit(t *testing.T) {
	// A half cent over two equal campaigns has no conserving allocation:
	// the sub-cent fraction must be refused up front, never truncated away.
	pool := money.FromDecimal(decimal.RequireFromString("10.005"))
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-9",
		MatchingPool: pool,
		Campaigns: []entities.CampaignRef{
			{CampaignID: "campaign-a"},
			{CampaignID: "campaign-b"},
		},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-a", "donor-1", mustMoney(t, "25.00")),
			confirmed("c2", "campaign-b", "donor-2", mustMoney(t, "25.00")),
		},
	}

	_, err := ComputeDistribution(snapshot)
	if !errors.Is(err, domainerrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for sub-cent pool, got %v", err)
	}
}

func TestDistributeRejectsNegativeScore(t *testing.T) {
	_, err := Distribute("round-7", mustMoney(t, "10.00"),
		[]entities.CampaignRef{{CampaignID: "campaign-a"}},
		map[string]float64{"campaign-a": -0.5},
		Aggregate{},
	)
	if !errors.Is(err, domainerrors.ErrSnapshotIntegrity) {
		t.Fatalf("expected ErrSnapshotIntegrity for negative score, got %v", err)
	}
}

func TestComputeDistributionIdempotentOnUnchangedSnapshot(t *testing.T) {
	snapshot := entities.RoundSnapshot{
		RoundID:      "round-8",
		MatchingPool: mustMoney(t, "777.77"),
		Campaigns: []entities.CampaignRef{
			{CampaignID: "campaign-a", Title: "Alpha"},
			{CampaignID: "campaign-b", Title: "Beta"},
			{CampaignID: "campaign-c", Title: "Gamma"},
		},
		Contributions: []entities.ContributionRecord{
			confirmed("c1", "campaign-a", "donor-1", mustMoney(t, "12.34")),
			confirmed("c2", "campaign-a", "donor-2", mustMoney(t, "56.78")),
			confirmed("c3", "campaign-b", "donor-3", mustMoney(t, "90.12")),
			confirmed("c4", "campaign-c", "donor-4", mustMoney(t, "3.21")),
			confirmed("c5", "campaign-c", "donor-5", mustMoney(t, "0.99")),
		},
	}

	first, err := ComputeDistribution(snapshot)
	if err != nil {
		t.Fatalf("first computation failed: %v", err)
	}
	second, err := ComputeDistribution(snapshot)
	if err != nil {
		t.Fatalf("second computation failed: %v", err)
	}
	if len(first.Lines) != len(second.Lines) {
		t.Fatalf("line counts differ: %d vs %d", len(first.Lines), len(second.Lines))
	}
	for i := range first.Lines {
		a, b := first.Lines[i], second.Lines[i]
		if a.CampaignID != b.CampaignID || a.MatchingAmount.String() != b.MatchingAmount.String() {
			t.Fatalf("reports diverge at line %d: %s=%s vs %s=%s",
				i, a.CampaignID, a.MatchingAmount, b.CampaignID, b.MatchingAmount)
		}
	}
	if first.TotalAllocated.String() != second.TotalAllocated.String() {
		t.Fatalf("totals diverge: %s vs %s", first.TotalAllocated, second.TotalAllocated)
	}
	if first.TotalAllocated.String() != "777.77" {
		t.Fatalf("expected exact conservation, got %s", first.TotalAllocated)
	}
}
