package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quadfund/contexts/funding-core/matching-engine/domain/money"
	"quadfund/contexts/funding-core/round-registry-service/adapters/memory"
	"quadfund/contexts/funding-core/round-registry-service/domain/entities"
	domainerrors "quadfund/contexts/funding-core/round-registry-service/domain/errors"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

type seqIDGen struct {
	prefix string
	next   *int
}

func (g seqIDGen) NewID(_ context.Context) (string, error) {
	*g.next++
	return fmt.Sprintf("%s-%04d", g.prefix, *g.next), nil
}

func newTestService(store *memory.Store) Service {
	next := 0
	return Service{
		Repo:        store,
		Idempotency: store,
		Outbox:      store,
		Clock:       fixedClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		IDGen:       seqIDGen{prefix: "id", next: &next},
	}
}

func mustAmount(t *testing.T, raw string) money.Money {
	t.Helper()
	amount, err := money.Parse(raw)
	if err != nil {
		t.Fatalf("parse amount %q: %v", raw, err)
	}
	return amount
}

func createOpenRound(t *testing.T, svc Service) entities.Round {
	t.Helper()
	ctx := context.Background()
	round, _, err := svc.CreateRound(ctx, "key-create", CreateRoundInput{
		Title:        "Spring Round",
		SponsorID:    "sponsor-1",
		MatchingPool: mustAmount(t, "10000.00"),
	})
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	opened, err := svc.OpenRound(ctx, round.RoundID)
	if err != nil {
		t.Fatalf("open round: %v", err)
	}
	return opened
}

func approveCampaign(t *testing.T, svc Service, roundID string, campaignID string) entities.RoundCampaign {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.ApplyCampaign(ctx, ApplyCampaignInput{
		RoundID:    roundID,
		CampaignID: campaignID,
		Title:      "Campaign " + campaignID,
		OwnerID:    "owner-1",
	}); err != nil {
		t.Fatalf("apply campaign: %v", err)
	}
	campaign, err := svc.ReviewCampaign(ctx, ReviewCampaignInput{
		RoundID:    roundID,
		CampaignID: campaignID,
		Decision:   entities.ReviewStatusApproved,
		ReviewerID: "admin-1",
	})
	if err != nil {
		t.Fatalf("approve campaign: %v", err)
	}
	return campaign
}

func TestCreateRoundReplaysIdempotentRequest(t *testing.T) {
	svc := newTestService(memory.NewStore())
	ctx := context.Background()
	input := CreateRoundInput{
		Title:        "Spring Round",
		SponsorID:    "sponsor-1",
		MatchingPool: mustAmount(t, "5000.00"),
	}

	first, replayed, err := svc.CreateRound(ctx, "key-1", input)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if replayed {
		t.Fatalf("first create reported replayed")
	}
	if first.Status != entities.RoundStatusDraft {
		t.Fatalf("new round status = %q, want draft", first.Status)
	}

	second, replayed, err := svc.CreateRound(ctx, "key-1", input)
	if err != nil {
		t.Fatalf("replay create: %v", err)
	}
	if !replayed {
		t.Fatalf("replay not detected")
	}
	if second.RoundID != first.RoundID {
		t.Fatalf("replay round id = %q, want %q", second.RoundID, first.RoundID)
	}

	input.Title = "Different Title"
	if _, _, err := svc.CreateRound(ctx, "key-1", input); !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("mismatched replay error = %v, want ErrIdempotencyKeyConflict", err)
	}
}

func TestCreateRoundRejectsMissingKeyAndInvalidInput(t *testing.T) {
	svc := newTestService(memory.NewStore())
	ctx := context.Background()

	if _, _, err := svc.CreateRound(ctx, "  ", CreateRoundInput{
		Title:        "Round",
		SponsorID:    "sponsor-1",
		MatchingPool: mustAmount(t, "1.00"),
	}); !errors.Is(err, domainerrors.ErrIdempotencyKeyRequired) {
		t.Fatalf("blank key error = %v, want ErrIdempotencyKeyRequired", err)
	}

	if _, _, err := svc.CreateRound(ctx, "key-1", CreateRoundInput{
		Title:        "",
		SponsorID:    "sponsor-1",
		MatchingPool: mustAmount(t, "1.00"),
	}); !errors.Is(err, domainerrors.ErrInvalidRoundInput) {
		t.Fatalf("blank title error = %v, want ErrInvalidRoundInput", err)
	}

	// A pool carrying sub-cent precision can never be fully distributed.
	if _, _, err := svc.CreateRound(ctx, "key-2", CreateRoundInput{
		Title:        "Round",
		SponsorID:    "sponsor-1",
		MatchingPool: money.FromDecimal(decimal.RequireFromString("10.005")),
	}); !errors.Is(err, domainerrors.ErrInvalidRoundInput) {
		t.Fatalf("sub-cent pool error = %v, want ErrInvalidRoundInput", err)
	}
}

func TestRoundLifecycleTransitions(t *testing.T) {
	svc := newTestService(memory.NewStore())
	ctx := context.Background()
	round, _, err := svc.CreateRound(ctx, "key-1", CreateRoundInput{
		Title:        "Round",
		SponsorID:    "sponsor-1",
		MatchingPool: mustAmount(t, "100.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.CloseRound(ctx, round.RoundID); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("close draft error = %v, want ErrInvalidStateTransition", err)
	}

	opened, err := svc.OpenRound(ctx, round.RoundID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.Status != entities.RoundStatusOpen || opened.OpenedAt == nil {
		t.Fatalf("opened round = %+v, want open status with OpenedAt", opened)
	}

	closed, err := svc.CloseRound(ctx, round.RoundID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != entities.RoundStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("closed round = %+v, want closed status with ClosedAt", closed)
	}

	if _, err := svc.OpenRound(ctx, round.RoundID); !errors.Is(err, domainerrors.ErrRoundImmutable) {
		t.Fatalf("reopen closed error = %v, want ErrRoundImmutable", err)
	}
}

func TestApplyCampaignDuplicateRejected(t *testing.T) {
	svc := newTestService(memory.NewStore())
	ctx := context.Background()
	round := createOpenRound(t, svc)

	if _, err := svc.ApplyCampaign(ctx, ApplyCampaignInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-a",
		Title:      "Clean Water",
		OwnerID:    "owner-1",
	}); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, err := svc.ApplyCampaign(ctx, ApplyCampaignInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-a",
		Title:      "Clean Water",
		OwnerID:    "owner-1",
	}); !errors.Is(err, domainerrors.ErrCampaignAlreadyApplied) {
		t.Fatalf("duplicate apply error = %v, want ErrCampaignAlreadyApplied", err)
	}
}

func TestReviewCampaignRejectsUnknownDecision(t *testing.T) {
	svc := newTestService(memory.NewStore())
	ctx := context.Background()
	round := createOpenRound(t, svc)

	if _, err := svc.ReviewCampaign(ctx, ReviewCampaignInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-a",
		Decision:   entities.ReviewStatus("maybe"),
		ReviewerID: "admin-1",
	}); !errors.Is(err, domainerrors.ErrInvalidReviewDecision) {
		t.Fatalf("unknown decision error = %v, want ErrInvalidReviewDecision", err)
	}
}

func TestRecordContributionGuards(t *testing.T) {
	svc := newTestService(memory.NewStore())
	ctx := context.Background()
	round := createOpenRound(t, svc)
	approveCampaign(t, svc, round.RoundID, "campaign-a")

	if _, _, err := svc.RecordContribution(ctx, "key-c1", RecordContributionInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-missing",
		DonorID:    "donor-1",
		Amount:     mustAmount(t, "25.00"),
		PaymentRef: "pay-1",
	}); !errors.Is(err, domainerrors.ErrRoundCampaignNotFound) {
		t.Fatalf("unknown campaign error = %v, want ErrRoundCampaignNotFound", err)
	}

	if _, err := svc.ApplyCampaign(ctx, ApplyCampaignInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-pending",
		Title:      "Pending",
		OwnerID:    "owner-2",
	}); err != nil {
		t.Fatalf("apply pending campaign: %v", err)
	}
	if _, _, err := svc.RecordContribution(ctx, "key-c2", RecordContributionInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-pending",
		DonorID:    "donor-1",
		Amount:     mustAmount(t, "25.00"),
		PaymentRef: "pay-2",
	}); !errors.Is(err, domainerrors.ErrCampaignNotApproved) {
		t.Fatalf("unapproved campaign error = %v, want ErrCampaignNotApproved", err)
	}

	if _, err := svc.CloseRound(ctx, round.RoundID); err != nil {
		t.Fatalf("close round: %v", err)
	}
	if _, _, err := svc.RecordContribution(ctx, "key-c3", RecordContributionInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-a",
		DonorID:    "donor-1",
		Amount:     mustAmount(t, "25.00"),
		PaymentRef: "pay-3",
	}); !errors.Is(err, domainerrors.ErrRoundNotOpen) {
		t.Fatalf("closed round error = %v, want ErrRoundNotOpen", err)
	}
}

func TestRecordContributionNormalizesDonorAndReplays(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store)
	ctx := context.Background()
	round := createOpenRound(t, svc)
	approveCampaign(t, svc, round.RoundID, "campaign-a")

	input := RecordContributionInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-a",
		DonorID:    "  0xAbCd  ",
		Amount:     mustAmount(t, "25.00"),
		PaymentRef: "pay-1",
	}
	first, replayed, err := svc.RecordContribution(ctx, "key-c1", input)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if replayed {
		t.Fatalf("first record reported replayed")
	}
	if first.DonorID != "0xabcd" {
		t.Fatalf("donor id = %q, want normalized 0xabcd", first.DonorID)
	}
	if first.Status != entities.ContributionStatusPending {
		t.Fatalf("status = %q, want pending", first.Status)
	}

	second, replayed, err := svc.RecordContribution(ctx, "key-c1", input)
	if err != nil {
		t.Fatalf("replay record: %v", err)
	}
	if !replayed || second.ContributionID != first.ContributionID {
		t.Fatalf("replay = (%v, %q), want (true, %q)", replayed, second.ContributionID, first.ContributionID)
	}
}

func TestApplyPaymentConfirmedIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store)
	ctx := context.Background()
	round := createOpenRound(t, svc)
	approveCampaign(t, svc, round.RoundID, "campaign-a")

	recorded, _, err := svc.RecordContribution(ctx, "key-c1", RecordContributionInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-a",
		DonorID:    "donor-1",
		Amount:     mustAmount(t, "25.00"),
		PaymentRef: "pay-1",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	confirmedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	confirmed, err := svc.ApplyPaymentConfirmed(ctx, "pay-1", confirmedAt)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.ContributionID != recorded.ContributionID {
		t.Fatalf("confirmed id = %q, want %q", confirmed.ContributionID, recorded.ContributionID)
	}
	if confirmed.Status != entities.ContributionStatusConfirmed || confirmed.ConfirmedAt == nil {
		t.Fatalf("confirmed contribution = %+v, want confirmed status with timestamp", confirmed)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	confirmedEvents := 0
	for _, row := range pending {
		if row.EventType == "contribution.confirmed" {
			confirmedEvents++
		}
	}
	if confirmedEvents != 1 {
		t.Fatalf("contribution.confirmed outbox rows = %d, want 1", confirmedEvents)
	}

	again, err := svc.ApplyPaymentConfirmed(ctx, "pay-1", confirmedAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if again.Status != entities.ContributionStatusConfirmed {
		t.Fatalf("second confirm status = %q, want confirmed", again.Status)
	}
	pending, err = store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox after replay: %v", err)
	}
	confirmedEvents = 0
	for _, row := range pending {
		if row.EventType == "contribution.confirmed" {
			confirmedEvents++
		}
	}
	if confirmedEvents != 1 {
		t.Fatalf("contribution.confirmed outbox rows after replay = %d, want 1", confirmedEvents)
	}

	if _, err := svc.ApplyPaymentConfirmed(ctx, "pay-unknown", confirmedAt); !errors.Is(err, domainerrors.ErrContributionNotFound) {
		t.Fatalf("unknown payment ref error = %v, want ErrContributionNotFound", err)
	}
}
