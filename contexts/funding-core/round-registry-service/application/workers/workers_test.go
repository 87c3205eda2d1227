package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"quadfund/contexts/funding-core/matching-engine/domain/money"
	"quadfund/contexts/funding-core/round-registry-service/adapters/memory"
	"quadfund/contexts/funding-core/round-registry-service/application"
	"quadfund/contexts/funding-core/round-registry-service/domain/entities"
	"quadfund/contexts/funding-core/round-registry-service/ports"
)

type directSubscriber struct {
	handler func(context.Context, ports.EventEnvelope) error
}

func (s *directSubscriber) Subscribe(
	_ context.Context,
	_ string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	s.handler = handler
	return nil
}

type recordingPublisher struct {
	published []ports.EventEnvelope
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event ports.EventEnvelope) error {
	p.published = append(p.published, event)
	return nil
}

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

type seqIDGen struct {
	next *int
}

func (g seqIDGen) NewID(_ context.Context) (string, error) {
	*g.next++
	return fmt.Sprintf("id-%04d", *g.next), nil
}

func newWorkerFixture(t *testing.T) (*memory.Store, application.Service, entities.Contribution) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	next := 0
	svc := application.Service{
		Repo:        store,
		Idempotency: store,
		Outbox:      store,
		Clock:       fixedClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		IDGen:       seqIDGen{next: &next},
	}

	pool, err := money.Parse("1000.00")
	if err != nil {
		t.Fatalf("parse pool: %v", err)
	}
	round, _, err := svc.CreateRound(ctx, "key-round", application.CreateRoundInput{
		Title:        "Spring Round",
		SponsorID:    "sponsor-1",
		MatchingPool: pool,
	})
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	if _, err := svc.OpenRound(ctx, round.RoundID); err != nil {
		t.Fatalf("open round: %v", err)
	}
	if _, err := svc.ApplyCampaign(ctx, application.ApplyCampaignInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-a",
		Title:      "Clean Water",
		OwnerID:    "owner-1",
	}); err != nil {
		t.Fatalf("apply campaign: %v", err)
	}
	if _, err := svc.ReviewCampaign(ctx, application.ReviewCampaignInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-a",
		Decision:   entities.ReviewStatusApproved,
		ReviewerID: "admin-1",
	}); err != nil {
		t.Fatalf("approve campaign: %v", err)
	}

	amount, err := money.Parse("25.00")
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	contribution, _, err := svc.RecordContribution(ctx, "key-c1", application.RecordContributionInput{
		RoundID:    round.RoundID,
		CampaignID: "campaign-a",
		DonorID:    "donor-1",
		Amount:     amount,
		PaymentRef: "pay-1",
	})
	if err != nil {
		t.Fatalf("record contribution: %v", err)
	}
	return store, svc, contribution
}

func TestPaymentConfirmedConsumerConfirmsOnce(t *testing.T) {
	store, svc, contribution := newWorkerFixture(t)
	ctx := context.Background()

	subscriber := &directSubscriber{}
	consumer := PaymentConfirmedConsumer{
		Subscriber: subscriber,
		Registry:   svc,
		Dedup:      store,
		Clock:      fixedClock{at: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer: %v", err)
	}
	if subscriber.handler == nil {
		t.Fatalf("consumer did not register a handler")
	}

	payload, err := json.Marshal(map[string]string{"payment_ref": "pay-1"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	event := ports.EventEnvelope{
		EventID:    "event-1",
		EventType:  "payment.confirmed",
		OccurredAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Data:       payload,
	}
	if err := subscriber.handler(ctx, event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	confirmed, err := store.GetContributionByPaymentRef(ctx, "pay-1")
	if err != nil {
		t.Fatalf("get contribution: %v", err)
	}
	if confirmed.ContributionID != contribution.ContributionID {
		t.Fatalf("confirmed id = %q, want %q", confirmed.ContributionID, contribution.ContributionID)
	}
	if confirmed.Status != entities.ContributionStatusConfirmed {
		t.Fatalf("status = %q, want confirmed", confirmed.Status)
	}

	// A redelivered event id is a no-op through dedup.
	if err := subscriber.handler(ctx, event); err != nil {
		t.Fatalf("handle redelivered event: %v", err)
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
}

func TestPaymentConfirmedConsumerRejectsMissingPaymentRef(t *testing.T) {
	store, svc, _ := newWorkerFixture(t)
	ctx := context.Background()

	subscriber := &directSubscriber{}
	consumer := PaymentConfirmedConsumer{
		Subscriber: subscriber,
		Registry:   svc,
		Dedup:      store,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer: %v", err)
	}

	event := ports.EventEnvelope{
		EventID:   "event-2",
		EventType: "payment.confirmed",
		Data:      json.RawMessage(`{}`),
	}
	if err := subscriber.handler(ctx, event); err == nil {
		t.Fatalf("expected error for payload without payment_ref")
	}
}

func TestOutboxRelayPublishesPendingRows(t *testing.T) {
	store, svc, _ := newWorkerFixture(t)
	ctx := context.Background()

	if _, err := svc.ApplyPaymentConfirmed(ctx, "pay-1", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("confirm contribution: %v", err)
	}

	publisher := &recordingPublisher{}
	relay := OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     fixedClock{at: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
	}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run: %v", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published events = %d, want 1", len(publisher.published))
	}
	if publisher.published[0].EventType != "contribution.confirmed" {
		t.Fatalf("published event type = %q, want contribution.confirmed", publisher.published[0].EventType)
	}

	// Published rows are marked and not re-delivered on the next cycle.
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("second relay run: %v", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published events after second run = %d, want 1", len(publisher.published))
	}
}
