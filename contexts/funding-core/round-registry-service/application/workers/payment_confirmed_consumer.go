package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "quadfund/contexts/funding-core/round-registry-service/application"
	"quadfund/contexts/funding-core/round-registry-service/ports"
)

const (
	paymentConfirmedTopic       = "payment.confirmed"
	defaultPaymentConsumerGroup = "round-registry-payment-confirmed-cg"
)

// PaymentConfirmedConsumer flips pending contributions to confirmed when
// the payment processor reports settlement.
type PaymentConfirmedConsumer struct {
	Subscriber    ports.EventSubscriber
	Registry      application.Service
	Dedup         ports.EventDedupStore
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c PaymentConfirmedConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("payment.confirmed consumer disabled by feature flag",
			"event", "registry_payment_confirmed_consumer_disabled",
			"module", "funding-core/round-registry-service",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultPaymentConsumerGroup
	}
	return c.Subscriber.Subscribe(ctx, paymentConfirmedTopic, group, c.handlePaymentConfirmed)
}

func (c PaymentConfirmedConsumer) handlePaymentConfirmed(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashEventPayload(event.Data), now.Add(c.dedupTTL()))
	if err != nil {
		logger.Error("payment.confirmed dedupe failed",
			"event", "registry_payment_confirmed_dedupe_failed",
			"module", "funding-core/round-registry-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if alreadyProcessed {
		logger.Debug("payment.confirmed already processed",
			"event", "registry_payment_confirmed_replayed",
			"module", "funding-core/round-registry-service",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		PaymentRef string `json:"payment_ref"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode payment.confirmed payload: %w", err)
	}
	if strings.TrimSpace(payload.PaymentRef) == "" {
		return fmt.Errorf("payment.confirmed payload missing payment_ref")
	}

	occurredAt := event.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = now
	}
	confirmed, err := c.Registry.ApplyPaymentConfirmed(ctx, payload.PaymentRef, occurredAt)
	if err != nil {
		logger.Error("payment.confirmed apply failed",
			"event", "registry_payment_confirmed_apply_failed",
			"module", "funding-core/round-registry-service",
			"layer", "worker",
			"event_id", event.EventID,
			"payment_ref", payload.PaymentRef,
			"error", err.Error(),
		)
		return err
	}

	logger.Info("payment.confirmed applied",
		"event", "registry_payment_confirmed_applied",
		"module", "funding-core/round-registry-service",
		"layer", "worker",
		"event_id", event.EventID,
		"contribution_id", confirmed.ContributionID,
		"round_id", confirmed.RoundID,
		"campaign_id", confirmed.CampaignID,
	)
	return nil
}

func (c PaymentConfirmedConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}

func hashEventPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
