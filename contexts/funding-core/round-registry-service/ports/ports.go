package ports

import (
	"context"
	"time"

	"quadfund/contexts/funding-core/round-registry-service/domain/entities"
	contractsv1 "quadfund/contracts/gen/events/v1"
	"quadfund/internal/shared/outbox"
)

type Repository interface {
	CreateRound(ctx context.Context, round entities.Round) error
	UpdateRound(ctx context.Context, round entities.Round) error
	GetRound(ctx context.Context, roundID string) (entities.Round, error)
	ListRounds(ctx context.Context) ([]entities.Round, error)

	CreateRoundCampaign(ctx context.Context, campaign entities.RoundCampaign) error
	UpdateRoundCampaign(ctx context.Context, campaign entities.RoundCampaign) error
	GetRoundCampaign(ctx context.Context, roundID string, campaignID string) (entities.RoundCampaign, error)
	ListRoundCampaigns(ctx context.Context, roundID string) ([]entities.RoundCampaign, error)

	CreateContribution(ctx context.Context, contribution entities.Contribution) error
	GetContributionByPaymentRef(ctx context.Context, paymentRef string) (entities.Contribution, error)
	ConfirmContribution(ctx context.Context, contributionID string, confirmedAt time.Time) (entities.Contribution, error)
	ListContributionsByRound(ctx context.Context, roundID string) ([]entities.Contribution, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope is the canonical event shape exchanged over the bus.
type EventEnvelope = contractsv1.Envelope

type OutboxMessage = outbox.Message

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}
