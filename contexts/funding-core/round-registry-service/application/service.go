package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"quadfund/contexts/funding-core/matching-engine/domain/money"
	"quadfund/contexts/funding-core/round-registry-service/domain/entities"
	domainerrors "quadfund/contexts/funding-core/round-registry-service/domain/errors"
	"quadfund/contexts/funding-core/round-registry-service/ports"
)

// Service owns the round/campaign/contribution lifecycle the matching
// engine computes over. Contribution validity (KYC, fraud) is decided
// upstream; this service only tracks review and confirmation state.
type Service struct {
	Repo           ports.Repository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

type CreateRoundInput struct {
	Title        string
	SponsorID    string
	MatchingPool money.Money
}

func (s Service) CreateRound(ctx context.Context, idempotencyKey string, input CreateRoundInput) (entities.Round, bool, error) {
	if strings.TrimSpace(idempotencyKey) == "" {
		return entities.Round{}, false, domainerrors.ErrIdempotencyKeyRequired
	}

	now := s.now()
	round := entities.Round{
		Title:        strings.TrimSpace(input.Title),
		SponsorID:    strings.TrimSpace(input.SponsorID),
		MatchingPool: input.MatchingPool,
		Status:       entities.RoundStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !round.ValidateBasics() {
		return entities.Round{}, false, domainerrors.ErrInvalidRoundInput
	}

	requestHash := hashPayload(map[string]any{
		"title":         round.Title,
		"sponsor_id":    round.SponsorID,
		"matching_pool": round.MatchingPool.String(),
	})
	record, found, err := s.Idempotency.GetRecord(ctx, strings.TrimSpace(idempotencyKey), now)
	if err != nil {
		return entities.Round{}, false, err
	}
	if found {
		if record.RequestHash != requestHash {
			return entities.Round{}, false, domainerrors.ErrIdempotencyKeyConflict
		}
		var replayed roundReplayPayload
		if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
			return entities.Round{}, false, err
		}
		return replayed.toEntity(round), true, nil
	}

	roundID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Round{}, false, err
	}
	round.RoundID = strings.TrimSpace(roundID)
	if err := s.Repo.CreateRound(ctx, round); err != nil {
		return entities.Round{}, false, err
	}

	serialized, err := json.Marshal(roundReplayPayload{
		RoundID:      round.RoundID,
		Status:       string(round.Status),
		MatchingPool: round.MatchingPool.String(),
	})
	if err != nil {
		return entities.Round{}, false, err
	}
	if err := s.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
		Key:             strings.TrimSpace(idempotencyKey),
		RequestHash:     requestHash,
		ResponsePayload: serialized,
		ExpiresAt:       now.Add(s.idempotencyTTL()),
	}); err != nil {
		return entities.Round{}, false, err
	}

	ResolveLogger(s.Logger).Info("matching round created",
		"event", "round_created",
		"module", "funding-core/round-registry-service",
		"layer", "application",
		"round_id", round.RoundID,
		"sponsor_id", round.SponsorID,
		"matching_pool", round.MatchingPool.String(),
	)
	return round, false, nil
}

// OpenRound moves a draft round into the contribution window.
func (s Service) OpenRound(ctx context.Context, roundID string) (entities.Round, error) {
	return s.transitionRound(ctx, roundID, entities.RoundStatusOpen, "round_opened")
}

// CloseRound freezes the round; the final distribution is computed over
// the state at this instant and the round becomes immutable.
func (s Service) CloseRound(ctx context.Context, roundID string) (entities.Round, error) {
	round, err := s.transitionRound(ctx, roundID, entities.RoundStatusClosed, "round_closed")
	if err != nil {
		return entities.Round{}, err
	}
	if err := s.appendOutbox(ctx, "round.closed", round.RoundID, map[string]any{
		"round_id":      round.RoundID,
		"matching_pool": round.MatchingPool.String(),
	}); err != nil {
		return entities.Round{}, err
	}
	return round, nil
}

func (s Service) transitionRound(ctx context.Context, roundID string, to entities.RoundStatus, logEvent string) (entities.Round, error) {
	round, err := s.Repo.GetRound(ctx, strings.TrimSpace(roundID))
	if err != nil {
		return entities.Round{}, err
	}
	if round.Status == entities.RoundStatusClosed {
		return entities.Round{}, domainerrors.ErrRoundImmutable
	}
	if !round.CanTransition(to) {
		return entities.Round{}, domainerrors.ErrInvalidStateTransition
	}

	now := s.now()
	round.Status = to
	round.UpdatedAt = now
	switch to {
	case entities.RoundStatusOpen:
		round.OpenedAt = &now
	case entities.RoundStatusClosed:
		round.ClosedAt = &now
	}
	if err := s.Repo.UpdateRound(ctx, round); err != nil {
		return entities.Round{}, err
	}

	ResolveLogger(s.Logger).Info("round transitioned",
		"event", logEvent,
		"module", "funding-core/round-registry-service",
		"layer", "application",
		"round_id", round.RoundID,
		"status", string(round.Status),
	)
	return round, nil
}

type ApplyCampaignInput struct {
	RoundID    string
	CampaignID string
	Title      string
	OwnerID    string
}

// ApplyCampaign registers a campaign for review. It enters pending and
// stays out of matching until approved.
func (s Service) ApplyCampaign(ctx context.Context, input ApplyCampaignInput) (entities.RoundCampaign, error) {
	round, err := s.Repo.GetRound(ctx, strings.TrimSpace(input.RoundID))
	if err != nil {
		return entities.RoundCampaign{}, err
	}
	if round.Status == entities.RoundStatusClosed {
		return entities.RoundCampaign{}, domainerrors.ErrRoundImmutable
	}
	if strings.TrimSpace(input.CampaignID) == "" || strings.TrimSpace(input.Title) == "" {
		return entities.RoundCampaign{}, domainerrors.ErrInvalidRoundInput
	}

	now := s.now()
	campaign := entities.RoundCampaign{
		RoundID:    round.RoundID,
		CampaignID: strings.TrimSpace(input.CampaignID),
		Title:      strings.TrimSpace(input.Title),
		OwnerID:    strings.TrimSpace(input.OwnerID),
		Status:     entities.ReviewStatusPending,
		AppliedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.CreateRoundCampaign(ctx, campaign); err != nil {
		return entities.RoundCampaign{}, err
	}

	ResolveLogger(s.Logger).Info("campaign applied to round",
		"event", "round_campaign_applied",
		"module", "funding-core/round-registry-service",
		"layer", "application",
		"round_id", campaign.RoundID,
		"campaign_id", campaign.CampaignID,
	)
	return campaign, nil
}

type ReviewCampaignInput struct {
	RoundID    string
	CampaignID string
	Decision   entities.ReviewStatus
	ReviewerID string
}

// ReviewCampaign records the admin decision. Review entries are never
// deleted, so historical distributions keep their references.
func (s Service) ReviewCampaign(ctx context.Context, input ReviewCampaignInput) (entities.RoundCampaign, error) {
	if !entities.IsSupportedReviewDecision(input.Decision) {
		return entities.RoundCampaign{}, domainerrors.ErrInvalidReviewDecision
	}
	round, err := s.Repo.GetRound(ctx, strings.TrimSpace(input.RoundID))
	if err != nil {
		return entities.RoundCampaign{}, err
	}
	if round.Status == entities.RoundStatusClosed {
		return entities.RoundCampaign{}, domainerrors.ErrRoundImmutable
	}

	campaign, err := s.Repo.GetRoundCampaign(ctx, round.RoundID, strings.TrimSpace(input.CampaignID))
	if err != nil {
		return entities.RoundCampaign{}, err
	}
	now := s.now()
	campaign.Status = input.Decision
	campaign.ReviewedAt = &now
	campaign.ReviewedBy = strings.TrimSpace(input.ReviewerID)
	campaign.UpdatedAt = now
	if err := s.Repo.UpdateRoundCampaign(ctx, campaign); err != nil {
		return entities.RoundCampaign{}, err
	}

	ResolveLogger(s.Logger).Info("round campaign reviewed",
		"event", "round_campaign_reviewed",
		"module", "funding-core/round-registry-service",
		"layer", "application",
		"round_id", campaign.RoundID,
		"campaign_id", campaign.CampaignID,
		"decision", string(campaign.Status),
	)
	return campaign, nil
}

type RecordContributionInput struct {
	RoundID    string
	CampaignID string
	DonorID    string
	Amount     money.Money
	PaymentRef string
}

// RecordContribution registers a pending payment against an approved
// campaign of an open round. Confirmation arrives asynchronously through
// the payment-confirmed consumer.
func (s Service) RecordContribution(ctx context.Context, idempotencyKey string, input RecordContributionInput) (entities.Contribution, bool, error) {
	if strings.TrimSpace(idempotencyKey) == "" {
		return entities.Contribution{}, false, domainerrors.ErrIdempotencyKeyRequired
	}

	now := s.now()
	contribution := entities.Contribution{
		RoundID:    strings.TrimSpace(input.RoundID),
		CampaignID: strings.TrimSpace(input.CampaignID),
		DonorID:    normalizeDonorID(input.DonorID),
		Amount:     input.Amount,
		Status:     entities.ContributionStatusPending,
		PaymentRef: strings.TrimSpace(input.PaymentRef),
		CreatedAt:  now,
	}
	if !contribution.ValidateBasics() || contribution.PaymentRef == "" {
		return entities.Contribution{}, false, domainerrors.ErrInvalidContribution
	}

	requestHash := hashPayload(map[string]any{
		"round_id":    contribution.RoundID,
		"campaign_id": contribution.CampaignID,
		"donor_id":    contribution.DonorID,
		"amount":      contribution.Amount.String(),
		"payment_ref": contribution.PaymentRef,
	})
	record, found, err := s.Idempotency.GetRecord(ctx, strings.TrimSpace(idempotencyKey), now)
	if err != nil {
		return entities.Contribution{}, false, err
	}
	if found {
		if record.RequestHash != requestHash {
			return entities.Contribution{}, false, domainerrors.ErrIdempotencyKeyConflict
		}
		var replayed contributionReplayPayload
		if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
			return entities.Contribution{}, false, err
		}
		contribution.ContributionID = replayed.ContributionID
		contribution.Status = entities.ContributionStatus(replayed.Status)
		return contribution, true, nil
	}

	round, err := s.Repo.GetRound(ctx, contribution.RoundID)
	if err != nil {
		return entities.Contribution{}, false, err
	}
	if round.Status != entities.RoundStatusOpen {
		return entities.Contribution{}, false, domainerrors.ErrRoundNotOpen
	}
	campaign, err := s.Repo.GetRoundCampaign(ctx, contribution.RoundID, contribution.CampaignID)
	if err != nil {
		return entities.Contribution{}, false, err
	}
	if campaign.Status != entities.ReviewStatusApproved {
		return entities.Contribution{}, false, domainerrors.ErrCampaignNotApproved
	}

	contributionID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Contribution{}, false, err
	}
	contribution.ContributionID = strings.TrimSpace(contributionID)
	if err := s.Repo.CreateContribution(ctx, contribution); err != nil {
		return entities.Contribution{}, false, err
	}

	serialized, err := json.Marshal(contributionReplayPayload{
		ContributionID: contribution.ContributionID,
		Status:         string(contribution.Status),
	})
	if err != nil {
		return entities.Contribution{}, false, err
	}
	if err := s.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
		Key:             strings.TrimSpace(idempotencyKey),
		RequestHash:     requestHash,
		ResponsePayload: serialized,
		ExpiresAt:       now.Add(s.idempotencyTTL()),
	}); err != nil {
		return entities.Contribution{}, false, err
	}

	ResolveLogger(s.Logger).Info("contribution recorded",
		"event", "contribution_recorded",
		"module", "funding-core/round-registry-service",
		"layer", "application",
		"round_id", contribution.RoundID,
		"campaign_id", contribution.CampaignID,
		"contribution_id", contribution.ContributionID,
		"amount", contribution.Amount.String(),
	)
	return contribution, false, nil
}

// ApplyPaymentConfirmed flips a pending contribution to confirmed once the
// payment processor reports settlement.
func (s Service) ApplyPaymentConfirmed(ctx context.Context, paymentRef string, confirmedAt time.Time) (entities.Contribution, error) {
	contribution, err := s.Repo.GetContributionByPaymentRef(ctx, strings.TrimSpace(paymentRef))
	if err != nil {
		return entities.Contribution{}, err
	}
	if contribution.Status == entities.ContributionStatusConfirmed {
		return contribution, nil
	}

	confirmed, err := s.Repo.ConfirmContribution(ctx, contribution.ContributionID, confirmedAt.UTC())
	if err != nil {
		return entities.Contribution{}, err
	}
	if err := s.appendOutbox(ctx, "contribution.confirmed", confirmed.RoundID, map[string]any{
		"contribution_id": confirmed.ContributionID,
		"round_id":        confirmed.RoundID,
		"campaign_id":     confirmed.CampaignID,
		"amount":          confirmed.Amount.String(),
	}); err != nil {
		return entities.Contribution{}, err
	}

	ResolveLogger(s.Logger).Info("contribution confirmed",
		"event", "contribution_confirmed",
		"module", "funding-core/round-registry-service",
		"layer", "application",
		"contribution_id", confirmed.ContributionID,
		"round_id", confirmed.RoundID,
		"campaign_id", confirmed.CampaignID,
	)
	return confirmed, nil
}

func (s Service) GetRound(ctx context.Context, roundID string) (entities.Round, error) {
	return s.Repo.GetRound(ctx, strings.TrimSpace(roundID))
}

func (s Service) ListRounds(ctx context.Context) ([]entities.Round, error) {
	return s.Repo.ListRounds(ctx)
}

func (s Service) ListRoundCampaigns(ctx context.Context, roundID string) ([]entities.RoundCampaign, error) {
	return s.Repo.ListRoundCampaigns(ctx, strings.TrimSpace(roundID))
}

func (s Service) ListContributions(ctx context.Context, roundID string) ([]entities.Contribution, error) {
	return s.Repo.ListContributionsByRound(ctx, strings.TrimSpace(roundID))
}

func (s Service) appendOutbox(ctx context.Context, eventType string, partitionKey string, payload map[string]any) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        eventType,
		OccurredAt:       s.now(),
		SourceService:    "round-registry-service",
		TraceID:          strings.TrimSpace(eventID),
		SchemaVersion:    1,
		PartitionKeyPath: "round_id",
		PartitionKey:     partitionKey,
		Data:             data,
	})
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.IdempotencyTTL
}

// Donor identity comparison is case-insensitive and trimmed everywhere;
// the matching engine applies the same normalization when aggregating.
func normalizeDonorID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

type roundReplayPayload struct {
	RoundID      string `json:"round_id"`
	Status       string `json:"status"`
	MatchingPool string `json:"matching_pool"`
}

func (p roundReplayPayload) toEntity(base entities.Round) entities.Round {
	base.RoundID = p.RoundID
	base.Status = entities.RoundStatus(p.Status)
	return base
}

type contributionReplayPayload struct {
	ContributionID string `json:"contribution_id"`
	Status         string `json:"status"`
}

func hashPayload(payload map[string]any) string {
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
