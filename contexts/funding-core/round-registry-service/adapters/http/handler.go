package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"quadfund/contexts/funding-core/matching-engine/domain/money"
	"quadfund/contexts/funding-core/round-registry-service/application"
	"quadfund/contexts/funding-core/round-registry-service/domain/entities"
	domainerrors "quadfund/contexts/funding-core/round-registry-service/domain/errors"
	httptransport "quadfund/contexts/funding-core/round-registry-service/transport/http"
)

type Handler struct {
	Registry application.Service
	Logger   *slog.Logger
}

func (h Handler) CreateRoundHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.CreateRoundRequest,
) (httptransport.RoundResponse, bool, error) {
	pool, err := money.ParseNonNegative(req.MatchingPool)
	if err != nil {
		return httptransport.RoundResponse{}, false, domainerrors.ErrInvalidRoundInput
	}
	round, replayed, err := h.Registry.CreateRound(ctx, idempotencyKey, application.CreateRoundInput{
		Title:        req.Title,
		SponsorID:    req.SponsorID,
		MatchingPool: pool,
	})
	if err != nil {
		return httptransport.RoundResponse{}, false, err
	}
	return toRoundResponse(round), replayed, nil
}

func (h Handler) OpenRoundHandler(ctx context.Context, roundID string) (httptransport.RoundResponse, error) {
	round, err := h.Registry.OpenRound(ctx, roundID)
	if err != nil {
		return httptransport.RoundResponse{}, err
	}
	return toRoundResponse(round), nil
}

func (h Handler) CloseRoundHandler(ctx context.Context, roundID string) (httptransport.RoundResponse, error) {
	round, err := h.Registry.CloseRound(ctx, roundID)
	if err != nil {
		return httptransport.RoundResponse{}, err
	}
	return toRoundResponse(round), nil
}

func (h Handler) GetRoundHandler(ctx context.Context, roundID string) (httptransport.RoundResponse, error) {
	round, err := h.Registry.GetRound(ctx, roundID)
	if err != nil {
		return httptransport.RoundResponse{}, err
	}
	return toRoundResponse(round), nil
}

func (h Handler) ListRoundsHandler(ctx context.Context) (httptransport.RoundListResponse, error) {
	rounds, err := h.Registry.ListRounds(ctx)
	if err != nil {
		return httptransport.RoundListResponse{}, err
	}
	items := make([]httptransport.RoundResponse, 0, len(rounds))
	for _, round := range rounds {
		items = append(items, toRoundResponse(round))
	}
	return httptransport.RoundListResponse{Items: items}, nil
}

func (h Handler) ApplyCampaignHandler(
	ctx context.Context,
	roundID string,
	req httptransport.ApplyCampaignRequest,
) (httptransport.RoundCampaignResponse, error) {
	campaign, err := h.Registry.ApplyCampaign(ctx, application.ApplyCampaignInput{
		RoundID:    roundID,
		CampaignID: req.CampaignID,
		Title:      req.Title,
		OwnerID:    req.OwnerID,
	})
	if err != nil {
		return httptransport.RoundCampaignResponse{}, err
	}
	return toRoundCampaignResponse(campaign), nil
}

func (h Handler) ReviewCampaignHandler(
	ctx context.Context,
	roundID string,
	campaignID string,
	req httptransport.ReviewCampaignRequest,
) (httptransport.RoundCampaignResponse, error) {
	campaign, err := h.Registry.ReviewCampaign(ctx, application.ReviewCampaignInput{
		RoundID:    roundID,
		CampaignID: campaignID,
		Decision:   entities.ReviewStatus(req.Decision),
		ReviewerID: req.ReviewerID,
	})
	if err != nil {
		return httptransport.RoundCampaignResponse{}, err
	}
	return toRoundCampaignResponse(campaign), nil
}

func (h Handler) ListRoundCampaignsHandler(ctx context.Context, roundID string) (httptransport.RoundCampaignListResponse, error) {
	campaigns, err := h.Registry.ListRoundCampaigns(ctx, roundID)
	if err != nil {
		return httptransport.RoundCampaignListResponse{}, err
	}
	items := make([]httptransport.RoundCampaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		items = append(items, toRoundCampaignResponse(campaign))
	}
	return httptransport.RoundCampaignListResponse{Items: items}, nil
}

func (h Handler) RecordContributionHandler(
	ctx context.Context,
	idempotencyKey string,
	roundID string,
	req httptransport.RecordContributionRequest,
) (httptransport.ContributionResponse, bool, error) {
	amount, err := money.ParseNonNegative(req.Amount)
	if err != nil {
		return httptransport.ContributionResponse{}, false, domainerrors.ErrInvalidContribution
	}
	contribution, replayed, err := h.Registry.RecordContribution(ctx, idempotencyKey, application.RecordContributionInput{
		RoundID:    roundID,
		CampaignID: req.CampaignID,
		DonorID:    req.DonorID,
		Amount:     amount,
		PaymentRef: req.PaymentRef,
	})
	if err != nil {
		return httptransport.ContributionResponse{}, false, err
	}
	return toContributionResponse(contribution), replayed, nil
}

func (h Handler) ListContributionsHandler(ctx context.Context, roundID string) (httptransport.ContributionListResponse, error) {
	contributions, err := h.Registry.ListContributions(ctx, roundID)
	if err != nil {
		return httptransport.ContributionListResponse{}, err
	}
	items := make([]httptransport.ContributionResponse, 0, len(contributions))
	for _, contribution := range contributions {
		items = append(items, toContributionResponse(contribution))
	}
	return httptransport.ContributionListResponse{Items: items}, nil
}

func toRoundResponse(round entities.Round) httptransport.RoundResponse {
	return httptransport.RoundResponse{
		RoundID:      round.RoundID,
		Title:        round.Title,
		SponsorID:    round.SponsorID,
		MatchingPool: round.MatchingPool.String(),
		Status:       string(round.Status),
		CreatedAt:    formatTime(round.CreatedAt),
		OpenedAt:     formatTimePtr(round.OpenedAt),
		ClosedAt:     formatTimePtr(round.ClosedAt),
	}
}

func toRoundCampaignResponse(campaign entities.RoundCampaign) httptransport.RoundCampaignResponse {
	return httptransport.RoundCampaignResponse{
		RoundID:    campaign.RoundID,
		CampaignID: campaign.CampaignID,
		Title:      campaign.Title,
		OwnerID:    campaign.OwnerID,
		Status:     string(campaign.Status),
		AppliedAt:  formatTime(campaign.AppliedAt),
		ReviewedAt: formatTimePtr(campaign.ReviewedAt),
		ReviewedBy: campaign.ReviewedBy,
	}
}

func toContributionResponse(contribution entities.Contribution) httptransport.ContributionResponse {
	return httptransport.ContributionResponse{
		ContributionID: contribution.ContributionID,
		RoundID:        contribution.RoundID,
		CampaignID:     contribution.CampaignID,
		DonorID:        contribution.DonorID,
		Amount:         contribution.Amount.String(),
		Status:         string(contribution.Status),
		PaymentRef:     contribution.PaymentRef,
		CreatedAt:      formatTime(contribution.CreatedAt),
		ConfirmedAt:    formatTimePtr(contribution.ConfirmedAt),
	}
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}

func formatTimePtr(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := formatTime(*value)
	return &formatted
}
