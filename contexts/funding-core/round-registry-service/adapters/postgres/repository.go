package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	matchingentities "quadfund/contexts/funding-core/matching-engine/domain/entities"
	matchingerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
	"quadfund/contexts/funding-core/matching-engine/domain/money"
	"quadfund/contexts/funding-core/round-registry-service/domain/entities"
	domainerrors "quadfund/contexts/funding-core/round-registry-service/domain/errors"
	"quadfund/contexts/funding-core/round-registry-service/ports"
)

type roundModel struct {
	RoundID      string          `gorm:"column:round_id;primaryKey"`
	Title        string          `gorm:"column:title"`
	SponsorID    string          `gorm:"column:sponsor_id"`
	MatchingPool decimal.Decimal `gorm:"column:matching_pool;type:numeric(18,2)"`
	Status       string          `gorm:"column:status"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
	OpenedAt     *time.Time      `gorm:"column:opened_at"`
	ClosedAt     *time.Time      `gorm:"column:closed_at"`
}

func (roundModel) TableName() string { return "rounds" }

type roundCampaignModel struct {
	RoundID    string     `gorm:"column:round_id;primaryKey"`
	CampaignID string     `gorm:"column:campaign_id;primaryKey"`
	Title      string     `gorm:"column:title"`
	OwnerID    string     `gorm:"column:owner_id"`
	Status     string     `gorm:"column:status"`
	AppliedAt  time.Time  `gorm:"column:applied_at"`
	ReviewedAt *time.Time `gorm:"column:reviewed_at"`
	ReviewedBy string     `gorm:"column:reviewed_by"`
	UpdatedAt  time.Time  `gorm:"column:updated_at"`
}

func (roundCampaignModel) TableName() string { return "round_campaigns" }

type contributionModel struct {
	ContributionID string          `gorm:"column:contribution_id;primaryKey"`
	RoundID        string          `gorm:"column:round_id;index"`
	CampaignID     string          `gorm:"column:campaign_id"`
	DonorID        string          `gorm:"column:donor_id"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(18,2)"`
	Status         string          `gorm:"column:status"`
	PaymentRef     string          `gorm:"column:payment_ref;uniqueIndex"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	ConfirmedAt    *time.Time      `gorm:"column:confirmed_at"`
}

func (contributionModel) TableName() string { return "contributions" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "registry_outbox" }

type idempotencyModel struct {
	IdempotencyKey  string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string { return "registry_idempotency_keys" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "registry_event_dedup" }

// Repository persists the registry through gorm and doubles as the
// matching engine's snapshot loader.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&roundModel{},
		&roundCampaignModel{},
		&contributionModel{},
		&outboxModel{},
		&idempotencyModel{},
		&eventDedupModel{},
	)
}

func (r *Repository) CreateRound(ctx context.Context, round entities.Round) error {
	model := toRoundModel(round)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateRound(ctx context.Context, round entities.Round) error {
	model := toRoundModel(round)
	result := r.db.WithContext(ctx).
		Model(&roundModel{}).
		Where("round_id = ?", round.RoundID).
		Updates(map[string]any{
			"status":     model.Status,
			"updated_at": model.UpdatedAt,
			"opened_at":  model.OpenedAt,
			"closed_at":  model.ClosedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRoundNotFound
	}
	return nil
}

func (r *Repository) GetRound(ctx context.Context, roundID string) (entities.Round, error) {
	var model roundModel
	err := r.db.WithContext(ctx).First(&model, "round_id = ?", roundID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Round{}, domainerrors.ErrRoundNotFound
		}
		return entities.Round{}, err
	}
	return fromRoundModel(model), nil
}

func (r *Repository) ListRounds(ctx context.Context) ([]entities.Round, error) {
	var models []roundModel
	if err := r.db.WithContext(ctx).Order("round_id asc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]entities.Round, 0, len(models))
	for _, model := range models {
		out = append(out, fromRoundModel(model))
	}
	return out, nil
}

func (r *Repository) CreateRoundCampaign(ctx context.Context, campaign entities.RoundCampaign) error {
	model := toRoundCampaignModel(campaign)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrCampaignAlreadyApplied
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateRoundCampaign(ctx context.Context, campaign entities.RoundCampaign) error {
	model := toRoundCampaignModel(campaign)
	result := r.db.WithContext(ctx).
		Model(&roundCampaignModel{}).
		Where("round_id = ? AND campaign_id = ?", campaign.RoundID, campaign.CampaignID).
		Updates(map[string]any{
			"status":      model.Status,
			"reviewed_at": model.ReviewedAt,
			"reviewed_by": model.ReviewedBy,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRoundCampaignNotFound
	}
	return nil
}

func (r *Repository) GetRoundCampaign(ctx context.Context, roundID string, campaignID string) (entities.RoundCampaign, error) {
	var model roundCampaignModel
	err := r.db.WithContext(ctx).
		First(&model, "round_id = ? AND campaign_id = ?", roundID, campaignID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.RoundCampaign{}, domainerrors.ErrRoundCampaignNotFound
		}
		return entities.RoundCampaign{}, err
	}
	return fromRoundCampaignModel(model), nil
}

func (r *Repository) ListRoundCampaigns(ctx context.Context, roundID string) ([]entities.RoundCampaign, error) {
	var models []roundCampaignModel
	err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("campaign_id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]entities.RoundCampaign, 0, len(models))
	for _, model := range models {
		out = append(out, fromRoundCampaignModel(model))
	}
	return out, nil
}

func (r *Repository) CreateContribution(ctx context.Context, contribution entities.Contribution) error {
	model := toContributionModel(contribution)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return err
	}
	return nil
}

func (r *Repository) GetContributionByPaymentRef(ctx context.Context, paymentRef string) (entities.Contribution, error) {
	var model contributionModel
	err := r.db.WithContext(ctx).First(&model, "payment_ref = ?", paymentRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Contribution{}, domainerrors.ErrContributionNotFound
		}
		return entities.Contribution{}, err
	}
	return fromContributionModel(model), nil
}

func (r *Repository) ConfirmContribution(ctx context.Context, contributionID string, confirmedAt time.Time) (entities.Contribution, error) {
	var confirmed entities.Contribution
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model contributionModel
		if err := tx.First(&model, "contribution_id = ?", contributionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrContributionNotFound
			}
			return err
		}
		model.Status = string(entities.ContributionStatusConfirmed)
		model.ConfirmedAt = &confirmedAt
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		confirmed = fromContributionModel(model)
		return nil
	})
	if err != nil {
		return entities.Contribution{}, err
	}
	return confirmed, nil
}

func (r *Repository) ListContributionsByRound(ctx context.Context, roundID string) ([]entities.Contribution, error) {
	var models []contributionModel
	err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("contribution_id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]entities.Contribution, 0, len(models))
	for _, model := range models {
		out = append(out, fromContributionModel(model))
	}
	return out, nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var model idempotencyModel
	err := r.db.WithContext(ctx).First(&model, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}
	if now.After(model.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:             model.IdempotencyKey,
		RequestHash:     model.RequestHash,
		ResponsePayload: model.ResponsePayload,
		ExpiresAt:       model.ExpiresAt,
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	model := idempotencyModel{
		IdempotencyKey:  record.Key,
		RequestHash:     record.RequestHash,
		ResponsePayload: record.ResponsePayload,
		ExpiresAt:       record.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrIdempotencyKeyConflict
		}
		return err
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := envelopePayload(envelope)
	if err != nil {
		return err
	}
	model := outboxModel{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	var models []outboxModel
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at asc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]ports.OutboxMessage, 0, len(models))
	for _, model := range models {
		out = append(out, ports.OutboxMessage{
			OutboxID:     model.OutboxID,
			EventType:    model.EventType,
			PartitionKey: model.PartitionKey,
			Payload:      model.Payload,
			CreatedAt:    model.CreatedAt,
		})
	}
	return out, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Update("published_at", publishedAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrContributionNotFound
	}
	return nil
}

func (r *Repository) ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	model := eventDedupModel{
		EventID:     eventID,
		PayloadHash: payloadHash,
		ExpiresAt:   expiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// LoadRoundForDistribution builds the immutable input the matching engine
// computes over. Pending and failed contributions never cross this
// boundary, nor do unapproved campaigns.
func (r *Repository) LoadRoundForDistribution(ctx context.Context, roundID string) (matchingentities.RoundSnapshot, error) {
	return r.loadSnapshot(ctx, roundID)
}

func (r *Repository) LoadRoundForMarginalEstimate(ctx context.Context, roundID string, campaignID string) (matchingentities.RoundSnapshot, error) {
	snapshot, err := r.loadSnapshot(ctx, roundID)
	if err != nil {
		return matchingentities.RoundSnapshot{}, err
	}
	if !snapshot.HasCampaign(strings.TrimSpace(campaignID)) {
		return matchingentities.RoundSnapshot{}, matchingerrors.ErrCampaignNotFound
	}
	return snapshot, nil
}

func (r *Repository) loadSnapshot(ctx context.Context, roundID string) (matchingentities.RoundSnapshot, error) {
	var round roundModel
	err := r.db.WithContext(ctx).First(&round, "round_id = ?", roundID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return matchingentities.RoundSnapshot{}, matchingerrors.ErrRoundNotFound
		}
		return matchingentities.RoundSnapshot{}, err
	}

	var campaigns []roundCampaignModel
	err = r.db.WithContext(ctx).
		Where("round_id = ? AND status = ?", roundID, string(entities.ReviewStatusApproved)).
		Order("campaign_id asc").
		Find(&campaigns).Error
	if err != nil {
		return matchingentities.RoundSnapshot{}, err
	}

	var contributions []contributionModel
	err = r.db.WithContext(ctx).
		Where("round_id = ? AND status = ?", roundID, string(entities.ContributionStatusConfirmed)).
		Order("contribution_id asc").
		Find(&contributions).Error
	if err != nil {
		return matchingentities.RoundSnapshot{}, err
	}

	snapshot := matchingentities.RoundSnapshot{
		RoundID:      round.RoundID,
		MatchingPool: money.FromDecimal(round.MatchingPool),
	}
	for _, campaign := range campaigns {
		snapshot.Campaigns = append(snapshot.Campaigns, matchingentities.CampaignRef{
			CampaignID: campaign.CampaignID,
			Title:      campaign.Title,
		})
	}
	for _, contribution := range contributions {
		if !snapshot.HasCampaign(contribution.CampaignID) {
			continue
		}
		snapshot.Contributions = append(snapshot.Contributions, matchingentities.ContributionRecord{
			ContributionID: contribution.ContributionID,
			CampaignID:     contribution.CampaignID,
			DonorID:        contribution.DonorID,
			Amount:         money.FromDecimal(contribution.Amount),
			Status:         matchingentities.ContributionStatusConfirmed,
		})
	}
	return snapshot, nil
}

func toRoundModel(round entities.Round) roundModel {
	return roundModel{
		RoundID:      round.RoundID,
		Title:        round.Title,
		SponsorID:    round.SponsorID,
		MatchingPool: round.MatchingPool.Decimal(),
		Status:       string(round.Status),
		CreatedAt:    round.CreatedAt,
		UpdatedAt:    round.UpdatedAt,
		OpenedAt:     round.OpenedAt,
		ClosedAt:     round.ClosedAt,
	}
}

func fromRoundModel(model roundModel) entities.Round {
	return entities.Round{
		RoundID:      model.RoundID,
		Title:        model.Title,
		SponsorID:    model.SponsorID,
		MatchingPool: money.FromDecimal(model.MatchingPool),
		Status:       entities.RoundStatus(model.Status),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
		OpenedAt:     model.OpenedAt,
		ClosedAt:     model.ClosedAt,
	}
}

func toRoundCampaignModel(campaign entities.RoundCampaign) roundCampaignModel {
	return roundCampaignModel{
		RoundID:    campaign.RoundID,
		CampaignID: campaign.CampaignID,
		Title:      campaign.Title,
		OwnerID:    campaign.OwnerID,
		Status:     string(campaign.Status),
		AppliedAt:  campaign.AppliedAt,
		ReviewedAt: campaign.ReviewedAt,
		ReviewedBy: campaign.ReviewedBy,
		UpdatedAt:  campaign.UpdatedAt,
	}
}

func fromRoundCampaignModel(model roundCampaignModel) entities.RoundCampaign {
	return entities.RoundCampaign{
		RoundID:    model.RoundID,
		CampaignID: model.CampaignID,
		Title:      model.Title,
		OwnerID:    model.OwnerID,
		Status:     entities.ReviewStatus(model.Status),
		AppliedAt:  model.AppliedAt,
		ReviewedAt: model.ReviewedAt,
		ReviewedBy: model.ReviewedBy,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toContributionModel(contribution entities.Contribution) contributionModel {
	return contributionModel{
		ContributionID: contribution.ContributionID,
		RoundID:        contribution.RoundID,
		CampaignID:     contribution.CampaignID,
		DonorID:        contribution.DonorID,
		Amount:         contribution.Amount.Decimal(),
		Status:         string(contribution.Status),
		PaymentRef:     contribution.PaymentRef,
		CreatedAt:      contribution.CreatedAt,
		ConfirmedAt:    contribution.ConfirmedAt,
	}
}

func fromContributionModel(model contributionModel) entities.Contribution {
	return entities.Contribution{
		ContributionID: model.ContributionID,
		RoundID:        model.RoundID,
		CampaignID:     model.CampaignID,
		DonorID:        model.DonorID,
		Amount:         money.FromDecimal(model.Amount),
		Status:         entities.ContributionStatus(model.Status),
		PaymentRef:     model.PaymentRef,
		CreatedAt:      model.CreatedAt,
		ConfirmedAt:    model.ConfirmedAt,
	}
}

func envelopePayload(envelope ports.EventEnvelope) ([]byte, error) {
	return json.Marshal(envelope)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
