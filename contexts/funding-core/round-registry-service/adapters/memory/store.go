package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	matchingentities "quadfund/contexts/funding-core/matching-engine/domain/entities"
	matchingerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
	"quadfund/contexts/funding-core/round-registry-service/domain/entities"
	domainerrors "quadfund/contexts/funding-core/round-registry-service/domain/errors"
	"quadfund/contexts/funding-core/round-registry-service/ports"
)

type campaignKey struct {
	roundID    string
	campaignID string
}

// Store is the in-memory registry used by tests and local runs. It backs
// every registry port plus the matching engine's snapshot loader.
type Store struct {
	mu            sync.RWMutex
	rounds        map[string]entities.Round
	campaigns     map[campaignKey]entities.RoundCampaign
	contributions map[string]entities.Contribution
	byPaymentRef  map[string]string
	idempotency   map[string]ports.IdempotencyRecord
	outbox        []outboxRow
	dedup         map[string]time.Time
	nextOutboxSeq int
}

type outboxRow struct {
	message     ports.OutboxMessage
	publishedAt *time.Time
}

func NewStore() *Store {
	return &Store{
		rounds:        make(map[string]entities.Round),
		campaigns:     make(map[campaignKey]entities.RoundCampaign),
		contributions: make(map[string]entities.Contribution),
		byPaymentRef:  make(map[string]string),
		idempotency:   make(map[string]ports.IdempotencyRecord),
		dedup:         make(map[string]time.Time),
	}
}

func (s *Store) CreateRound(_ context.Context, round entities.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rounds[round.RoundID]; exists {
		return domainerrors.ErrConflict
	}
	s.rounds[round.RoundID] = round
	return nil
}

func (s *Store) UpdateRound(_ context.Context, round entities.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rounds[round.RoundID]; !exists {
		return domainerrors.ErrRoundNotFound
	}
	s.rounds[round.RoundID] = round
	return nil
}

func (s *Store) GetRound(_ context.Context, roundID string) (entities.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	round, exists := s.rounds[roundID]
	if !exists {
		return entities.Round{}, domainerrors.ErrRoundNotFound
	}
	return round, nil
}

func (s *Store) ListRounds(_ context.Context) ([]entities.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Round, 0, len(s.rounds))
	for _, round := range s.rounds {
		out = append(out, round)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundID < out[j].RoundID })
	return out, nil
}

func (s *Store) CreateRoundCampaign(_ context.Context, campaign entities.RoundCampaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := campaignKey{roundID: campaign.RoundID, campaignID: campaign.CampaignID}
	if _, exists := s.campaigns[key]; exists {
		return domainerrors.ErrCampaignAlreadyApplied
	}
	s.campaigns[key] = campaign
	return nil
}

func (s *Store) UpdateRoundCampaign(_ context.Context, campaign entities.RoundCampaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := campaignKey{roundID: campaign.RoundID, campaignID: campaign.CampaignID}
	if _, exists := s.campaigns[key]; !exists {
		return domainerrors.ErrRoundCampaignNotFound
	}
	s.campaigns[key] = campaign
	return nil
}

func (s *Store) GetRoundCampaign(_ context.Context, roundID string, campaignID string) (entities.RoundCampaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaign, exists := s.campaigns[campaignKey{roundID: roundID, campaignID: campaignID}]
	if !exists {
		return entities.RoundCampaign{}, domainerrors.ErrRoundCampaignNotFound
	}
	return campaign, nil
}

func (s *Store) ListRoundCampaigns(_ context.Context, roundID string) ([]entities.RoundCampaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.RoundCampaign, 0)
	for key, campaign := range s.campaigns {
		if key.roundID == roundID {
			out = append(out, campaign)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignID < out[j].CampaignID })
	return out, nil
}

func (s *Store) CreateContribution(_ context.Context, contribution entities.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contributions[contribution.ContributionID]; exists {
		return domainerrors.ErrConflict
	}
	if _, exists := s.byPaymentRef[contribution.PaymentRef]; exists {
		return domainerrors.ErrConflict
	}
	s.contributions[contribution.ContributionID] = contribution
	s.byPaymentRef[contribution.PaymentRef] = contribution.ContributionID
	return nil
}

func (s *Store) GetContributionByPaymentRef(_ context.Context, paymentRef string) (entities.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contributionID, exists := s.byPaymentRef[paymentRef]
	if !exists {
		return entities.Contribution{}, domainerrors.ErrContributionNotFound
	}
	return s.contributions[contributionID], nil
}

func (s *Store) ConfirmContribution(_ context.Context, contributionID string, confirmedAt time.Time) (entities.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contribution, exists := s.contributions[contributionID]
	if !exists {
		return entities.Contribution{}, domainerrors.ErrContributionNotFound
	}
	contribution.Status = entities.ContributionStatusConfirmed
	contribution.ConfirmedAt = &confirmedAt
	s.contributions[contributionID] = contribution
	return contribution, nil
}

func (s *Store) ListContributionsByRound(_ context.Context, roundID string) ([]entities.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Contribution, 0)
	for _, contribution := range s.contributions {
		if contribution.RoundID == roundID {
			out = append(out, contribution)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContributionID < out[j].ContributionID })
	return out, nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, exists := s.idempotency[key]
	if !exists || now.After(record.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := marshalEnvelope(envelope)
	if err != nil {
		return err
	}
	s.nextOutboxSeq++
	s.outbox = append(s.outbox, outboxRow{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt,
		},
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.publishedAt != nil {
			continue
		}
		out = append(out, row.message)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			s.outbox[i].publishedAt = &publishedAt
			return nil
		}
	}
	return domainerrors.ErrContributionNotFound
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, _ string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.dedup[eventID]; exists {
		return true, nil
	}
	s.dedup[eventID] = expiresAt
	return false, nil
}

// LoadRoundForDistribution projects the registry state into the snapshot
// shape the matching engine consumes. Only approved campaigns and
// confirmed contributions cross the boundary.
func (s *Store) LoadRoundForDistribution(_ context.Context, roundID string) (matchingentities.RoundSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(roundID)
}

func (s *Store) LoadRoundForMarginalEstimate(_ context.Context, roundID string, campaignID string) (matchingentities.RoundSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, err := s.snapshotLocked(roundID)
	if err != nil {
		return matchingentities.RoundSnapshot{}, err
	}
	if !snapshot.HasCampaign(strings.TrimSpace(campaignID)) {
		return matchingentities.RoundSnapshot{}, matchingerrors.ErrCampaignNotFound
	}
	return snapshot, nil
}

func marshalEnvelope(envelope ports.EventEnvelope) ([]byte, error) {
	return json.Marshal(envelope)
}

func (s *Store) snapshotLocked(roundID string) (matchingentities.RoundSnapshot, error) {
	round, exists := s.rounds[roundID]
	if !exists {
		return matchingentities.RoundSnapshot{}, matchingerrors.ErrRoundNotFound
	}

	snapshot := matchingentities.RoundSnapshot{
		RoundID:      round.RoundID,
		MatchingPool: round.MatchingPool,
	}
	for key, campaign := range s.campaigns {
		if key.roundID != roundID || campaign.Status != entities.ReviewStatusApproved {
			continue
		}
		snapshot.Campaigns = append(snapshot.Campaigns, matchingentities.CampaignRef{
			CampaignID: campaign.CampaignID,
			Title:      campaign.Title,
		})
	}
	sort.Slice(snapshot.Campaigns, func(i, j int) bool {
		return snapshot.Campaigns[i].CampaignID < snapshot.Campaigns[j].CampaignID
	})

	for _, contribution := range s.contributions {
		if contribution.RoundID != roundID || contribution.Status != entities.ContributionStatusConfirmed {
			continue
		}
		if !snapshot.HasCampaign(contribution.CampaignID) {
			continue
		}
		snapshot.Contributions = append(snapshot.Contributions, matchingentities.ContributionRecord{
			ContributionID: contribution.ContributionID,
			CampaignID:     contribution.CampaignID,
			DonorID:        contribution.DonorID,
			Amount:         contribution.Amount,
			Status:         matchingentities.ContributionStatusConfirmed,
		})
	}
	sort.Slice(snapshot.Contributions, func(i, j int) bool {
		return snapshot.Contributions[i].ContributionID < snapshot.Contributions[j].ContributionID
	})
	return snapshot, nil
}
