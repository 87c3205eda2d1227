package memory

import (
	"context"
	"strings"
	"sync"

	"quadfund/contexts/funding-core/matching-engine/domain/entities"
	domainerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
)

// Store is an in-memory snapshot source used by tests and in-memory wiring.
// Loads hand out deep copies so callers always compute against an immutable
// snapshot even while contributions keep arriving.
type Store struct {
	mu     sync.RWMutex
	rounds map[string]entities.RoundSnapshot
}

func NewStore(seed []entities.RoundSnapshot) *Store {
	rounds := make(map[string]entities.RoundSnapshot, len(seed))
	for _, snapshot := range seed {
		rounds[strings.TrimSpace(snapshot.RoundID)] = snapshot
	}
	return &Store{rounds: rounds}
}

func (s *Store) SetRound(snapshot entities.RoundSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[strings.TrimSpace(snapshot.RoundID)] = snapshot
}

func (s *Store) AddContribution(roundID string, record entities.ContributionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.rounds[strings.TrimSpace(roundID)]
	if !ok {
		return
	}
	snapshot.Contributions = append(snapshot.Contributions, record)
	s.rounds[strings.TrimSpace(roundID)] = snapshot
}

func (s *Store) LoadRoundForDistribution(_ context.Context, roundID string) (entities.RoundSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.rounds[strings.TrimSpace(roundID)]
	if !ok {
		return entities.RoundSnapshot{}, domainerrors.ErrRoundNotFound
	}
	return copySnapshot(snapshot), nil
}

func (s *Store) LoadRoundForMarginalEstimate(
	ctx context.Context,
	roundID string,
	campaignID string,
) (entities.RoundSnapshot, error) {
	snapshot, err := s.LoadRoundForDistribution(ctx, roundID)
	if err != nil {
		return entities.RoundSnapshot{}, err
	}
	if !snapshot.HasCampaign(strings.TrimSpace(campaignID)) {
		return entities.RoundSnapshot{}, domainerrors.ErrCampaignNotFound
	}
	return snapshot, nil
}

func copySnapshot(snapshot entities.RoundSnapshot) entities.RoundSnapshot {
	return entities.RoundSnapshot{
		RoundID:       snapshot.RoundID,
		MatchingPool:  snapshot.MatchingPool,
		Campaigns:     append([]entities.CampaignRef(nil), snapshot.Campaigns...),
		Contributions: append([]entities.ContributionRecord(nil), snapshot.Contributions...),
	}
}
