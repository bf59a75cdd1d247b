package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"treasure-quest-service/internal/app"
	"treasure-quest-service/internal/domain"
)

// LeaderboardStore keeps entries in process memory. Appends and resets are atomic under
// one lock.
type LeaderboardStore struct {
	mu      sync.RWMutex
	entries []domain.LeaderboardEntry
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{}
}

func (s *LeaderboardStore) Insert(_ context.Context, entry domain.LeaderboardEntry) error {
	if entry.TimeTakenSeconds != nil {
		t := *entry.TimeTakenSeconds
		entry.TimeTakenSeconds = &t
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return nil
}

func (s *LeaderboardStore) List(_ context.Context, since time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	matched := lo.Filter(s.entries, func(e domain.LeaderboardEntry, _ int) bool {
		return since.IsZero() || !e.CreatedAt.Before(since)
	})
	s.mu.RUnlock()

	app.SortEntries(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *LeaderboardStore) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.entries)
	s.entries = nil
	return removed, nil
}
