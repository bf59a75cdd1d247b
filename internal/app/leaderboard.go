package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"treasure-quest-service/internal/domain"
)

// MaxLeaderboardResults bounds every query.
const MaxLeaderboardResults = 100

// LeaderboardStore is the shared durable collection of completed runs.
type LeaderboardStore interface {
	Insert(ctx context.Context, entry domain.LeaderboardEntry) error
	// List returns entries created at or after since (zero means all), fastest first, at
	// most limit rows.
	List(ctx context.Context, since time.Time, limit int) ([]domain.LeaderboardEntry, error)
	// DeleteAll removes every entry in one atomic step and reports how many were removed.
	DeleteAll(ctx context.Context) (int, error)
}

// ChangeNotifier fans out "the leaderboard changed" signals.
// The caller must invoke the returned cancel function to avoid leaks.
type ChangeNotifier interface {
	Publish(ctx context.Context, change domain.LeaderboardChanged) error
	Subscribe(ctx context.Context) (<-chan domain.LeaderboardChanged, func(), error)
}

// ResultRecorder is the write side used when a run is finalized.
type ResultRecorder interface {
	Submit(ctx context.Context, entry domain.LeaderboardEntry) (domain.LeaderboardEntry, error)
}

// Leaderboard implements the submit/query/reset contract over a store and a notifier.
type Leaderboard struct {
	store    LeaderboardStore
	notifier ChangeNotifier
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

func NewLeaderboard(store LeaderboardStore, notifier ChangeNotifier, loc *time.Location, logger *slog.Logger) *Leaderboard {
	return NewLeaderboardWithClock(store, notifier, loc, logger, time.Now)
}

// NewLeaderboardWithClock allows deterministic timestamps in tests.
func NewLeaderboardWithClock(store LeaderboardStore, notifier ChangeNotifier, loc *time.Location, logger *slog.Logger, now func() time.Time) *Leaderboard {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Leaderboard{store: store, notifier: notifier, loc: loc, now: now, logger: logger}
}

// Submit appends one entry. There is no dedup: a player may appear many times.
func (l *Leaderboard) Submit(ctx context.Context, entry domain.LeaderboardEntry) (domain.LeaderboardEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	if err := l.store.Insert(ctx, entry); err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
	}
	l.notify(ctx)
	return entry, nil
}

// Query returns up to MaxLeaderboardResults entries matching filter, fastest first and
// entries without a time last.
func (l *Leaderboard) Query(ctx context.Context, filter domain.LeaderboardFilter) (domain.Leaderboard, error) {
	now := l.now()
	entries, err := l.store.List(ctx, FilterSince(filter, now.In(l.loc)), MaxLeaderboardResults)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("query leaderboard: %w", err)
	}
	SortEntries(entries)
	if len(entries) > MaxLeaderboardResults {
		entries = entries[:MaxLeaderboardResults]
	}
	return domain.Leaderboard{Filter: filter, Entries: entries, UpdatedAt: now}, nil
}

// Subscribe delivers a signal after every append or reset.
func (l *Leaderboard) Subscribe(ctx context.Context) (<-chan domain.LeaderboardChanged, func(), error) {
	if l.notifier == nil {
		return nil, nil, fmt.Errorf("leaderboard notifications are not configured")
	}
	return l.notifier.Subscribe(ctx)
}

// ResetAll irreversibly deletes every entry. Authorization happens before this call.
func (l *Leaderboard) ResetAll(ctx context.Context) (int, error) {
	removed, err := l.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrBulkResetFailed, err)
	}
	l.logger.Info("leaderboard reset", slog.Int("removed", removed))
	l.notify(ctx)
	return removed, nil
}

func (l *Leaderboard) notify(ctx context.Context) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Publish(ctx, domain.LeaderboardChanged{At: l.now()}); err != nil {
		l.logger.Warn("publish leaderboard change", slog.Any("err", err))
	}
}

// FilterSince is the lower creation bound for filter; zero means unbounded. now must
// already be in the leaderboard's local time zone.
func FilterSince(filter domain.LeaderboardFilter, now time.Time) time.Time {
	switch filter {
	case domain.FilterToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case domain.FilterWeek:
		return now.Add(-7 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// SortEntries orders by time taken ascending with nil times last, then by creation time.
func SortEntries(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].TimeTakenSeconds, entries[j].TimeTakenSeconds
		switch {
		case a == nil && b == nil:
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a < *b
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
