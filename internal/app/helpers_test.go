package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"treasure-quest-service/internal/app"
	"treasure-quest-service/internal/domain"
	"treasure-quest-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingRecorder counts leaderboard submissions and can be told to fail.
type countingRecorder struct {
	mu      sync.Mutex
	entries []domain.LeaderboardEntry
	fail    bool
}

func (r *countingRecorder) Submit(_ context.Context, entry domain.LeaderboardEntry) (domain.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return domain.LeaderboardEntry{}, errors.New("store offline")
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *countingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type testRig struct {
	clock     *fakeClock
	snapshots *memory.SnapshotStore
	recorder  *countingRecorder
	levels    []domain.Level
	duration  int
}

func newRig(levelCount int) *testRig {
	return &testRig{
		clock:     newFakeClock(),
		snapshots: memory.NewSnapshotStore(),
		recorder:  &countingRecorder{},
		levels:    riddles(levelCount),
		duration:  30,
	}
}

func (r *testRig) engine(clientID string) *app.Engine {
	return app.NewEngine(app.EngineDeps{
		Levels:   memory.NewLevelRepository(memory.NewStaticLevelLoader(r.levels), time.Minute),
		Settings: memory.StaticSettings{DurationMinutes: r.duration},
		Bridge:   app.NewPersistenceBridge(r.snapshots, clientID, nil),
		Results:  r.recorder,
		Now:      r.clock.Now,
	})
}

func riddles(n int) []domain.Level {
	answers := []string{"zoho", "microsoft", "google", "apple", "twitter", "amazon", "netflix"}
	levels := make([]domain.Level, n)
	for i := 0; i < n; i++ {
		levels[i] = domain.Level{
			Number:       i + 1,
			Prompt:       "riddle " + answers[i],
			Answer:       answers[i],
			Hint:         "hint for " + answers[i],
			HintPassword: "Open-" + answers[i],
			Clues:        []string{"clue " + answers[i]},
		}
	}
	return levels
}
