package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"treasure-quest-service/internal/domain"
)

func TestLeaderboardStoreListFiltersAndSorts(t *testing.T) {
	store := NewLeaderboardStore()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_ = store.Insert(ctx, entryAt("old", 10, base.Add(-48*time.Hour)))
	_ = store.Insert(ctx, entryAt("slow", 120, base))
	_ = store.Insert(ctx, domain.LeaderboardEntry{ID: "none", CreatedAt: base})
	_ = store.Insert(ctx, entryAt("fast", 45, base))

	all, err := store.List(ctx, time.Time{}, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := ids(all); got != "old,fast,slow,none" {
		t.Fatalf("unexpected order %s", got)
	}

	recent, _ := store.List(ctx, base.Add(-time.Hour), 100)
	if got := ids(recent); got != "fast,slow,none" {
		t.Fatalf("unexpected filtered order %s", got)
	}

	capped, _ := store.List(ctx, time.Time{}, 2)
	if len(capped) != 2 {
		t.Fatalf("expected limit 2, got %d", len(capped))
	}
}

func TestLeaderboardStoreConcurrentInsertsAndReset(t *testing.T) {
	store := NewLeaderboardStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Insert(ctx, entryAt("e", i, time.Now()))
		}(i)
	}
	wg.Wait()

	removed, err := store.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if removed != 50 {
		t.Fatalf("expected 50 removed, got %d", removed)
	}
	left, _ := store.List(ctx, time.Time{}, 100)
	if len(left) != 0 {
		t.Fatalf("expected empty store, got %d", len(left))
	}
}

func entryAt(id string, seconds int, at time.Time) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{ID: id, DisplayName: id, LevelReached: 5, Attempts: 5, TimeTakenSeconds: &seconds, CreatedAt: at}
}

func ids(entries []domain.LeaderboardEntry) string {
	out := ""
	for i, e := range entries {
		if i > 0 {
			out += ","
		}
		out += e.ID
	}
	return out
}
