package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"treasure-quest-service/internal/domain"
)

// LevelLoader fetches the riddle set from a backing store (e.g., Postgres).
type LevelLoader interface {
	LoadLevels(ctx context.Context) ([]domain.Level, error)
}

const levelsFlightKey = "levels"

// LevelRepository caches the riddle set with a TTL to avoid repeated DB hits.
type LevelRepository struct {
	loader LevelLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	levels    []domain.Level
	expiresAt time.Time
}

func NewLevelRepository(loader LevelLoader, ttl time.Duration) *LevelRepository {
	return &LevelRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *LevelRepository) ListLevels(ctx context.Context) ([]domain.Level, error) {
	if levels, ok := r.cached(r.clock()); ok {
		return levels, nil
	}

	result, err, _ := r.sf.Do(levelsFlightKey, func() (interface{}, error) {
		now := r.clock()
		if levels, ok := r.cached(now); ok {
			return levels, nil
		}

		levels, err := r.loader.LoadLevels(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.levels = levels
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return levels, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneLevels(result.([]domain.Level)), nil
}

// Invalidate drops the cached set so the next read goes to the loader.
func (r *LevelRepository) Invalidate() {
	r.mu.Lock()
	r.levels = nil
	r.expiresAt = time.Time{}
	r.mu.Unlock()
}

func (r *LevelRepository) cached(now time.Time) ([]domain.Level, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.levels != nil && r.expiresAt.After(now) {
		return cloneLevels(r.levels), true
	}
	return nil, false
}

func (r *LevelRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticLevelLoader is a simple loader backed by a fixed slice (useful for tests/demos).
type StaticLevelLoader struct {
	levels []domain.Level
}

func NewStaticLevelLoader(levels []domain.Level) *StaticLevelLoader {
	return &StaticLevelLoader{levels: cloneLevels(levels)}
}

func (l *StaticLevelLoader) LoadLevels(_ context.Context) ([]domain.Level, error) {
	if len(l.levels) == 0 {
		return nil, domain.ErrContentUnavailable
	}
	return cloneLevels(l.levels), nil
}

func cloneLevels(levels []domain.Level) []domain.Level {
	out := make([]domain.Level, len(levels))
	for i, lvl := range levels {
		lvl.Clues = append([]string(nil), lvl.Clues...)
		out[i] = lvl
	}
	return out
}
