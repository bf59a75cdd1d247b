package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"treasure-quest-service/internal/domain"
	"treasure-quest-service/internal/infra/memory"
)

// LevelsKey holds the cached riddle set as one JSON document.
const LevelsKey = "treasure:levels"

// LevelRepository caches the riddle set in Redis and falls back to a loader on cache miss.
// Every instance behind the same Redis shares one cached copy.
type LevelRepository struct {
	client *redis.Client
	loader memory.LevelLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewLevelRepository(client *redis.Client, loader memory.LevelLoader, ttl time.Duration) *LevelRepository {
	return &LevelRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *LevelRepository) ListLevels(ctx context.Context) ([]domain.Level, error) {
	if levels, ok := r.cached(ctx); ok {
		return levels, nil
	}

	result, err, _ := r.sf.Do(LevelsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if levels, ok := r.cached(ctx); ok {
			return levels, nil
		}

		levels, err := r.loader.LoadLevels(ctx)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(levels); err == nil {
			_ = r.client.Set(ctx, LevelsKey, data, r.ttlWithJitter()).Err()
		}
		return levels, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Level(nil), result.([]domain.Level)...), nil
}

// Invalidate drops the shared cached copy, e.g. after an admin import.
func (r *LevelRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, LevelsKey).Err()
}

func (r *LevelRepository) cached(ctx context.Context) ([]domain.Level, bool) {
	data, err := r.client.Get(ctx, LevelsKey).Bytes()
	if err != nil {
		return nil, false
	}
	var levels []domain.Level
	if err := json.Unmarshal(data, &levels); err != nil || len(levels) == 0 {
		return nil, false
	}
	return levels, true
}

func (r *LevelRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
