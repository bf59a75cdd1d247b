package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"treasure-quest-service/internal/app"
	"treasure-quest-service/internal/infra/memory"
)

// RunRegistry is a Redis-aware implementation of app.RunRegistry.
// Engines live in a local map; Redis only marks which clients have a live run so
// operators can see activity across instances.
type RunRegistry struct {
	client *redis.Client
	ttl    time.Duration
	local  *memory.RunRegistry
}

func NewRunRegistry(client *redis.Client, ttl time.Duration) *RunRegistry {
	return &RunRegistry{
		client: client,
		ttl:    ttl,
		local:  memory.NewRunRegistry(),
	}
}

func (r *RunRegistry) Acquire(clientID string, build func() *app.Engine) (*app.Engine, bool) {
	engine, created := r.local.Acquire(clientID, build)
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(clientID), "1", r.ttl).Err()
	return engine, created
}

func (r *RunRegistry) Release(clientID string) {
	r.local.Release(clientID)
	if _, ok := r.local.Get(clientID); !ok {
		_ = r.client.Del(context.Background(), r.key(clientID)).Err()
	}
}

func (r *RunRegistry) key(clientID string) string {
	return "treasure:run:" + clientID
}
