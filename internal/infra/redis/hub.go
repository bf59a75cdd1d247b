package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"treasure-quest-service/internal/domain"
)

// ChangesChannel carries leaderboard change signals between instances.
const ChangesChannel = "treasure:leaderboard:changes"

// Hub publishes leaderboard changes over Redis pub/sub so every instance can tell its
// connected clients to refetch.
type Hub struct {
	client *redis.Client
	logger *slog.Logger
}

func NewHub(client *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{client: client, logger: logger}
}

func (h *Hub) Publish(ctx context.Context, change domain.LeaderboardChanged) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return h.client.Publish(ctx, ChangesChannel, payload).Err()
}

// Subscribe returns once the subscription is confirmed, so no later Publish is missed.
func (h *Hub) Subscribe(ctx context.Context) (<-chan domain.LeaderboardChanged, func(), error) {
	pubsub := h.client.Subscribe(ctx, ChangesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", ChangesChannel, err)
	}

	out := make(chan domain.LeaderboardChanged, 8)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var change domain.LeaderboardChanged
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				h.logger.Warn("bad leaderboard change payload", slog.Any("err", err))
				continue
			}
			select {
			case out <- change:
			case <-done:
				return
			default:
				// drop oldest so the latest signal always gets through
				select {
				case <-out:
				default:
				}
				out <- change
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel, nil
}
