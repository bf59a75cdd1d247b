package memory

import (
	"context"
	"sync"

	"treasure-quest-service/internal/domain"
)

// Hub fans leaderboard change signals out to in-process subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan domain.LeaderboardChanged]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan domain.LeaderboardChanged]struct{})}
}

func (h *Hub) Publish(_ context.Context, change domain.LeaderboardChanged) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- change:
		default:
			// A slow subscriber only needs the latest signal; drop the stale one.
			select {
			case <-ch:
			default:
			}
			ch <- change
		}
	}
	return nil
}

func (h *Hub) Subscribe(_ context.Context) (<-chan domain.LeaderboardChanged, func(), error) {
	ch := make(chan domain.LeaderboardChanged, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel, nil
}
