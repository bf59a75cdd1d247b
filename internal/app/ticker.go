package app

import (
	"context"
	"time"
)

// RunTicker calls fn every interval until ctx is done or fn returns false.
func RunTicker(ctx context.Context, interval time.Duration, fn func(context.Context) bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !fn(ctx) {
				return
			}
		}
	}
}
