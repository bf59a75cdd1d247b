package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"treasure-quest-service/internal/app"
)

func TestRunTickerStopsWhenCallbackDeclines(t *testing.T) {
	calls := 0
	done := make(chan struct{})
	go func() {
		app.RunTicker(context.Background(), time.Millisecond, func(context.Context) bool {
			calls++
			return calls < 3
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}
	assert.Equal(t, 3, calls)
}

func TestRunTickerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.RunTicker(ctx, time.Hour, func(context.Context) bool { return true })
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker ignored cancellation")
	}
}
