package app

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// RunRegistry abstracts where live engines are kept (in-memory, Redis-marked, etc).
// Acquire returns the engine for clientID, creating it with build on first use, and
// reports whether it was created. Every Acquire must be paired with a Release.
type RunRegistry interface {
	Acquire(clientID string, build func() *Engine) (*Engine, bool)
	Release(clientID string)
}

// GameServiceDeps wires the shared collaborators of every run.
type GameServiceDeps struct {
	Runs        RunRegistry
	Levels      LevelRepository
	Settings    SettingsSource
	Snapshots   SnapshotStore
	Leaderboard *Leaderboard
	Hints       Verifier
	Now         func() time.Time
	Logger      *slog.Logger
}

// GameService hands out one engine per client and owns the shared leaderboard.
type GameService struct {
	deps GameServiceDeps

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewGameService(deps GameServiceDeps) *GameService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &GameService{
		deps: deps,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Open returns the client's engine, restoring a saved run when the engine is new.
// Content errors during restore are logged; the client then sees the start screen.
func (s *GameService) Open(ctx context.Context, clientID string) *Engine {
	engine, created := s.deps.Runs.Acquire(clientID, func() *Engine {
		return s.newEngine(clientID)
	})
	if !created {
		return engine
	}
	if _, err := engine.Resume(ctx); err != nil {
		s.deps.Logger.Warn("resume run", slog.String("client", clientID), slog.Any("err", err))
	}
	return engine
}

// Close releases the client's engine. The saved snapshot stays for the next Open.
func (s *GameService) Close(clientID string) {
	s.deps.Runs.Release(clientID)
}

// Leaderboard exposes the shared ranked store.
func (s *GameService) Leaderboard() *Leaderboard {
	return s.deps.Leaderboard
}

func (s *GameService) newEngine(clientID string) *Engine {
	var bridge *PersistenceBridge
	if s.deps.Snapshots != nil {
		bridge = NewPersistenceBridge(s.deps.Snapshots, clientID, s.deps.Logger)
	}
	var results ResultRecorder
	if s.deps.Leaderboard != nil {
		results = s.deps.Leaderboard
	}

	s.rndMu.Lock()
	seed := s.rnd.Int63()
	s.rndMu.Unlock()

	return NewEngine(EngineDeps{
		Levels:   s.deps.Levels,
		Settings: s.deps.Settings,
		Bridge:   bridge,
		Results:  results,
		Hints:    s.deps.Hints,
		Now:      s.deps.Now,
		Rand:     rand.New(rand.NewSource(seed)),
		Logger:   s.deps.Logger.With(slog.String("client", clientID)),
	})
}
