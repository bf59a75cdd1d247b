package memory

import (
	"sync"

	"treasure-quest-service/internal/app"
)

// RunRegistry is an in-memory implementation of app.RunRegistry.
type RunRegistry struct {
	mu   sync.Mutex
	runs map[string]*registeredRun
}

type registeredRun struct {
	engine *app.Engine
	refs   int
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]*registeredRun)}
}

func (r *RunRegistry) Acquire(clientID string, build func() *app.Engine) (*app.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[clientID]; ok {
		run.refs++
		return run.engine, false
	}
	run := &registeredRun{engine: build(), refs: 1}
	r.runs[clientID] = run
	return run.engine, true
}

func (r *RunRegistry) Get(clientID string) (*app.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[clientID]
	if !ok {
		return nil, false
	}
	return run.engine, true
}

// Release drops the engine once its last holder lets go.
func (r *RunRegistry) Release(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[clientID]
	if !ok {
		return
	}
	run.refs--
	if run.refs <= 0 {
		delete(r.runs, clientID)
	}
}

// Len reports how many clients hold an engine.
func (r *RunRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
