package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"treasure-quest-service/internal/domain"
)

// HintThreshold is the number of wrong answers on a level after which the client should
// offer the hint dialog.
const HintThreshold = 2

// State is the position of a run in the Start -> Playing -> Completed machine.
type State string

const (
	StateStart     State = "start"
	StatePlaying   State = "playing"
	StateCompleted State = "completed"
)

// LevelRepository is the read path of the riddle set, ordered by ordinal.
type LevelRepository interface {
	ListLevels(ctx context.Context) ([]domain.Level, error)
}

// SettingsSource provides admin-settable game parameters.
type SettingsSource interface {
	GameDurationMinutes(ctx context.Context) (int, error)
}

// EngineDeps wires an Engine to its collaborators. Zero-valued optional fields get defaults.
type EngineDeps struct {
	Levels   LevelRepository
	Settings SettingsSource
	Bridge   *PersistenceBridge
	Results  ResultRecorder
	Hints    Verifier
	Now      func() time.Time
	Rand     *rand.Rand
	Logger   *slog.Logger
}

// Engine is the progression state machine of one player's run. Calls are serialized, so
// the tick loop and client messages never interleave inside a transition.
type Engine struct {
	deps EngineDeps

	mu            sync.Mutex
	state         State
	levels        []domain.Level
	session       *Session
	clock         *Clock
	levelAttempts int
	hintUnlocked  bool
	result        *domain.RunResult
}

func NewEngine(deps EngineDeps) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Hints == nil {
		deps.Hints = PlaintextVerifier{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{deps: deps, state: StateStart}
}

// Status is everything a reconnecting client needs to render the run.
type Status struct {
	State       State             `json:"state"`
	DisplayName string            `json:"displayName,omitempty"`
	Level       *domain.LevelView `json:"level,omitempty"`
	Tick        *domain.Tick      `json:"tick,omitempty"`
	Result      *domain.RunResult `json:"result,omitempty"`
}

// Start begins a fresh run. Content is loaded first; without it the engine stays in Start.
func (e *Engine) Start(ctx context.Context, displayName string, anonymous bool) (domain.LevelView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StatePlaying {
		return domain.LevelView{}, domain.ErrAlreadyPlaying
	}
	name, err := ResolveDisplayName(displayName, anonymous, e.deps.Rand)
	if err != nil {
		return domain.LevelView{}, err
	}
	levels, err := e.loadLevels(ctx)
	if err != nil {
		return domain.LevelView{}, err
	}
	duration := e.loadDuration(ctx)

	if e.state == StateCompleted {
		e.clearSnapshot(ctx)
	}
	now := e.deps.Now()
	e.levels = levels
	e.session = NewSession(name, now)
	e.clock = NewClock(now, duration, e.deps.Now)
	e.state = StatePlaying
	e.result = nil
	e.resetLevelLocked()
	e.persist(ctx)

	e.deps.Logger.Info("run started",
		slog.String("player", name),
		slog.Int("levels", len(levels)),
		slog.Int("duration_minutes", duration))
	return e.viewLocked(), nil
}

// Resume restores a saved run. It reports whether the engine left the Start state. A run
// whose time ran out while no client was connected is finalized here.
func (e *Engine) Resume(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateStart {
		return true, nil
	}
	if e.deps.Bridge == nil {
		return false, nil
	}
	session := e.deps.Bridge.Load(ctx)
	if session == nil {
		return false, nil
	}
	levels, err := e.loadLevels(ctx)
	if err != nil {
		return false, err
	}
	result := e.deps.Bridge.LoadResult(ctx, session)
	if result == nil && session.CurrentLevel() > len(levels) {
		e.deps.Bridge.Discard(ctx, fmt.Errorf("%w: level %d of %d", domain.ErrMalformedSnapshot, session.CurrentLevel(), len(levels)))
		return false, nil
	}

	e.levels = levels
	e.session = session
	e.clock = NewClock(session.StartInstant(), e.loadDuration(ctx), e.deps.Now)
	e.resetLevelLocked()

	if result != nil {
		session.markFinalized()
		e.result = result
		e.state = StateCompleted
		return true, nil
	}

	e.state = StatePlaying
	if e.clock.Poll() {
		// A submission failure is already reported through the result warning.
		_, _ = e.finalizeLocked(ctx, domain.OutcomeExpired)
		return true, nil
	}
	e.deps.Logger.Info("run resumed",
		slog.String("player", session.DisplayName()),
		slog.Int("level", session.CurrentLevel()),
		slog.Int("remaining", e.clock.Remaining()))
	return true, nil
}

// SubmitAnswer checks input against the active level. A correct answer advances the run
// or completes it; a wrong one increments the per-level attempt counter only.
//
// If the clock has run out when the call is processed, the run is finalized as expired
// and the answer is rejected with domain.ErrRunFinished.
func (e *Engine) SubmitAnswer(ctx context.Context, input string) (domain.AnswerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requirePlayingLocked(); err != nil {
		return domain.AnswerResult{}, err
	}
	if e.clock.Poll() {
		result, err := e.finalizeLocked(ctx, domain.OutcomeExpired)
		return domain.AnswerResult{Result: &result}, errors.Join(domain.ErrRunFinished, err)
	}
	if strings.TrimSpace(input) == "" {
		return e.incorrectLocked(), nil
	}

	level := e.levels[e.session.CurrentLevel()-1]
	if !answersMatch(input, level.Answer) {
		e.levelAttempts++
		return e.incorrectLocked(), nil
	}

	e.session.advance()
	e.resetLevelLocked()
	e.persist(ctx)
	if e.session.CurrentLevel() > len(e.levels) {
		result, err := e.finalizeLocked(ctx, domain.OutcomeCompleted)
		return domain.AnswerResult{Correct: true, Result: &result}, err
	}
	next := e.viewLocked()
	e.deps.Logger.Debug("level advanced",
		slog.String("player", e.session.DisplayName()),
		slog.Int("level", next.Number))
	return domain.AnswerResult{Correct: true, NextLevel: &next}, nil
}

// UnlockHint checks a hint password for the active level. It never touches progression
// or attempt counters, and failures are unlimited.
func (e *Engine) UnlockHint(attempt string) (domain.HintResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requirePlayingLocked(); err != nil {
		return domain.HintResult{}, err
	}
	level := e.levels[e.session.CurrentLevel()-1]
	if !e.deps.Hints.Verify(level.HintPassword, attempt) {
		return domain.HintResult{}, nil
	}
	e.hintUnlocked = true
	return domain.HintResult{Unlocked: true, Hint: level.Hint}, nil
}

// Tick is the periodic expiry check. It returns the current time-remaining signal and, on
// the one call that observes expiry, the final result. Outside Playing it returns
// domain.ErrNotPlaying or domain.ErrRunFinished so the caller can stop ticking.
func (e *Engine) Tick(ctx context.Context) (domain.Tick, *domain.RunResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requirePlayingLocked(); err != nil {
		return domain.Tick{}, nil, err
	}
	tick := e.clock.Tick()
	if !e.clock.Poll() {
		return tick, nil, nil
	}
	result, err := e.finalizeLocked(ctx, domain.OutcomeExpired)
	return tick, &result, err
}

// SetPaused freezes expiry evaluation while the client shows a blocking dialog.
func (e *Engine) SetPaused(paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requirePlayingLocked(); err != nil {
		return err
	}
	e.clock.SetPaused(paused)
	return nil
}

// Reset abandons the run and clears the persisted snapshot.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil && e.state == StatePlaying {
		e.deps.Logger.Info("run abandoned",
			slog.String("player", e.session.DisplayName()),
			slog.Int("level", e.session.CurrentLevel()))
	}
	e.state = StateStart
	e.session = nil
	e.clock = nil
	e.levels = nil
	e.result = nil
	e.resetLevelLocked()
	if e.deps.Bridge == nil {
		return nil
	}
	return e.deps.Bridge.Clear(ctx)
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns the current session's persisted form, if a run exists.
func (e *Engine) Snapshot() (domain.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return domain.Snapshot{}, false
	}
	return e.session.Snapshot(), true
}

// Status describes the run for a (re)connecting client.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := Status{State: e.state}
	if e.session != nil {
		status.DisplayName = e.session.DisplayName()
	}
	switch e.state {
	case StatePlaying:
		view := e.viewLocked()
		tick := e.clock.Tick()
		status.Level = &view
		status.Tick = &tick
	case StateCompleted:
		status.Result = e.result
	}
	return status
}

func (e *Engine) requirePlayingLocked() error {
	switch e.state {
	case StatePlaying:
		return nil
	case StateCompleted:
		return domain.ErrRunFinished
	default:
		return domain.ErrNotPlaying
	}
}

// finalizeLocked ends the run once and submits it to the leaderboard. A submission
// failure is returned wrapped in domain.ErrSubmissionFailed; the run still completes.
func (e *Engine) finalizeLocked(ctx context.Context, outcome domain.RunOutcome) (domain.RunResult, error) {
	if !e.session.markFinalized() {
		if e.result != nil {
			return *e.result, nil
		}
		return domain.RunResult{}, domain.ErrRunFinished
	}
	e.state = StateCompleted

	elapsed := int(e.deps.Now().Sub(e.session.StartInstant()) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	reached := len(e.levels)
	if outcome == domain.OutcomeExpired && e.session.CurrentLevel() <= len(e.levels) {
		reached = e.session.CurrentLevel()
	}
	result := domain.RunResult{
		DisplayName:      e.session.DisplayName(),
		LevelReached:     reached,
		TotalLevels:      len(e.levels),
		Attempts:         e.session.TotalAttempts(),
		TimeTakenSeconds: elapsed,
		Outcome:          outcome,
	}

	var submitErr error
	if e.deps.Results != nil {
		_, submitErr = e.deps.Results.Submit(ctx, domain.LeaderboardEntry{
			DisplayName:      result.DisplayName,
			LevelReached:     result.LevelReached,
			Attempts:         result.Attempts,
			TimeTakenSeconds: &elapsed,
		})
	}
	if submitErr != nil {
		if !errors.Is(submitErr, domain.ErrSubmissionFailed) {
			submitErr = fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, submitErr)
		}
		result.Warning = "your result could not be recorded on the leaderboard"
		e.deps.Logger.Warn("leaderboard submission failed",
			slog.String("player", result.DisplayName),
			slog.Any("err", submitErr))
	}
	e.result = &result

	if e.deps.Bridge != nil {
		// Without the result record a reload could replay the run, so the snapshot goes too.
		if err := e.deps.Bridge.SaveResult(ctx, e.session, result); err != nil {
			e.deps.Logger.Warn("record final result", slog.Any("err", err))
			e.clearSnapshot(ctx)
		}
	}
	e.deps.Logger.Info("run finalized",
		slog.String("player", result.DisplayName),
		slog.String("outcome", string(outcome)),
		slog.Int("level", result.LevelReached),
		slog.Int("attempts", result.Attempts),
		slog.Int("seconds", elapsed))
	return result, submitErr
}

func (e *Engine) incorrectLocked() domain.AnswerResult {
	return domain.AnswerResult{
		LevelAttempts: e.levelAttempts,
		HintEligible:  e.levelAttempts >= HintThreshold,
	}
}

func (e *Engine) resetLevelLocked() {
	e.levelAttempts = 0
	e.hintUnlocked = false
}

func (e *Engine) viewLocked() domain.LevelView {
	level := e.levels[e.session.CurrentLevel()-1]
	view := domain.LevelView{
		Number:        level.Number,
		TotalLevels:   len(e.levels),
		Prompt:        level.Prompt,
		Clues:         level.Clues,
		LevelAttempts: e.levelAttempts,
		HintEligible:  e.levelAttempts >= HintThreshold,
		HintUnlocked:  e.hintUnlocked,
	}
	if e.hintUnlocked {
		view.Hint = level.Hint
	}
	return view
}

// persist saves the snapshot; storage failures are logged and never block play.
func (e *Engine) persist(ctx context.Context) {
	if e.deps.Bridge == nil {
		return
	}
	if err := e.deps.Bridge.Save(ctx, e.session); err != nil {
		e.deps.Logger.Warn("persist session", slog.Any("err", err))
	}
}

func (e *Engine) clearSnapshot(ctx context.Context) {
	if e.deps.Bridge == nil {
		return
	}
	if err := e.deps.Bridge.Clear(ctx); err != nil {
		e.deps.Logger.Warn("clear session", slog.Any("err", err))
	}
}

func (e *Engine) loadLevels(ctx context.Context) ([]domain.Level, error) {
	if e.deps.Levels == nil {
		return nil, domain.ErrContentUnavailable
	}
	levels, err := e.deps.Levels.ListLevels(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrContentUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrContentUnavailable, err)
	}
	ordered, err := domain.ValidateLevels(levels)
	if err != nil {
		if errors.Is(err, domain.ErrContentUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrContentUnavailable, err)
	}
	return ordered, nil
}

func (e *Engine) loadDuration(ctx context.Context) int {
	if e.deps.Settings == nil {
		return domain.DefaultDurationMinutes
	}
	minutes, err := e.deps.Settings.GameDurationMinutes(ctx)
	if err != nil {
		e.deps.Logger.Warn("game duration unavailable, using default", slog.Any("err", err))
		return domain.DefaultDurationMinutes
	}
	normalized, err := domain.NormalizeDuration(minutes)
	if err != nil {
		e.deps.Logger.Warn("game duration out of range, using default", slog.Any("err", err))
		return domain.DefaultDurationMinutes
	}
	return normalized
}
