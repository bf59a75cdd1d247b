package app

import (
	"time"

	"treasure-quest-service/internal/domain"
)

const (
	// WarningThresholdSeconds and CriticalThresholdSeconds drive Tick.Urgency.
	WarningThresholdSeconds  = 300
	CriticalThresholdSeconds = 60
)

// Clock derives the remaining time of a run from its fixed start instant. It holds no
// goroutine; callers poll it on their own cadence.
type Clock struct {
	start    time.Time
	duration time.Duration
	now      func() time.Time
	paused   bool
	fired    bool
}

// NewClock builds a clock for a run that began at start and lasts durationMinutes.
func NewClock(start time.Time, durationMinutes int, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{
		start:    start,
		duration: time.Duration(durationMinutes) * time.Minute,
		now:      now,
	}
}

// Elapsed is the wall-clock time since start, never negative.
func (c *Clock) Elapsed() time.Duration {
	elapsed := c.now().Sub(c.start)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Remaining returns whole seconds left, clamped at zero.
func (c *Clock) Remaining() int {
	remaining := int(c.duration/time.Second) - int(c.Elapsed()/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Poll returns true exactly once: on the first call that observes zero remaining time
// while not paused.
func (c *Clock) Poll() bool {
	if c.paused || c.fired {
		return false
	}
	if c.Remaining() > 0 {
		return false
	}
	c.fired = true
	return true
}

// SetPaused freezes expiry evaluation. The displayed remaining time keeps following the
// wall clock.
func (c *Clock) SetPaused(paused bool) {
	c.paused = paused
}

// Tick captures the current remaining time for clients.
func (c *Clock) Tick() domain.Tick {
	remaining := c.Remaining()
	return domain.Tick{
		RemainingSeconds: remaining,
		Urgency:          urgencyFor(remaining),
		Paused:           c.paused,
	}
}

// urgencyFor maps the remaining time onto presentation thresholds.
func urgencyFor(remaining int) domain.Urgency {
	switch {
	case remaining <= CriticalThresholdSeconds:
		return domain.UrgencyCritical
	case remaining <= WarningThresholdSeconds:
		return domain.UrgencyWarning
	default:
		return domain.UrgencyNormal
	}
}
