package app

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"treasure-quest-service/internal/domain"
)

// Session is the state of one player's run. Only the engine mutates it.
type Session struct {
	displayName   string
	currentLevel  int
	totalAttempts int
	start         time.Time
	finalized     bool
}

// NewSession starts a run at level 1.
func NewSession(displayName string, start time.Time) *Session {
	return &Session{
		displayName:  displayName,
		currentLevel: 1,
		start:        start,
	}
}

// SessionFromSnapshot rebuilds a run from its persisted form.
func SessionFromSnapshot(snap domain.Snapshot) (*Session, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		displayName:   snap.DisplayName,
		currentLevel:  snap.CurrentLevel,
		totalAttempts: snap.TotalAttempts,
		start:         time.UnixMilli(snap.StartInstant),
	}, nil
}

func (s *Session) DisplayName() string     { return s.displayName }
func (s *Session) CurrentLevel() int       { return s.currentLevel }
func (s *Session) TotalAttempts() int      { return s.totalAttempts }
func (s *Session) StartInstant() time.Time { return s.start }

// Snapshot returns the persisted form of the run.
func (s *Session) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		DisplayName:   s.displayName,
		CurrentLevel:  s.currentLevel,
		TotalAttempts: s.totalAttempts,
		StartInstant:  s.start.UnixMilli(),
	}
}

// advance records one successful submission.
func (s *Session) advance() {
	s.currentLevel++
	s.totalAttempts++
}

// markFinalized returns false if the run was already finalized.
func (s *Session) markFinalized() bool {
	if s.finalized {
		return false
	}
	s.finalized = true
	return true
}

// ResolveDisplayName trims the player's chosen name, or generates "Seeker-<n>" for
// anonymous players.
func ResolveDisplayName(input string, anonymous bool, rnd *rand.Rand) (string, error) {
	if anonymous {
		return fmt.Sprintf("Seeker-%d", rnd.Intn(10000)), nil
	}
	name := strings.TrimSpace(input)
	if !domain.ValidDisplayName(name) {
		return "", domain.ErrInvalidDisplayName
	}
	return name, nil
}
