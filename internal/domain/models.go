package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"
)

const (
	// DefaultDurationMinutes is used when no game duration is configured.
	DefaultDurationMinutes = 30
	MinDurationMinutes     = 1
	MaxDurationMinutes     = 120

	// MaxDisplayNameLength is measured in runes.
	MaxDisplayNameLength = 30
)

// Level is one riddle in the ordered sequence.
type Level struct {
	Number       int      `json:"number" yaml:"number"`
	Prompt       string   `json:"prompt" yaml:"prompt"`
	Answer       string   `json:"answer" yaml:"answer"`
	Hint         string   `json:"hint" yaml:"hint"`
	HintPassword string   `json:"hintPassword" yaml:"hint_password"`
	Clues        []string `json:"clues,omitempty" yaml:"clues"`
}

// ValidateLevels returns the levels ordered by Number, or an error if the set is empty or
// its ordinals are not exactly 1..n.
func ValidateLevels(levels []Level) ([]Level, error) {
	if len(levels) == 0 {
		return nil, ErrContentUnavailable
	}
	ordered := make([]Level, len(levels))
	copy(ordered, levels)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })
	for i, lvl := range ordered {
		if lvl.Number != i+1 {
			return nil, fmt.Errorf("%w: position %d has ordinal %d", ErrInvalidLevels, i+1, lvl.Number)
		}
	}
	return ordered, nil
}

// NormalizeDuration maps an unset duration to the default and rejects out-of-range values.
func NormalizeDuration(minutes int) (int, error) {
	if minutes == 0 {
		return DefaultDurationMinutes, nil
	}
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidDuration, minutes)
	}
	return minutes, nil
}

// ValidDisplayName reports whether name fits the 1..30 rune bound.
func ValidDisplayName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= 1 && n <= MaxDisplayNameLength
}

// Snapshot is the persisted form of a run in progress.
type Snapshot struct {
	DisplayName   string `json:"displayName"`
	CurrentLevel  int    `json:"currentLevel"`
	TotalAttempts int    `json:"totalAttempts"`
	StartInstant  int64  `json:"startInstant"` // epoch millis
}

// Validate checks the snapshot schema; callers treat any error as "no saved run".
func (s Snapshot) Validate() error {
	switch {
	case !ValidDisplayName(s.DisplayName):
		return fmt.Errorf("%w: display name", ErrMalformedSnapshot)
	case s.CurrentLevel < 1:
		return fmt.Errorf("%w: current level %d", ErrMalformedSnapshot, s.CurrentLevel)
	case s.TotalAttempts != s.CurrentLevel-1:
		return fmt.Errorf("%w: total attempts %d at level %d", ErrMalformedSnapshot, s.TotalAttempts, s.CurrentLevel)
	case s.StartInstant <= 0:
		return fmt.Errorf("%w: start instant %d", ErrMalformedSnapshot, s.StartInstant)
	}
	return nil
}

// snapshotFields mirrors Snapshot with every field required.
type snapshotFields struct {
	DisplayName   *string `json:"displayName"`
	CurrentLevel  *int    `json:"currentLevel"`
	TotalAttempts *int    `json:"totalAttempts"`
	StartInstant  *int64  `json:"startInstant"`
}

// DecodeSnapshot parses and validates a persisted snapshot. Missing or unknown fields are
// a schema mismatch.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw snapshotFields
	if err := dec.Decode(&raw); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if dec.More() {
		return Snapshot{}, fmt.Errorf("%w: trailing data", ErrMalformedSnapshot)
	}
	if raw.DisplayName == nil || raw.CurrentLevel == nil || raw.TotalAttempts == nil || raw.StartInstant == nil {
		return Snapshot{}, fmt.Errorf("%w: missing field", ErrMalformedSnapshot)
	}
	snap := Snapshot{
		DisplayName:   *raw.DisplayName,
		CurrentLevel:  *raw.CurrentLevel,
		TotalAttempts: *raw.TotalAttempts,
		StartInstant:  *raw.StartInstant,
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// LeaderboardEntry is one completed run. TimeTakenSeconds is nil when unknown.
type LeaderboardEntry struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"displayName"`
	LevelReached     int       `json:"level"`
	Attempts         int       `json:"attempts"`
	TimeTakenSeconds *int      `json:"timeTaken"`
	CreatedAt        time.Time `json:"timestamp"`
}

// LeaderboardFilter restricts a query by creation time.
type LeaderboardFilter string

const (
	FilterAll   LeaderboardFilter = "all"
	FilterToday LeaderboardFilter = "today"
	FilterWeek  LeaderboardFilter = "week"
)

// ParseLeaderboardFilter accepts "", all, today and week.
func ParseLeaderboardFilter(raw string) (LeaderboardFilter, error) {
	switch LeaderboardFilter(raw) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterToday, FilterWeek:
		return LeaderboardFilter(raw), nil
	}
	return "", fmt.Errorf("unknown leaderboard filter %q", raw)
}

// Leaderboard is a ranked query result.
type Leaderboard struct {
	Filter    LeaderboardFilter  `json:"filter"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// LeaderboardChanged is the payload-free live update signal.
type LeaderboardChanged struct {
	At time.Time `json:"at"`
}

// RunOutcome tells how a run reached the completed state.
type RunOutcome string

const (
	OutcomeCompleted RunOutcome = "completed"
	OutcomeExpired   RunOutcome = "expired"
)

// RunResult carries the final stats of a run.
type RunResult struct {
	DisplayName      string     `json:"displayName"`
	LevelReached     int        `json:"level"`
	TotalLevels      int        `json:"totalLevels"`
	Attempts         int        `json:"attempts"`
	TimeTakenSeconds int        `json:"timeTaken"`
	Outcome          RunOutcome `json:"outcome"`
	Warning          string     `json:"warning,omitempty"`
}

// Urgency is the presentation threshold derived from the remaining time.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
)

// Tick is the time-remaining signal pushed to clients.
type Tick struct {
	RemainingSeconds int     `json:"remaining"`
	Urgency          Urgency `json:"urgency"`
	Paused           bool    `json:"paused"`
}

// LevelView is what a client may see about the active level.
type LevelView struct {
	Number        int      `json:"number"`
	TotalLevels   int      `json:"totalLevels"`
	Prompt        string   `json:"prompt"`
	Clues         []string `json:"clues,omitempty"`
	LevelAttempts int      `json:"levelAttempts"`
	HintEligible  bool     `json:"hintEligible"`
	HintUnlocked  bool     `json:"hintUnlocked"`
	Hint          string   `json:"hint,omitempty"`
}

// AnswerResult is the outcome of one submission.
type AnswerResult struct {
	Correct       bool       `json:"correct"`
	LevelAttempts int        `json:"levelAttempts"`
	HintEligible  bool       `json:"hintEligible"`
	NextLevel     *LevelView `json:"nextLevel,omitempty"`
	Result        *RunResult `json:"result,omitempty"`
}

// HintResult is the outcome of a hint password attempt.
type HintResult struct {
	Unlocked bool   `json:"unlocked"`
	Hint     string `json:"hint,omitempty"`
}
