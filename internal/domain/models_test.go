package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateLevelsOrdersByNumber(t *testing.T) {
	levels, err := ValidateLevels([]Level{{Number: 2, Answer: "b"}, {Number: 1, Answer: "a"}, {Number: 3, Answer: "c"}})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for i, lvl := range levels {
		if lvl.Number != i+1 {
			t.Fatalf("expected ordinal %d at %d, got %d", i+1, i, lvl.Number)
		}
	}
}

func TestValidateLevelsRejectsGapsAndDuplicates(t *testing.T) {
	cases := map[string][]Level{
		"gap":       {{Number: 1}, {Number: 3}},
		"duplicate": {{Number: 1}, {Number: 1}},
		"zero":      {{Number: 0}, {Number: 1}},
	}
	for name, levels := range cases {
		if _, err := ValidateLevels(levels); !errors.Is(err, ErrInvalidLevels) {
			t.Fatalf("%s: expected ErrInvalidLevels, got %v", name, err)
		}
	}
	if _, err := ValidateLevels(nil); !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("expected ErrContentUnavailable for empty set, got %v", err)
	}
}

func TestNormalizeDuration(t *testing.T) {
	if got, err := NormalizeDuration(0); err != nil || got != DefaultDurationMinutes {
		t.Fatalf("expected default, got %d %v", got, err)
	}
	if got, err := NormalizeDuration(120); err != nil || got != 120 {
		t.Fatalf("expected 120, got %d %v", got, err)
	}
	for _, bad := range []int{-1, 121} {
		if _, err := NormalizeDuration(bad); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("expected ErrInvalidDuration for %d, got %v", bad, err)
		}
	}
}

func TestSnapshotValidate(t *testing.T) {
	ok := Snapshot{DisplayName: "Ada", CurrentLevel: 2, TotalAttempts: 1, StartInstant: 1700000000000}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid snapshot: %v", err)
	}

	bad := []Snapshot{
		{DisplayName: "", CurrentLevel: 1, StartInstant: 1},
		{DisplayName: strings.Repeat("x", 31), CurrentLevel: 1, StartInstant: 1},
		{DisplayName: "Ada", CurrentLevel: 0, StartInstant: 1},
		{DisplayName: "Ada", CurrentLevel: 1, TotalAttempts: -1, StartInstant: 1},
		{DisplayName: "Ada", CurrentLevel: 1},
		{DisplayName: "Ada", CurrentLevel: 3, TotalAttempts: 0, StartInstant: 1},
	}
	for i, snap := range bad {
		if err := snap.Validate(); !errors.Is(err, ErrMalformedSnapshot) {
			t.Fatalf("case %d: expected ErrMalformedSnapshot, got %v", i, err)
		}
	}
}

func TestParseLeaderboardFilter(t *testing.T) {
	if f, err := ParseLeaderboardFilter(""); err != nil || f != FilterAll {
		t.Fatalf("expected all, got %q %v", f, err)
	}
	if f, err := ParseLeaderboardFilter("week"); err != nil || f != FilterWeek {
		t.Fatalf("expected week, got %q %v", f, err)
	}
	if _, err := ParseLeaderboardFilter("month"); err == nil {
		t.Fatalf("expected error for unknown filter")
	}
}

func TestDecodeSnapshotRequiresEveryField(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{"displayName":"Ada","currentLevel":3,"totalAttempts":2,"startInstant":1700000000000}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.CurrentLevel != 3 || snap.TotalAttempts != 2 || snap.StartInstant != 1700000000000 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	bad := []string{
		`{"displayName":"Ada","currentLevel":3,"startInstant":1700000000000}`,
		`{"displayName":"Ada","totalAttempts":0,"startInstant":1700000000000}`,
		`{"displayName":"Ada","currentLevel":1,"totalAttempts":0}`,
		`{"displayName":"Ada","currentLevel":1,"totalAttempts":0,"startInstant":1,"extra":true}`,
		`{"displayName":"Ada","currentLevel":2,"totalAttempts":40,"startInstant":1}`,
		`[]`,
	}
	for _, raw := range bad {
		if _, err := DecodeSnapshot([]byte(raw)); !errors.Is(err, ErrMalformedSnapshot) {
			t.Fatalf("%s: expected ErrMalformedSnapshot, got %v", raw, err)
		}
	}
}
