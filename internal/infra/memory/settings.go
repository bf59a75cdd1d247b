package memory

import "context"

// StaticSettings serves a fixed game duration, typically from the config file.
type StaticSettings struct {
	DurationMinutes int
}

func (s StaticSettings) GameDurationMinutes(_ context.Context) (int, error) {
	return s.DurationMinutes, nil
}
