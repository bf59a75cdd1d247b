package domain

import "errors"

var (
	// ErrContentUnavailable is returned when no levels could be loaded; a run cannot start.
	ErrContentUnavailable = errors.New("no riddle content available")
	// ErrMalformedSnapshot marks a persisted snapshot that failed to parse or validate.
	ErrMalformedSnapshot = errors.New("malformed session snapshot")
	// ErrSnapshotNotFound is returned by snapshot stores when nothing is saved under a key.
	ErrSnapshotNotFound = errors.New("session snapshot not found")
	// ErrSubmissionFailed wraps a leaderboard write failure at finalization.
	ErrSubmissionFailed = errors.New("leaderboard submission failed")
	// ErrBulkResetFailed wraps any failure of the administrative leaderboard reset.
	ErrBulkResetFailed = errors.New("leaderboard reset failed")
	// ErrNotPlaying is returned for gameplay actions outside the playing state.
	ErrNotPlaying = errors.New("run is not in progress")
	// ErrRunFinished is returned when an action arrives after the run was finalized.
	ErrRunFinished = errors.New("run already finished")
	// ErrAlreadyPlaying is returned when starting a run while another is in progress.
	ErrAlreadyPlaying = errors.New("run already in progress")
	// ErrInvalidDisplayName rejects names outside 1..30 characters.
	ErrInvalidDisplayName = errors.New("display name must be 1-30 characters")
	// ErrInvalidDuration rejects game durations outside 1..120 minutes.
	ErrInvalidDuration = errors.New("game duration must be between 1 and 120 minutes")
	// ErrInvalidLevels rejects level sets whose ordinals are not contiguous from 1.
	ErrInvalidLevels = errors.New("level ordinals must be unique and contiguous from 1")
	// ErrUnauthorized is returned when an administrative credential does not verify.
	ErrUnauthorized = errors.New("unauthorized")
)
