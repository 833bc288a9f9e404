package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start when a polling cycle is active.
	ErrAlreadyRunning = errors.New("orchestrator: already running")
	// ErrStopped is returned by operations invoked after Stop.
	ErrStopped = errors.New("orchestrator: stopped")
	// ErrCancelled is returned when a refresh is abandoned because its
	// context ended or the orchestrator was stopped. It is never published.
	ErrCancelled = errors.New("orchestrator: refresh cancelled")
)

// Trigger identifies what started a refresh.
type Trigger int

const (
	TriggerInitial Trigger = iota + 1 // First refresh after Start.
	TriggerPoll                       // Timer-driven refresh.
	TriggerManual                     // RefreshNow.
	TriggerReload                     // Reload after a source refresh settled.
)

func (t Trigger) String() string {
	switch t {
	case TriggerInitial:
		return "initial"
	case TriggerPoll:
		return "poll"
	case TriggerManual:
		return "manual"
	case TriggerReload:
		return "reload"
	default:
		return "unknown"
	}
}

// background reports whether the trigger is a silent refresh that keeps a
// previous error visible until it succeeds.
func (t Trigger) background() bool {
	return t == TriggerPoll
}

// RefreshError reports a refresh that exhausted its attempt budget.
type RefreshError struct {
	Trigger  Trigger
	Attempts int   // Attempts made, equal to the budget.
	Err      error // Error from the last attempt.
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("failed to load dashboard data after %d attempts: %s", e.Attempts, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
