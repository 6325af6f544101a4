package events

import (
	"time"

	"github.com/kilianp07/lowbac/core/command"
)

// OutcomeEvent is published once per command run, including runs whose
// submission failed.
type OutcomeEvent struct {
	DispatchID string
	VehicleID  string
	Trigger    string
	Intent     command.Intent
	Outcome    command.Outcome
	Latency    time.Duration
	Time       time.Time
}

// SessionFailureEvent is published when a request is aborted before any
// command could be issued.
type SessionFailureEvent struct {
	DispatchID string
	UserKey    string
	Op         string
	Err        error
	Time       time.Time
}
