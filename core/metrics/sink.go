package metrics

import "github.com/kilianp07/lowbac/core/events"

// MetricsSink records the outcome of every command run.
type MetricsSink interface {
	RecordCommandOutcome(ev events.OutcomeEvent) error
}

// SignalRecorder records inbound signals.
type SignalRecorder interface {
	RecordSignal(ev events.SignalEvent) error
}

// SessionFailureRecorder records requests aborted by session preconditions.
type SessionFailureRecorder interface {
	RecordSessionFailure(ev events.SessionFailureEvent) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordCommandOutcome(events.OutcomeEvent) error { return nil }

func (NopSink) RecordSignal(events.SignalEvent) error { return nil }

func (NopSink) RecordSessionFailure(events.SessionFailureEvent) error { return nil }

// Closer is implemented by sinks holding connections.
type Closer interface {
	Close()
}
