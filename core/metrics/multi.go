package metrics

import (
	"errors"

	"github.com/kilianp07/lowbac/core/events"
)

// MultiSink fans records out to several sinks. Errors are joined so that a
// failing sink does not starve the others.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink builds a MultiSink, skipping nil entries.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.Sinks = append(m.Sinks, s)
		}
	}
	return m
}

func (m *MultiSink) RecordCommandOutcome(ev events.OutcomeEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordCommandOutcome(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordSignal(ev events.SignalEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(SignalRecorder); ok {
			if err := r.RecordSignal(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordSessionFailure(ev events.SessionFailureEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(SessionFailureRecorder); ok {
			if err := r.RecordSessionFailure(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() { closeAll(m.Sinks) }
