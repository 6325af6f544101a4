package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/lowbac/core/command"
	"github.com/kilianp07/lowbac/core/events"
)

type outcomeOnly struct{ outcomes int }

func (o *outcomeOnly) RecordCommandOutcome(events.OutcomeEvent) error {
	o.outcomes++
	return nil
}

type recordAll struct {
	outcomeOnly
	signals  int
	failures int
	err      error
}

func (r *recordAll) RecordCommandOutcome(events.OutcomeEvent) error {
	r.outcomes++
	return r.err
}

func (r *recordAll) RecordSignal(events.SignalEvent) error {
	r.signals++
	return nil
}

func (r *recordAll) RecordSessionFailure(events.SessionFailureEvent) error {
	r.failures++
	return nil
}

func TestMultiSinkForwards(t *testing.T) {
	a := &outcomeOnly{}
	b := &recordAll{}
	m := NewMultiSink(a, nil, b)
	require.Len(t, m.Sinks, 2)

	ev := events.OutcomeEvent{Intent: command.Unlock, Outcome: command.Outcome{Kind: command.Completed}}
	require.NoError(t, m.RecordCommandOutcome(ev))
	require.NoError(t, m.RecordSignal(events.SignalEvent{}))
	require.NoError(t, m.RecordSessionFailure(events.SessionFailureEvent{}))

	assert.Equal(t, 1, a.outcomes)
	assert.Equal(t, 1, b.outcomes)
	assert.Equal(t, 1, b.signals)
	assert.Equal(t, 1, b.failures)
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &recordAll{err: boom}
	b := &outcomeOnly{}
	m := NewMultiSink(a, b)

	err := m.RecordCommandOutcome(events.OutcomeEvent{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, b.outcomes, "later sinks still receive the record")
}

type closingSink struct {
	outcomeOnly
	closed bool
}

func (c *closingSink) Close() { c.closed = true }

func TestMultiSinkClosesClosers(t *testing.T) {
	a, b := &closingSink{}, &outcomeOnly{}
	NewMultiSink(a, b).Close()
	assert.True(t, a.closed)
}
