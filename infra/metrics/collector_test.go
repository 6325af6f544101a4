package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/lowbac/core/command"
	"github.com/kilianp07/lowbac/core/events"
	"github.com/kilianp07/lowbac/internal/eventbus"
)

type countingSink struct {
	mu       sync.Mutex
	outcomes int
	signals  int
	failures int
}

func (c *countingSink) RecordCommandOutcome(events.OutcomeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes++
	return nil
}

func (c *countingSink) RecordSignal(events.SignalEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals++
	return nil
}

func (c *countingSink) RecordSessionFailure(events.SessionFailureEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	return nil
}

func (c *countingSink) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes + c.signals + c.failures
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.New(8)
	sink := &countingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, sink)

	bus.Publish(events.SignalEvent{})
	bus.Publish(events.OutcomeEvent{Intent: command.Unlock})
	bus.Publish(events.SessionFailureEvent{Op: "resolve"})
	bus.Publish("ignored")

	require.Eventually(t, func() bool { return sink.total() == 3 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
	assert.Equal(t, 1, sink.outcomes)
	assert.Equal(t, 1, sink.signals)
	assert.Equal(t, 1, sink.failures)
}

func TestStartEventCollectorNilBus(t *testing.T) {
	done := StartEventCollector(context.Background(), nil, &countingSink{})
	_, open := <-done
	assert.False(t, open)
}
