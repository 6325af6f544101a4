package metrics

import (
	"context"

	"github.com/kilianp07/lowbac/core/events"
	coremetrics "github.com/kilianp07/lowbac/core/metrics"
	"github.com/kilianp07/lowbac/infra/logger"
	"github.com/kilianp07/lowbac/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// relay events. It stops when the context is canceled or the bus closes.
// The returned channel is closed once the collector goroutine has exited.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.OutcomeEvent:
		return sink.RecordCommandOutcome(e)
	case events.SignalEvent:
		if r, ok := sink.(coremetrics.SignalRecorder); ok {
			return r.RecordSignal(e)
		}
	case events.SessionFailureEvent:
		if r, ok := sink.(coremetrics.SessionFailureRecorder); ok {
			return r.RecordSessionFailure(e)
		}
	}
	return nil
}
