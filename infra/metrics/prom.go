package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/lowbac/core/events"
	coremetrics "github.com/kilianp07/lowbac/core/metrics"
)

// PromSink records relay activity in Prometheus metrics.
type PromSink struct {
	outcomes *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	signals  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewPromSink registers the relay metrics on the default Prometheus registerer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	s, err := NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lowbac_command_outcomes_total",
		Help: "Classified command results by intent and outcome",
	}, []string{"intent", "outcome"}))
	if err != nil {
		return nil, err
	}
	latency, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lowbac_command_duration_seconds",
		Help:    "Time from submission to classification",
		Buckets: prometheus.DefBuckets,
	}, []string{"intent"}))
	if err != nil {
		return nil, err
	}
	signals, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lowbac_signals_received_total",
		Help: "Signals received in inbound events",
	}, []string{"signal"}))
	if err != nil {
		return nil, err
	}
	failures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lowbac_session_failures_total",
		Help: "Requests aborted before any command was issued",
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	return &PromSink{outcomes: outcomes, latency: latency, signals: signals, failures: failures}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func (s *PromSink) RecordCommandOutcome(ev events.OutcomeEvent) error {
	intent := ev.Intent.String()
	s.outcomes.WithLabelValues(intent, ev.Outcome.Kind.String()).Inc()
	if ev.Latency > 0 {
		s.latency.WithLabelValues(intent).Observe(ev.Latency.Seconds())
	}
	return nil
}

func (s *PromSink) RecordSignal(ev events.SignalEvent) error {
	s.signals.WithLabelValues(ev.Signal.Name).Inc()
	return nil
}

func (s *PromSink) RecordSessionFailure(ev events.SessionFailureEvent) error {
	s.failures.WithLabelValues(ev.Op).Inc()
	return nil
}
