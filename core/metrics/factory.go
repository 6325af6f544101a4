package metrics

import (
	"fmt"

	"github.com/kilianp07/lowbac/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink names.
func SinkTypes() []string { return sinkRegistry.Types() }

// NewMetricsSink builds the sinks listed in cfg. Without sinks the relay
// records nothing. A sink type may be listed once: a repeated prometheus sink
// shares its collectors and would count every outcome twice.
func NewMetricsSink(cfg Config) (MetricsSink, error) {
	switch len(cfg.Sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return create(0, cfg.Sinks[0])
	}
	seen := make(map[string]bool, len(cfg.Sinks))
	sinks := make([]MetricsSink, 0, len(cfg.Sinks))
	for i, c := range cfg.Sinks {
		if seen[c.Type] {
			closeAll(sinks)
			return nil, fmt.Errorf("metrics.sinks[%d]: sink %q listed twice", i, c.Type)
		}
		seen[c.Type] = true
		s, err := create(i, c)
		if err != nil {
			closeAll(sinks)
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return NewMultiSink(sinks...), nil
}

func create(i int, c factory.ModuleConfig) (MetricsSink, error) {
	s, err := sinkRegistry.Create(c)
	if err != nil {
		return nil, fmt.Errorf("metrics.sinks[%d]: %w", i, err)
	}
	return s, nil
}

func closeAll(sinks []MetricsSink) {
	for _, s := range sinks {
		if c, ok := s.(Closer); ok {
			c.Close()
		}
	}
}
