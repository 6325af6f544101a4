// Package metrics defines the sinks that record relay activity.
//
// Every sink records command outcomes. A sink may additionally implement
// SignalRecorder or SessionFailureRecorder; callers check for these with
// a type assertion. Concrete sinks live in infra/metrics and register
// themselves with RegisterMetricsSink from an init function.
//
//	metrics:
//	  sinks:
//	    - type: prometheus
//	    - type: influx
//	      conf:
//	        url: http://localhost:8086
package metrics
