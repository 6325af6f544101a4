package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/lowbac/core/events"
	coremetrics "github.com/kilianp07/lowbac/core/metrics"
	"github.com/kilianp07/lowbac/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving relay points.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes relay activity to an InfluxDB instance.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) RecordCommandOutcome(ev events.OutcomeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("command_outcome").
		AddTag("intent", ev.Intent.String()).
		AddTag("outcome", ev.Outcome.Kind.String()).
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("dispatch_id", ev.DispatchID)
	if ev.Trigger != "" {
		p.AddTag("trigger", ev.Trigger)
	}
	p.AddField("latency_ms", round3(ev.Latency.Seconds()*1000))
	if d := ev.Outcome.Detail(); d != "" {
		p.AddField("detail", d)
	}
	if ev.Outcome.CommandID != "" {
		p.AddField("command_id", ev.Outcome.CommandID)
	}
	p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordSignal(ev events.SignalEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("signal_received").
		AddTag("signal", ev.Signal.Name).
		AddTag("source", ev.Source).
		AddTag("dispatch_id", ev.DispatchID).
		AddField(signalField(ev.Signal.Value)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordSessionFailure(ev events.SessionFailureEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg := ""
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	p := write.NewPointWithMeasurement("session_failure").
		AddTag("op", ev.Op).
		AddTag("user", ev.UserKey).
		AddTag("dispatch_id", ev.DispatchID).
		AddField("error", msg).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// signalField picks a field per value type. A field keeps its type across a
// measurement, so booleans, numbers and text never share one.
func signalField(v any) (string, any) {
	switch t := v.(type) {
	case bool:
		return "value_bool", t
	case float64:
		return "value_num", t
	case float32:
		return "value_num", float64(t)
	case int:
		return "value_num", float64(t)
	case int64:
		return "value_num", float64(t)
	case string:
		return "value_str", t
	case nil:
		return "value_str", ""
	default:
		return "value_str", fmt.Sprint(t)
	}
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
