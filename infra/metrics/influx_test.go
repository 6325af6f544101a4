package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/lowbac/core/command"
	"github.com/kilianp07/lowbac/core/events"
	coremetrics "github.com/kilianp07/lowbac/core/metrics"
	"github.com/kilianp07/lowbac/core/model"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSinkRecordCommandOutcome(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	ev := events.OutcomeEvent{
		DispatchID: "d1",
		VehicleID:  "veh1",
		Trigger:    "doorLocksOpened",
		Intent:     command.Unlock,
		Outcome:    command.Outcome{Kind: command.OtherStatus, Code: "FAILED", CommandID: "c1"},
		Latency:    1500 * time.Millisecond,
		Time:       now,
	}
	require.NoError(t, sink.RecordCommandOutcome(ev))

	p := write.NewPointWithMeasurement("command_outcome").
		AddTag("intent", "unlock").
		AddTag("outcome", "other_status").
		AddTag("vehicle_id", "veh1").
		AddTag("dispatch_id", "d1").
		AddTag("trigger", "doorLocksOpened").
		AddField("latency_ms", 1500.0).
		AddField("detail", "FAILED").
		AddField("command_id", "c1").
		SetTime(now)
	require.Len(t, rec.bodies, 1)
	assert.Equal(t, line(p), rec.bodies[0])
}

func TestInfluxSinkRecordSignalAndFailure(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "t", Org: "o", Bucket: "b"})
	defer sink.Close()

	now := time.Now()
	require.NoError(t, sink.RecordSignal(events.SignalEvent{
		DispatchID: "d2",
		Source:     "thing-1",
		Signal:     model.Signal{Name: "doorLocks", Value: false},
		Time:       now,
	}))
	require.NoError(t, sink.RecordSessionFailure(events.SessionFailureEvent{
		DispatchID: "d2",
		UserKey:    "arduino-iot",
		Op:         "refresh",
		Err:        errors.New("token expired"),
		Time:       now,
	}))

	sig := write.NewPointWithMeasurement("signal_received").
		AddTag("signal", "doorLocks").
		AddTag("source", "thing-1").
		AddTag("dispatch_id", "d2").
		AddField("value_bool", false).
		SetTime(now)
	fail := write.NewPointWithMeasurement("session_failure").
		AddTag("op", "refresh").
		AddTag("user", "arduino-iot").
		AddTag("dispatch_id", "d2").
		AddField("error", "token expired").
		SetTime(now)
	require.Len(t, rec.bodies, 2)
	assert.Equal(t, line(sig), rec.bodies[0])
	assert.Equal(t, line(fail), rec.bodies[1])
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	assert.IsType(t, coremetrics.NopSink{}, sink)
	assert.True(t, called, "health endpoint not called")
}

func TestSignalFieldKeepsOneTypePerField(t *testing.T) {
	cases := []struct {
		in    any
		field string
		value any
	}{
		{false, "value_bool", false},
		{21.5, "value_num", 21.5},
		{float32(1.5), "value_num", 1.5},
		{3, "value_num", 3.0},
		{"on", "value_str", "on"},
		{nil, "value_str", ""},
		{[]int{1, 2}, "value_str", "[1 2]"},
	}
	for _, tc := range cases {
		field, value := signalField(tc.in)
		assert.Equal(t, tc.field, field, "%v", tc.in)
		assert.Equal(t, tc.value, value, "%v", tc.in)
	}
}

func TestInfluxSinkMixedSignalTypes(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "t", Org: "o", Bucket: "b"})
	defer sink.Close()

	now := time.Now()
	for _, sig := range []model.Signal{{Name: "doorLocks", Value: false}, {Name: "temperature", Value: 21.5}} {
		require.NoError(t, sink.RecordSignal(events.SignalEvent{DispatchID: "d3", Source: "thing-1", Signal: sig, Time: now}))
	}
	require.Len(t, rec.bodies, 2)
	assert.Contains(t, rec.bodies[0], "value_bool=false")
	assert.Contains(t, rec.bodies[1], "value_num=21.5")
}
