// Package relay turns inbound events into vehicle commands.
//
// For every event the relay detects fired triggers, prepares the session once,
// runs the fired intents one after another through the command engine and
// reports each outcome. Requests are handled either synchronously with
// HandleEvent or in the background with Dispatch.
package relay

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/lowbac/core/command"
	"github.com/kilianp07/lowbac/core/events"
	"github.com/kilianp07/lowbac/core/logger"
	"github.com/kilianp07/lowbac/core/model"
	coremon "github.com/kilianp07/lowbac/core/monitoring"
	"github.com/kilianp07/lowbac/core/session"
	"github.com/kilianp07/lowbac/core/trigger"
	"github.com/kilianp07/lowbac/internal/eventbus"
)

// ErrClosed is returned by Dispatch once the relay is shutting down.
var ErrClosed = errors.New("relay closed")

// TriggerFinder detects fired triggers.
type TriggerFinder interface {
	FindTriggers(ev model.Event) []trigger.Rule
}

// Preparer refreshes the session and resolves the target vehicle.
type Preparer interface {
	Prepare(ctx context.Context, userKey string) (string, error)
}

// Runner runs one intent through the command engine.
type Runner interface {
	Run(ctx context.Context, intent command.Intent, vehicleID string) (command.Outcome, error)
}

// Reporter renders and emits an outcome.
type Reporter interface {
	Report(ctx context.Context, dispatchID, vehicleID string, intent command.Intent, outcome command.Outcome) string
}

// Deps are the collaborators of a Relay. Bus is optional.
type Deps struct {
	Triggers TriggerFinder
	Session  Preparer
	Engine   Runner
	Reporter Reporter
	Bus      eventbus.EventBus
	Log      logger.Logger
}

// Dispatched is the reported result of one fired trigger.
type Dispatched struct {
	Trigger string
	Intent  command.Intent
	Outcome command.Outcome
	Message string
}

// Result summarizes the handling of one event.
type Result struct {
	DispatchID string
	VehicleID  string
	Commands   []Dispatched
}

// Relay coordinates the handling of inbound events.
type Relay struct {
	deps Deps
	log  logger.Logger
	now  func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Relay.
func New(deps Deps) (*Relay, error) {
	if deps.Triggers == nil || deps.Session == nil || deps.Engine == nil || deps.Reporter == nil {
		return nil, fmt.Errorf("triggers, session, engine and reporter are required")
	}
	if deps.Log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Relay{deps: deps, log: deps.Log, now: time.Now}, nil
}

// HandleEvent processes ev synchronously. The returned error is a
// *session.Error when the request was aborted by the session preconditions,
// or an unclassified failure of the vehicle API transport. Classified
// command outcomes are never errors.
func (r *Relay) HandleEvent(ctx context.Context, ev model.Event, userKey string) (Result, error) {
	return r.handle(ctx, uuid.NewString(), ev, userKey)
}

// Dispatch processes ev in the background and returns its dispatch id. The
// work is detached from ctx cancellation and tracked until Wait returns.
func (r *Relay) Dispatch(ctx context.Context, ev model.Event, userKey string) (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	id := uuid.NewString()
	bg := context.WithoutCancel(ctx)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				err := coremon.CapturePanic(rec, debug.Stack(), map[string]string{"module": "relay", "dispatch_id": id})
				r.log.Errorf("dispatch %s panicked: %v", id, err)
			}
		}()
		if _, err := r.handle(bg, id, ev, userKey); err != nil {
			r.log.Errorf("dispatch %s failed: %v", id, err)
		}
	}()
	return id, nil
}

// Wait blocks until background dispatches finish or ctx is done. No new
// dispatch is accepted afterwards.
func (r *Relay) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Command prepares the session for userKey and runs a single intent, as if
// it had been triggered by an event.
func (r *Relay) Command(ctx context.Context, intent command.Intent, userKey string) (Dispatched, error) {
	id := uuid.NewString()
	vehicleID, err := r.prepare(ctx, id, userKey)
	if err != nil {
		return Dispatched{}, err
	}
	return r.run(ctx, id, vehicleID, trigger.Rule{Trigger: "manual", Intent: intent})
}

func (r *Relay) handle(ctx context.Context, id string, ev model.Event, userKey string) (Result, error) {
	res := Result{DispatchID: id}
	log := r.log.With(map[string]any{"dispatch_id": id})
	now := r.now()
	for _, sig := range ev.Signals {
		r.publish(events.SignalEvent{DispatchID: id, Source: ev.Source(), Signal: sig, Time: now})
	}

	fired := r.deps.Triggers.FindTriggers(ev)
	if len(fired) == 0 {
		log.Debugf("no trigger fired by %d signals", len(ev.Signals))
		return res, nil
	}

	vehicleID, err := r.prepare(ctx, id, userKey)
	if err != nil {
		return res, err
	}
	res.VehicleID = vehicleID

	for _, rule := range fired {
		d, err := r.run(ctx, id, vehicleID, rule)
		if err != nil {
			return res, err
		}
		res.Commands = append(res.Commands, d)
	}
	return res, nil
}

func (r *Relay) prepare(ctx context.Context, id, userKey string) (string, error) {
	vehicleID, err := r.deps.Session.Prepare(ctx, userKey)
	if err == nil {
		return vehicleID, nil
	}
	var se *session.Error
	op := "prepare"
	if errors.As(err, &se) {
		op = se.Op
	}
	r.log.Errorf("dispatch %s aborted: %v", id, err)
	r.publish(events.SessionFailureEvent{DispatchID: id, UserKey: userKey, Op: op, Err: err, Time: r.now()})
	return "", err
}

func (r *Relay) run(ctx context.Context, id, vehicleID string, rule trigger.Rule) (Dispatched, error) {
	start := r.now()
	out, err := r.deps.Engine.Run(ctx, rule.Intent, vehicleID)
	if err != nil {
		coremon.CaptureException(err, map[string]string{
			"module":      "relay",
			"intent":      rule.Intent.String(),
			"vehicle_id":  vehicleID,
			"dispatch_id": id,
		})
		return Dispatched{}, fmt.Errorf("%s: %w", rule.Trigger, err)
	}
	msg := r.deps.Reporter.Report(ctx, id, vehicleID, rule.Intent, out)
	r.publish(events.OutcomeEvent{
		DispatchID: id,
		VehicleID:  vehicleID,
		Trigger:    rule.Trigger,
		Intent:     rule.Intent,
		Outcome:    out,
		Latency:    r.now().Sub(start),
		Time:       r.now(),
	})
	return Dispatched{Trigger: rule.Trigger, Intent: rule.Intent, Outcome: out, Message: msg}, nil
}

func (r *Relay) publish(ev eventbus.Event) {
	if r.deps.Bus != nil {
		r.deps.Bus.Publish(ev)
	}
}
