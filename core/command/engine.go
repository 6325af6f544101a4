// Package command implements the two-phase do-then-check protocol used against
// the vehicle-command API.
//
// A command is submitted, and when the submission is accepted the engine polls
// its status exactly once. Every accepted command yields an Outcome, including
// when the confirmation call fails or returns nothing usable.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/kilianp07/lowbac/core/logger"
)

// Engine runs intents against a VehicleAPI.
type Engine struct {
	api     VehicleAPI
	log     logger.Logger
	observe func(Transition)
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithTransitionObserver registers fn to be called on every phase change.
func WithTransitionObserver(fn func(Transition)) EngineOption {
	return func(e *Engine) { e.observe = fn }
}

// NewEngine creates an Engine bound to api.
func NewEngine(api VehicleAPI, log logger.Logger, opts ...EngineOption) (*Engine, error) {
	if api == nil {
		return nil, fmt.Errorf("vehicle api is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	e := &Engine{api: api, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run submits intent for vehicleID and, once accepted, polls for confirmation.
// An error is returned only when the submission call itself fails; in that
// case no command is known to exist and nothing is classified.
//
// The confirmation poll ignores cancellation of ctx: an accepted command is
// always checked once. Time limits belong to the API transport.
func (e *Engine) Run(ctx context.Context, intent Intent, vehicleID string) (Outcome, error) {
	log := e.log.With(map[string]any{"intent": intent.String(), "vehicle_id": vehicleID})
	phases := newPhaseMachine(intent, e.observe)
	start := time.Now()

	resp, err := e.api.Submit(ctx, intent, vehicleID)
	if err != nil {
		return Outcome{}, fmt.Errorf("submit %s: %w", intent, err)
	}
	commandID, ok := accepted(resp)
	if !ok {
		log.Errorf("submission rejected: status=%d body=%s", resp.StatusCode, resp.Raw)
		e.fire(ctx, phases, log, eventReject)
		return Outcome{Kind: SubmissionFailed}, nil
	}
	e.fire(ctx, phases, log, eventAccept)
	log.Debugf("submission accepted as %s", commandID)

	e.fire(ctx, phases, log, eventConfirm)
	check, err := e.api.Poll(context.WithoutCancel(ctx), intent, vehicleID, commandID)
	var out Outcome
	if err != nil {
		log.Errorf("confirmation of %s failed: %v", commandID, err)
		out = Outcome{Kind: ConfirmationMissing, CommandID: commandID}
	} else {
		out = classify(commandID, check)
		if out.Kind != Completed {
			log.Warnf("confirmation of %s is %s: status=%d body=%s", commandID, out.Kind, check.StatusCode, check.Raw)
		}
	}
	e.fire(ctx, phases, log, eventClassify)
	log.Debugw("command finished", map[string]any{
		"command_id":  commandID,
		"outcome":     out.Kind.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return out, nil
}

func (e *Engine) fire(ctx context.Context, phases *fsm.FSM, log logger.Logger, event string) {
	if err := phases.Event(context.WithoutCancel(ctx), event); err != nil {
		log.Errorf("phase %s -> %s: %v", phases.Current(), event, err)
	}
}
