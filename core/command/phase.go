package command

import (
	"context"

	"github.com/looplab/fsm"
)

// Phases of one command run.
const (
	PhaseSubmitting       = "submitting"
	PhaseSubmitted        = "submitted"
	PhaseConfirming       = "confirming"
	PhaseDone             = "done"
	PhaseSubmissionFailed = "submission_failed"
)

const (
	eventAccept   = "accept"
	eventReject   = "reject"
	eventConfirm  = "confirm"
	eventClassify = "classify"
)

// Transition describes a phase change of a command run.
type Transition struct {
	Intent Intent
	From   string
	To     string
}

func newPhaseMachine(intent Intent, observe func(Transition)) *fsm.FSM {
	events := fsm.Events{
		{Name: eventAccept, Src: []string{PhaseSubmitting}, Dst: PhaseSubmitted},
		{Name: eventReject, Src: []string{PhaseSubmitting}, Dst: PhaseSubmissionFailed},
		{Name: eventConfirm, Src: []string{PhaseSubmitted}, Dst: PhaseConfirming},
		{Name: eventClassify, Src: []string{PhaseConfirming}, Dst: PhaseDone},
	}
	callbacks := fsm.Callbacks{}
	if observe != nil {
		callbacks["enter_state"] = func(_ context.Context, e *fsm.Event) {
			observe(Transition{Intent: intent, From: e.Src, To: e.Dst})
		}
	}
	return fsm.NewFSM(PhaseSubmitting, events, callbacks)
}
