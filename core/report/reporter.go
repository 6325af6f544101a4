// Package report renders command outcomes as the sentences read back to the
// caller and emits them to the configured sinks.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/lowbac/core/command"
	"github.com/kilianp07/lowbac/core/logger"
)

// Message returns the fixed sentence for outcome. It has no side effects.
func Message(outcome command.Outcome, intentLabel string) string {
	switch outcome.Kind {
	case command.Completed:
		return fmt.Sprintf("Sent %s command and got confirmation.", intentLabel)
	case command.Pending:
		return fmt.Sprintf("Sent %s command but confirmation is pending.", intentLabel)
	case command.OtherStatus:
		return fmt.Sprintf("Sent %s command but confirmation is %s.", intentLabel, outcome.Code)
	case command.ConfirmationMissing:
		return fmt.Sprintf("Sent %s command but confirmation failed.", intentLabel)
	case command.ConfirmationHTTPError:
		return fmt.Sprintf("Sent %s command but confirmation gave status code %d.", intentLabel, outcome.StatusCode)
	default:
		return fmt.Sprintf("Failed to %s.", intentLabel)
	}
}

// Status is a reported command result.
type Status struct {
	DispatchID string    `json:"dispatch_id,omitempty"`
	VehicleID  string    `json:"vehicle_id"`
	Intent     string    `json:"intent"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	CommandID  string    `json:"command_id,omitempty"`
	Message    string    `json:"message"`
	Time       time.Time `json:"time"`
}

// Notifier receives every reported status, e.g. to publish it on a broker.
type Notifier interface {
	Notify(ctx context.Context, st Status) error
}

// Reporter logs reported statuses and forwards them to notifiers.
type Reporter struct {
	log       logger.Logger
	notifiers []Notifier
}

// NewReporter creates a Reporter. Nil notifiers are ignored.
func NewReporter(log logger.Logger, notifiers ...Notifier) *Reporter {
	r := &Reporter{log: log}
	for _, n := range notifiers {
		if n != nil {
			r.notifiers = append(r.notifiers, n)
		}
	}
	return r
}

// Report renders outcome, emits it and returns the message text.
func (r *Reporter) Report(ctx context.Context, dispatchID, vehicleID string, intent command.Intent, outcome command.Outcome) string {
	msg := Message(outcome, intent.Label())
	st := Status{
		DispatchID: dispatchID,
		VehicleID:  vehicleID,
		Intent:     intent.String(),
		Outcome:    outcome.Kind.String(),
		Detail:     outcome.Detail(),
		CommandID:  outcome.CommandID,
		Message:    msg,
		Time:       time.Now().UTC(),
	}
	if outcome.Kind == command.Completed {
		r.log.Infof("%s", msg)
	} else {
		r.log.Warnf("%s", msg)
	}
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, st); err != nil {
			r.log.Errorf("notify %s: %v", st.Intent, err)
		}
	}
	return msg
}
