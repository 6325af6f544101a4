package command

import (
	"net/http"
	"strconv"
)

// OutcomeKind classifies the result of one command run.
type OutcomeKind int

const (
	SubmissionFailed OutcomeKind = iota
	Completed
	Pending
	OtherStatus
	ConfirmationMissing
	ConfirmationHTTPError
)

func (k OutcomeKind) String() string {
	switch k {
	case SubmissionFailed:
		return "submission_failed"
	case Completed:
		return "completed"
	case Pending:
		return "pending"
	case OtherStatus:
		return "other_status"
	case ConfirmationMissing:
		return "confirmation_missing"
	case ConfirmationHTTPError:
		return "confirmation_http_error"
	default:
		return "unknown"
	}
}

// Outcome is the immutable result of running the engine for one intent.
// Code is set for OtherStatus, StatusCode for ConfirmationHTTPError.
type Outcome struct {
	Kind       OutcomeKind
	Code       string
	StatusCode int
	CommandID  string
}

// Detail returns the Code or StatusCode carried by the outcome, if any.
func (o Outcome) Detail() string {
	switch o.Kind {
	case OtherStatus:
		return o.Code
	case ConfirmationHTTPError:
		return strconv.Itoa(o.StatusCode)
	default:
		return ""
	}
}

// accepted reports whether a submission response meets every acceptance
// criterion and returns the command identifier.
func accepted(resp Response) (string, bool) {
	if resp.StatusCode != http.StatusAccepted || resp.Body == nil {
		return "", false
	}
	b := resp.Body
	if b.Status != StatusSuccess || b.CommandStatus != CommandCompleted || b.CommandID == "" {
		return "", false
	}
	return b.CommandID, true
}

// classify maps a confirmation response onto an Outcome.
func classify(commandID string, resp Response) Outcome {
	out := Outcome{CommandID: commandID}
	if resp.StatusCode != http.StatusOK {
		out.Kind = ConfirmationHTTPError
		out.StatusCode = resp.StatusCode
		return out
	}
	b := resp.Body
	switch {
	case b == nil:
		out.Kind = ConfirmationMissing
	case b.CommandStatus == CommandCompleted:
		out.Kind = Completed
	case b.CommandStatus == CommandPendingResponse:
		out.Kind = Pending
	case b.CommandStatus != "":
		out.Kind = OtherStatus
		out.Code = b.CommandStatus
	case b.Status != "":
		out.Kind = OtherStatus
		out.Code = b.Status
	default:
		out.Kind = ConfirmationMissing
	}
	return out
}
