package session

import (
	"errors"
	"fmt"
)

// Reasons carried by FatalError.
var (
	ErrNoAuthorizedVehicle       = errors.New("no authorized vehicle")
	ErrVehicleAPIUnavailable     = errors.New("vehicle api unavailable")
	ErrAccessDenied              = errors.New("access denied")
	ErrUnexpectedVehicleResponse = errors.New("unexpected vehicle listing response")
	ErrTokenRefresh              = errors.New("token refresh failed")
)

// Error is a per-request session failure: the token could not be refreshed or
// the vehicle could not be resolved. The request is aborted but the process
// keeps serving.
type Error struct {
	Op      string
	UserKey string
	Err     error
}

func (e *Error) Error() string {
	if e.UserKey != "" {
		return fmt.Sprintf("session %s for %q: %v", e.Op, e.UserKey, e.Err)
	}
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FatalError is a startup failure after which the process must not accept
// triggered commands.
type FatalError struct {
	Reason error
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal session error: %v: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal session error: %v", e.Reason)
}

func (e *FatalError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// Code is a stable identifier of the reason, suitable for alert tags.
func (e *FatalError) Code() string {
	switch {
	case errors.Is(e.Reason, ErrNoAuthorizedVehicle):
		return "no_authorized_vehicle"
	case errors.Is(e.Reason, ErrVehicleAPIUnavailable):
		return "vehicle_api_unavailable"
	case errors.Is(e.Reason, ErrAccessDenied):
		return "access_denied"
	case errors.Is(e.Reason, ErrTokenRefresh):
		return "token_refresh"
	default:
		return "unexpected_response"
	}
}
