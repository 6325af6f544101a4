package decoder

import "fmt"

// DecodeError reports a token of the encoded payload that is not a valid
// hexadecimal code point.
type DecodeError struct {
	Index int
	Token string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode token %d %q: %v", e.Index, e.Token, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MalformedEventError reports a decoded payload that does not describe an event.
type MalformedEventError struct {
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed event: %s: %v", e.Reason, e.Err)
	}
	return "malformed event: " + e.Reason
}

func (e *MalformedEventError) Unwrap() error { return e.Err }
