package model

import (
	"fmt"
	"time"
)

// Signal is a single named value change reported by a thing.
// Value holds the decoded JSON value: bool, string, float64 or nil.
type Signal struct {
	Name      string
	Value     any
	UpdatedAt time.Time
}

// String renders the signal the way it is echoed in logs.
func (s Signal) String() string {
	return fmt.Sprintf("%s: %q @ %s", s.Name, fmt.Sprint(s.Value), s.UpdatedAt.Format(time.RFC3339Nano))
}

// Event is one decoded webhook notification carrying a batch of signal changes.
type Event struct {
	WebhookID     string
	SourceThingID string
	Signals       []Signal
}

// Source identifies the webhook and thing that produced the event.
func (e Event) Source() string {
	return e.WebhookID + "." + e.SourceThingID
}

// ValueEqual reports whether two decoded scalar values are equal. Only bool,
// string and numeric values can match; composite values never do.
func ValueEqual(a, b any) bool {
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := toFloat(b)
		return ok && av == bv
	case int:
		bv, ok := toFloat(b)
		return ok && float64(av) == bv
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
