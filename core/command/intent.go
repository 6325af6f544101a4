package command

import (
	"fmt"
	"strings"
)

// Intent is a vehicle action the relay can perform.
type Intent int

const (
	Unlock Intent = iota
	StartEngine
	RefreshStatus
)

// Intents lists every supported intent.
var Intents = []Intent{Unlock, StartEngine, RefreshStatus}

// String returns the configuration name of the intent.
func (i Intent) String() string {
	switch i {
	case Unlock:
		return "unlock"
	case StartEngine:
		return "start"
	case RefreshStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Label is the phrase used in reported messages, e.g. "unlock vehicle".
func (i Intent) Label() string {
	switch i {
	case Unlock:
		return "unlock vehicle"
	case StartEngine:
		return "start vehicle"
	case RefreshStatus:
		return "refresh vehicle status"
	default:
		return "unknown command"
	}
}

// ParseIntent converts a configuration name into an Intent.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unlock":
		return Unlock, nil
	case "start", "start_engine", "startengine":
		return StartEngine, nil
	case "status", "refresh_status", "refreshstatus":
		return RefreshStatus, nil
	default:
		return 0, fmt.Errorf("unknown intent %q", s)
	}
}
