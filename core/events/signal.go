package events

import (
	"time"

	"github.com/kilianp07/lowbac/core/model"
)

// SignalEvent is published for every signal of every inbound event.
type SignalEvent struct {
	DispatchID string
	Source     string
	Signal     model.Signal
	Time       time.Time
}
