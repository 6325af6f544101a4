package session

import (
	"sync/atomic"

	"github.com/kilianp07/lowbac/core/model"
)

// State holds the vehicle authorized during startup. It is shared by
// reference between the bootstrap and the request handlers.
type State struct {
	active atomic.Pointer[model.Vehicle]
}

// NewState returns an empty State.
func NewState() *State { return &State{} }

// SetActive records v as the active vehicle.
func (s *State) SetActive(v model.Vehicle) {
	s.active.Store(&v)
}

// Active returns the active vehicle, if one was authorized.
func (s *State) Active() (model.Vehicle, bool) {
	v := s.active.Load()
	if v == nil {
		return model.Vehicle{}, false
	}
	return *v, true
}
