package session

import (
	"context"
)

// Resolver maps a user key onto the vehicle commands are issued to.
type Resolver interface {
	Resolve(ctx context.Context, userKey string) (vehicleID string, err error)
}

// SingleVehicleResolver ignores the user key and returns the vehicle
// authorized at startup.
type SingleVehicleResolver struct {
	State *State
}

func (r SingleVehicleResolver) Resolve(_ context.Context, _ string) (string, error) {
	if r.State == nil {
		return "", ErrNoAuthorizedVehicle
	}
	v, ok := r.State.Active()
	if !ok {
		return "", ErrNoAuthorizedVehicle
	}
	return v.ID, nil
}

// StaticResolver looks the user key up in a fixed table and defers to
// Fallback for unknown keys.
type StaticResolver struct {
	Users    map[string]string
	Fallback Resolver
}

func (r StaticResolver) Resolve(ctx context.Context, userKey string) (string, error) {
	if id, ok := r.Users[userKey]; ok && id != "" {
		return id, nil
	}
	if r.Fallback == nil {
		return "", ErrNoAuthorizedVehicle
	}
	return r.Fallback.Resolve(ctx, userKey)
}

// NewResolver returns a StaticResolver over users when the table is not
// empty, and the single vehicle resolver otherwise.
func NewResolver(state *State, users map[string]string) Resolver {
	single := SingleVehicleResolver{State: state}
	if len(users) == 0 {
		return single
	}
	return StaticResolver{Users: users, Fallback: single}
}
