package session

import (
	"context"
	"net/http"
	"time"

	"github.com/kilianp07/lowbac/core/logger"
	"github.com/kilianp07/lowbac/core/model"
)

// Authorizer obtains and refreshes the access token.
type Authorizer interface {
	TokenRefresher
	Exchange(ctx context.Context, code string) error
}

// VehicleListing is the vehicle-command API answer to a vehicle listing.
type VehicleListing struct {
	StatusCode int
	Vehicles   []model.Vehicle
	Raw        []byte
}

// VehicleLister lists the vehicles visible to the current token.
type VehicleLister interface {
	ListVehicles(ctx context.Context) (VehicleListing, error)
}

// Bootstrap authorizes the process and selects the active vehicle.
type Bootstrap struct {
	Auth   Authorizer
	Lister VehicleLister
	State  *State
	// Code is an optional authorization code exchanged before refreshing.
	Code string
	Lead time.Duration
	Log  logger.Logger
}

// Run performs the startup sequence. Every failure is a *FatalError.
func (b Bootstrap) Run(ctx context.Context) (model.Vehicle, error) {
	lead := b.Lead
	if lead <= 0 {
		lead = DefaultLead
	}
	if b.Code != "" {
		if err := b.Auth.Exchange(ctx, b.Code); err != nil {
			b.Log.Warnf("authorization code rejected, falling back to refresh token: %v", err)
		}
	}
	if err := b.Auth.RefreshIfExpiring(ctx, lead); err != nil {
		return model.Vehicle{}, &FatalError{Reason: ErrTokenRefresh, Err: err}
	}

	listing, err := b.Lister.ListVehicles(ctx)
	if err != nil {
		return model.Vehicle{}, &FatalError{Reason: ErrVehicleAPIUnavailable, Err: err}
	}
	switch listing.StatusCode {
	case http.StatusOK:
		v, ok := model.FirstAuthorized(listing.Vehicles)
		if !ok {
			b.Log.Errorf("vehicle listing without authorized vehicle: %s", listing.Raw)
			return model.Vehicle{}, &FatalError{Reason: ErrNoAuthorizedVehicle}
		}
		b.State.SetActive(v)
		b.Log.Infof("commands will use vehicle %s (%s %s)", v.ID, v.Make, v.ModelName)
		return v, nil
	case http.StatusInternalServerError:
		b.Log.Errorf("vehicle listing returned 500, a new authorization code or refresh token is needed: %s", listing.Raw)
		return model.Vehicle{}, &FatalError{Reason: ErrVehicleAPIUnavailable}
	case http.StatusUnauthorized:
		return model.Vehicle{}, &FatalError{Reason: ErrAccessDenied}
	default:
		b.Log.Errorf("unexpected vehicle listing status %d: %s", listing.StatusCode, listing.Raw)
		return model.Vehicle{}, &FatalError{Reason: ErrUnexpectedVehicleResponse}
	}
}
