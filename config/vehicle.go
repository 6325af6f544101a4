package config

import (
	"errors"

	"github.com/kilianp07/lowbac/auth"
	"github.com/kilianp07/lowbac/infra/fordconnect"
)

// VehicleConfig locates the vehicle-command API and its OAuth provider.
type VehicleConfig struct {
	API   fordconnect.Config `json:"api"`
	OAuth auth.Conf          `json:"oauth"`
}

// Validate checks the settings needed to issue commands.
func (c VehicleConfig) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}
	if c.OAuth.ClientID == "" || c.OAuth.TokenURL == "" {
		return errors.New("vehicle.oauth requires client_id and token_url")
	}
	if c.OAuth.Code == "" && c.OAuth.RefreshToken == "" {
		return errors.New("vehicle.oauth needs an authorization code or a refresh token")
	}
	return nil
}
