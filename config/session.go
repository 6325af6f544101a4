package config

import (
	"fmt"
	"time"
)

// SessionConfig tunes the per-request session preconditions.
type SessionConfig struct {
	// LeadSeconds refreshes the access token when it expires sooner.
	LeadSeconds int `json:"lead_seconds"`
	// DefaultUser is used when a request names no user.
	DefaultUser string `json:"default_user"`
	// Users maps user keys to vehicle ids. Unknown keys use the vehicle
	// authorized at startup.
	Users map[string]string `json:"users"`
}

// SetDefaults applies sane defaults.
func (c *SessionConfig) SetDefaults() {
	if c.LeadSeconds == 0 {
		c.LeadSeconds = 60
	}
	if c.DefaultUser == "" {
		c.DefaultUser = "arduino-iot"
	}
}

// Validate checks the lead time.
func (c SessionConfig) Validate() error {
	if c.LeadSeconds < 0 {
		return fmt.Errorf("session.lead_seconds must not be negative")
	}
	return nil
}

// Lead returns the refresh lead time.
func (c SessionConfig) Lead() time.Duration {
	return time.Duration(c.LeadSeconds) * time.Second
}
