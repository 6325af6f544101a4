package fordconnect

import (
	"errors"
	"net/url"
	"time"
)

// Default values applied by SetDefaults.
const (
	DefaultBaseURL    = "https://api.mps.ford.com/api/fordconnect/v1"
	DefaultAPIVersion = "2020-06-01"
	DefaultTimeout    = 30 * time.Second
)

// Config locates the vehicle-command API.
type Config struct {
	BaseURL        string `json:"base_url"`
	ApplicationID  string `json:"application_id"`
	APIVersion     string `json:"api_version"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = int(DefaultTimeout / time.Second)
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("vehicle.base_url must be an absolute URL")
	}
	if c.ApplicationID == "" {
		return errors.New("vehicle.application_id is required")
	}
	return nil
}

// Timeout returns the per-request transport timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
