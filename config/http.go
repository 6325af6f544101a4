package config

import (
	"fmt"
	"net"
)

// HTTPConfig defines the webhook listener.
type HTTPConfig struct {
	Address string `json:"address"`
	// AwaitDispatch delays the acknowledgement until every command of the
	// request was classified.
	AwaitDispatch bool  `json:"await_dispatch"`
	MaxBodyBytes  int64 `json:"max_body_bytes"`
	// Metrics exposes /metrics on the webhook listener.
	Metrics bool `json:"metrics"`
	// MetricsAddress serves /metrics on a dedicated listener when set.
	MetricsAddress string `json:"metrics_address"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
}

// Validate checks the listener addresses.
func (c HTTPConfig) Validate() error {
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("http.address: %w", err)
	}
	if c.MetricsAddress != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddress); err != nil {
			return fmt.Errorf("http.metrics_address: %w", err)
		}
		if c.MetricsAddress == c.Address {
			return fmt.Errorf("http.metrics_address must differ from http.address, use http.metrics instead")
		}
	}
	return nil
}
