package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/lowbac/core/metrics"
	"github.com/kilianp07/lowbac/core/trigger"
	"github.com/kilianp07/lowbac/infra/mqtt"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. LOWBAC_HTTP__AWAIT_DISPATCH=true.
const EnvPrefix = "LOWBAC_"

// Environment variables kept from earlier deployments.
const (
	EnvHTTPPort     = "LOWBAC_HTTPPORT"
	EnvAuthCode     = "FORD_CODE"
	EnvRefreshToken = "FORD_REFRESH"
)

type Config struct {
	HTTP     HTTPConfig           `json:"http"`
	MQTT     mqtt.Config          `json:"mqtt"`
	Vehicle  VehicleConfig        `json:"vehicle"`
	Session  SessionConfig        `json:"session"`
	Triggers []trigger.RuleConfig `json:"triggers"`
	Metrics  metrics.Config       `json:"metrics"`
	Logging  LoggingConfig        `json:"logging"`
	Sentry   SentryConfig         `json:"sentry"`
}

// Load reads the YAML or JSON file at path, applies environment overrides,
// defaults and validation. An empty path loads from the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.applyLegacyEnv(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyLegacyEnv() error {
	if v := os.Getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%s: invalid port %q", EnvHTTPPort, v)
		}
		c.HTTP.Address = ":" + strconv.Itoa(port)
	}
	if v := os.Getenv(EnvAuthCode); v != "" {
		c.Vehicle.OAuth.Code = v
	}
	if v := os.Getenv(EnvRefreshToken); v != "" {
		c.Vehicle.OAuth.RefreshToken = v
	}
	return nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.HTTP.SetDefaults()
	c.MQTT.SetDefaults()
	c.Vehicle.API.SetDefaults()
	c.Session.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section that does not need the vehicle API. Use
// Vehicle.Validate before talking to it.
func (c Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if _, err := trigger.ParseRules(c.Triggers); err != nil {
		return err
	}
	return c.Logging.Validate()
}
