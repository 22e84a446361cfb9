// Package config provides configuration management for CILPEA VPN.
// It handles loading, saving, and managing application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yllada/cilpea-vpn/common"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CILPEA_"

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// AutoReconnect starts the session with auto-reconnect enabled.
	AutoReconnect bool `yaml:"auto_reconnect"`
	// ReconnectCountdown is the countdown length in seconds (1-60).
	ReconnectCountdown int `yaml:"reconnect_countdown"`
	// GracePeriod is how many seconds a failed connect stays in Error
	// before reverting to Disconnected.
	GracePeriod int `yaml:"grace_period"`
	// ShowNotifications enables desktop notifications for connection events.
	ShowNotifications bool `yaml:"show_notifications"`

	Gateway GatewayConfig `yaml:"gateway"`
	Health  HealthConfig  `yaml:"health"`
	API     APIConfig     `yaml:"api"`
	Log     LogConfig     `yaml:"log"`

	path string
}

// GatewayConfig configures the simulated tunnel endpoint.
type GatewayConfig struct {
	Profile             string  `yaml:"profile"`
	Address             string  `yaml:"address"`
	Protocol            string  `yaml:"protocol"`
	Cipher              string  `yaml:"cipher"`
	ConnectLatencyMS    int     `yaml:"connect_latency_ms"`
	ConnectJitterMS     int     `yaml:"connect_jitter_ms"`
	DisconnectLatencyMS int     `yaml:"disconnect_latency_ms"`
	FailureRate         float64 `yaml:"failure_rate"`
	ProbeLossRate       float64 `yaml:"probe_loss_rate"`
	RequireCredentials  bool    `yaml:"require_credentials"`
	TimeoutSeconds      int     `yaml:"timeout_seconds"`
}

// HealthConfig configures tunnel health probing.
type HealthConfig struct {
	Enabled          bool `yaml:"enabled"`
	IntervalSeconds  int  `yaml:"interval_seconds"`
	FailureThreshold int  `yaml:"failure_threshold"`
}

// APIConfig configures the local HTTP status API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	// RateLimit is the sustained command rate per second.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// File enables logging to ~/.config/cilpea-vpn/logs.
	File bool `yaml:"file"`
}

// DefaultConfig returns the default configuration.
// These are sensible defaults for most users.
func DefaultConfig() *Config {
	return &Config{
		AutoReconnect:      false,
		ReconnectCountdown: common.ReconnectCountdown,
		GracePeriod:        int(common.GracePeriod / time.Second),
		ShowNotifications:  true,
		Gateway: GatewayConfig{
			Profile:             common.DefaultProfile,
			Address:             common.DefaultTunnelAddress,
			Protocol:            common.DefaultProtocol,
			Cipher:              common.DefaultCipher,
			ConnectLatencyMS:    1500,
			ConnectJitterMS:     500,
			DisconnectLatencyMS: 1500,
			TimeoutSeconds:      int(common.ConnectionTimeout / time.Second),
		},
		Health: HealthConfig{
			Enabled:          false,
			IntervalSeconds:  10,
			FailureThreshold: 3,
		},
		API: APIConfig{
			Enabled:   false,
			Listen:    common.DefaultAPIListen,
			RateLimit: 5,
			Burst:     10,
		},
		Log: LogConfig{
			Level: "info",
			File:  true,
		},
	}
}

// DefaultPath returns ~/.config/cilpea-vpn/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", common.ConfigDirName, common.ConfigFileName), nil
}

// Load loads the configuration from path, or from DefaultPath when path is
// empty. If the file doesn't exist, it creates one with default values.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}
	cfg.validate()
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	// If it doesn't exist, return default configuration
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.path = path
		if err := cfg.Save(); err != nil {
			common.LogWarn("Could not write default configuration: %v", err)
		}
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening configuration: %v", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	// Start from defaults so omitted keys keep sensible values.
	config := DefaultConfig()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("%w: error parsing configuration: %v", common.ErrConfigLoad, err)
	}
	config.path = path

	return config, nil
}

// validate replaces out-of-range values with defaults.
func (c *Config) validate() {
	def := DefaultConfig()

	if c.ReconnectCountdown < 1 || c.ReconnectCountdown > 60 {
		c.ReconnectCountdown = def.ReconnectCountdown
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = def.GracePeriod
	}

	g := &c.Gateway
	if g.Profile == "" {
		g.Profile = def.Gateway.Profile
	}
	if g.Address == "" {
		g.Address = def.Gateway.Address
	}
	if g.Protocol == "" {
		g.Protocol = def.Gateway.Protocol
	}
	if g.Cipher == "" {
		g.Cipher = def.Gateway.Cipher
	}
	if g.ConnectLatencyMS < 0 {
		g.ConnectLatencyMS = def.Gateway.ConnectLatencyMS
	}
	if g.ConnectJitterMS < 0 {
		g.ConnectJitterMS = def.Gateway.ConnectJitterMS
	}
	if g.DisconnectLatencyMS < 0 {
		g.DisconnectLatencyMS = def.Gateway.DisconnectLatencyMS
	}
	g.FailureRate = clampRate(g.FailureRate)
	g.ProbeLossRate = clampRate(g.ProbeLossRate)
	if g.TimeoutSeconds <= 0 {
		g.TimeoutSeconds = def.Gateway.TimeoutSeconds
	}

	if c.Health.IntervalSeconds <= 0 {
		c.Health.IntervalSeconds = def.Health.IntervalSeconds
	}
	if c.Health.FailureThreshold <= 0 {
		c.Health.FailureThreshold = def.Health.FailureThreshold
	}

	if c.API.Listen == "" {
		c.API.Listen = def.API.Listen
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = def.API.RateLimit
	}
	if c.API.Burst <= 0 {
		c.API.Burst = def.API.Burst
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		c.Log.Level = def.Log.Level // Fallback to default
	}
}

func clampRate(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// applyEnv overlays CILPEA_* variables read through getenv.
func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []string
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := getenv(EnvPrefix + key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}

	boolean("AUTO_RECONNECT", &c.AutoReconnect)
	integer("RECONNECT_COUNTDOWN", &c.ReconnectCountdown)
	integer("GRACE_PERIOD", &c.GracePeriod)
	boolean("SHOW_NOTIFICATIONS", &c.ShowNotifications)
	str("GATEWAY_PROFILE", &c.Gateway.Profile)
	float("GATEWAY_FAILURE_RATE", &c.Gateway.FailureRate)
	boolean("GATEWAY_REQUIRE_CREDENTIALS", &c.Gateway.RequireCredentials)
	boolean("HEALTH_ENABLED", &c.Health.Enabled)
	boolean("API_ENABLED", &c.API.Enabled)
	str("API_LISTEN", &c.API.Listen)
	str("LOG_LEVEL", &c.Log.Level)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Save saves the configuration to the file it was loaded from, or to
// DefaultPath.
func (c *Config) Save() error {
	configPath := c.path
	if configPath == "" {
		var err error
		if configPath, err = DefaultPath(); err != nil {
			return err
		}
		c.path = configPath
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("%w: error creating config directory: %v", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: error serializing configuration: %v", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("%w: error saving configuration: %v", common.ErrConfigSave, err)
	}

	return nil
}

// GracePeriodDuration returns GracePeriod as a time.Duration.
func (c *Config) GracePeriodDuration() time.Duration {
	return time.Duration(c.GracePeriod) * time.Second
}

// Timeout returns the gateway call bound.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Interval returns the probe interval.
func (h HealthConfig) Interval() time.Duration {
	return time.Duration(h.IntervalSeconds) * time.Second
}
