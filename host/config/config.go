// Package config loads the host tool configuration
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"greendot/core"
)

// Config is the host tool configuration file
type Config struct {
	Profile string        `yaml:"profile"`
	Monitor MonitorConfig `yaml:"monitor"`
	Probe   ProbeConfig   `yaml:"probe"`
}

// MonitorConfig is the USB telemetry link to the firmware
type MonitorConfig struct {
	Device         string `yaml:"device"`
	Baud           int    `yaml:"baud"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// ProbeConfig is the SPI master used to read a flashed emulator
type ProbeConfig struct {
	Port    string `yaml:"port"`
	SpeedHz int64  `yaml:"speed_hz"`
	Mode    *int   `yaml:"mode"` // nil means mode 3, the logger's clocking
	Filler  uint8  `yaml:"filler"`
}

// SPIMode returns the configured SPI mode
func (p ProbeConfig) SPIMode() int {
	if p.Mode == nil {
		return 3
	}
	return *p.Mode
}

// ReadTimeout returns the monitor read timeout
func (m MonitorConfig) ReadTimeout() time.Duration {
	return time.Duration(m.ReadTimeoutMs) * time.Millisecond
}

// PollInterval returns the status poll interval
func (m MonitorConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalMs) * time.Millisecond
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and decodes a YAML file, then applies defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes and applies defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in missing values
func applyDefaults(cfg *Config) {
	if cfg.Profile == "" {
		cfg.Profile = core.ExtendedProfile.Name
	}

	if cfg.Monitor.Device == "" {
		cfg.Monitor.Device = "/dev/ttyACM0"
	}
	if cfg.Monitor.Baud == 0 {
		cfg.Monitor.Baud = 250000
	}
	if cfg.Monitor.ReadTimeoutMs == 0 {
		cfg.Monitor.ReadTimeoutMs = 100
	}
	if cfg.Monitor.PollIntervalMs == 0 {
		cfg.Monitor.PollIntervalMs = 1000
	}

	if cfg.Probe.SpeedHz == 0 {
		cfg.Probe.SpeedHz = 1000000
	}
}

// Validate checks the configuration without modifying it
func Validate(cfg *Config) error {
	if _, err := core.ProfileByName(cfg.Profile); err != nil {
		return fmt.Errorf("profile %q: %w", cfg.Profile, err)
	}

	if cfg.Monitor.Baud < 0 {
		return fmt.Errorf("monitor: baud must be positive, got %d", cfg.Monitor.Baud)
	}
	if cfg.Monitor.ReadTimeoutMs < 0 || cfg.Monitor.PollIntervalMs < 0 {
		return errors.New("monitor: durations must not be negative")
	}

	if cfg.Probe.SpeedHz < 0 {
		return fmt.Errorf("probe: speed_hz must be positive, got %d", cfg.Probe.SpeedHz)
	}
	if mode := cfg.Probe.SPIMode(); mode < 0 || mode > 3 {
		return fmt.Errorf("probe: mode must be 0-3, got %d", mode)
	}
	return nil
}
