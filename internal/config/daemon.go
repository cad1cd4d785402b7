// Package config loads braillexd settings from JSON. Every field is a
// pointer so a partial file only overrides what it names; the Get*
// accessors supply the compiled-in defaults for the rest.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root braillexd configuration. The schema matches the
// /api/config endpoint so the same JSON works for startup files and
// runtime inspection.
type Config struct {
	// Device attachment. Port takes the same specs the driver does:
	// "auto", "serial:PATH", "hid:PATH", "usb", or a bare device path.
	Port *string `json:"port,omitempty"`

	// Protocol timing. Durations are strings like "200ms".
	IOTimeout      *string `json:"io_timeout,omitempty"`
	ProbeWait      *string `json:"probe_wait,omitempty"`
	ResponseWait   *string `json:"response_wait,omitempty"`
	SettleTime     *string `json:"settle_time,omitempty"`
	RepeatInterval *int    `json:"repeat_interval,omitempty"`

	// Daemon surfaces.
	Listen *string `json:"listen,omitempty"`
	DBPath *string `json:"db_path,omitempty"`
	Debug  *bool   `json:"debug,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrInt(v int) *int          { return &v }

// Empty returns a Config with all fields unset, deferring everything to
// the Get* defaults.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must carry a .json
// extension and stay under the size cap; fields omitted from the JSON
// keep their defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	durations := map[string]*string{
		"io_timeout":    c.IOTimeout,
		"probe_wait":    c.ProbeWait,
		"response_wait": c.ResponseWait,
		"settle_time":   c.SettleTime,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.RepeatInterval != nil && *c.RepeatInterval < 1 {
		return fmt.Errorf("repeat_interval must be at least 1, got %d", *c.RepeatInterval)
	}

	return nil
}

// GetPort returns the port spec or the default.
func (c *Config) GetPort() string {
	if c.Port == nil || *c.Port == "" {
		return "auto"
	}
	return *c.Port
}

// GetIOTimeout parses and returns IOTimeout as a time.Duration.
func (c *Config) GetIOTimeout() time.Duration {
	return c.duration(c.IOTimeout, 200*time.Millisecond)
}

// GetProbeWait parses and returns ProbeWait as a time.Duration.
func (c *Config) GetProbeWait() time.Duration {
	return c.duration(c.ProbeWait, 200*time.Millisecond)
}

// GetResponseWait parses and returns ResponseWait as a time.Duration.
func (c *Config) GetResponseWait() time.Duration {
	return c.duration(c.ResponseWait, 50*time.Millisecond)
}

// GetSettleTime parses and returns SettleTime as a time.Duration.
func (c *Config) GetSettleTime() time.Duration {
	return c.duration(c.SettleTime, 200*time.Millisecond)
}

// GetRepeatInterval returns the repeat_interval value or the default.
func (c *Config) GetRepeatInterval() int {
	if c.RepeatInterval == nil {
		return 10
	}
	return *c.RepeatInterval
}

// GetListen returns the HTTP listen address or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return "localhost:8980"
	}
	return *c.Listen
}

// GetDBPath returns the event log database path or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "braillex.db"
	}
	return *c.DBPath
}

// GetDebug returns the debug flag or the default.
func (c *Config) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

func (c *Config) duration(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback
	}
	return d
}
