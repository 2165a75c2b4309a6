// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the notification client configuration from YAML.
// Everything has a working default except the server base URL; a config
// file only states what differs from the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full client configuration.
type Config struct {
	// Server is the HTTP API base URL, e.g. "https://roomx.example.com".
	// Required.
	Server string `yaml:"server"`

	// Gateway is the push gateway address in "host:port" form. Empty
	// disables the realtime channel; the poller still runs.
	Gateway string `yaml:"gateway"`

	// CachePath is the SQLite file for client-local state. Empty means
	// an in-memory cache that does not survive restarts.
	CachePath string `yaml:"cache_path"`

	Poll      PollConfig      `yaml:"poll"`
	Transport TransportConfig `yaml:"transport"`
	Display   DisplayConfig   `yaml:"display"`

	// UnreadDebounce batches externally-driven unread badge updates.
	UnreadDebounce time.Duration `yaml:"unread_debounce"`
}

// PollConfig tunes the fallback poller.
type PollConfig struct {
	// Interval is the polling period.
	Interval time.Duration `yaml:"interval"`

	// PageSize is the list fetch page size.
	PageSize int `yaml:"page_size"`
}

// TransportConfig tunes the push channel.
type TransportConfig struct {
	// HeartbeatInterval is the liveness ping period.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// ReconnectDelay is the fixed wait between reconnection attempts.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	// MaxReconnectAttempts bounds consecutive reconnection attempts
	// per connection loss streak.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// DisplayConfig tunes the banner display policy.
type DisplayConfig struct {
	// MaxPerDay caps banner impressions per notification per day.
	MaxPerDay int `yaml:"max_per_day"`

	// Staleness rejects pushed notifications older than this.
	Staleness time.Duration `yaml:"staleness"`

	// Suppression rejects repeat banners for the same notification
	// within this window.
	Suppression time.Duration `yaml:"suppression"`

	// RetentionDays bounds how long impression counters are kept.
	RetentionDays int `yaml:"retention_days"`
}

// Default returns the configuration with every tunable at its default.
// Server must still be set before use.
func Default() Config {
	return Config{
		Poll: PollConfig{
			Interval: 30 * time.Second,
			PageSize: 50,
		},
		Transport: TransportConfig{
			HeartbeatInterval:    30 * time.Second,
			ReconnectDelay:       5 * time.Second,
			MaxReconnectAttempts: 5,
			DialTimeout:          10 * time.Second,
		},
		Display: DisplayConfig{
			MaxPerDay:     3,
			Staleness:     5 * time.Minute,
			Suppression:   30 * time.Second,
			RetentionDays: 7,
		},
		UnreadDebounce: 300 * time.Millisecond,
	}
}

// Load reads path, overlays it on the defaults, and validates the
// result. Unknown keys are errors: a typoed tunable must not silently
// fall back to its default.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse overlays raw YAML on the defaults and validates the result.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := unmarshalStrict(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration error.
func (c Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("config: server is required")
	}
	parsed, err := url.Parse(c.Server)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: server %q is not an absolute URL", c.Server)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("config: poll.interval must be positive")
	}
	if c.Poll.PageSize <= 0 {
		return fmt.Errorf("config: poll.page_size must be positive")
	}
	if c.Transport.HeartbeatInterval <= 0 {
		return fmt.Errorf("config: transport.heartbeat_interval must be positive")
	}
	if c.Transport.ReconnectDelay <= 0 {
		return fmt.Errorf("config: transport.reconnect_delay must be positive")
	}
	if c.Transport.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("config: transport.max_reconnect_attempts must be positive")
	}
	if c.Display.MaxPerDay <= 0 {
		return fmt.Errorf("config: display.max_per_day must be positive")
	}
	if c.Display.RetentionDays <= 0 {
		return fmt.Errorf("config: display.retention_days must be positive")
	}
	if c.UnreadDebounce <= 0 {
		return fmt.Errorf("config: unread_debounce must be positive")
	}
	return nil
}

func unmarshalStrict(raw []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	err := decoder.Decode(out)
	if errors.Is(err, io.EOF) {
		// An empty document means all defaults.
		return nil
	}
	return err
}
