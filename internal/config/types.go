// Package config loads and hot-reloads the daemon configuration.
//
// Files may be JSON or YAML; YAML is coerced to JSON so both go through
// the same strict decoder (unknown fields rejected). Durations are Go
// duration strings ("10s", "2m").
package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Poll     PollConfig     `json:"poll"`
	Content  ContentConfig  `json:"content"`
	Abuse    AbuseConfig    `json:"abuse"`
	Delivery DeliveryConfig `json:"delivery"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console bool   `json:"console"`
	File    string `json:"file,omitempty"` // empty disables the file sink
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string. "0s" means the driver default.
	BusyTimeout string `json:"busy_timeout,omitempty"`
	// DeliveredCap bounds the delivered-keys list per watch (0 = default).
	DeliveredCap int `json:"delivered_cap,omitempty"`
}

type PollConfig struct {
	// Interval between poll cycles. Default "120s".
	Interval string `json:"interval,omitempty"`
	Workers  int    `json:"workers,omitempty"`
	// UnitTimeout bounds one watch/streamer unit. Default "30s".
	UnitTimeout string `json:"unit_timeout,omitempty"`
	FetchLimit  int    `json:"fetch_limit,omitempty"`
}

type ContentConfig struct {
	// BaseURL of the booru-style content API.
	BaseURL string `json:"base_url"`
	// Tag policy applied per destination.
	GeneralAllow    []string `json:"general_allow,omitempty"`
	RestrictedExtra []string `json:"restricted_extra,omitempty"`
	Banned          []string `json:"banned,omitempty"`
}

type AbuseConfig struct {
	// Window is a Go duration string. Default "5s".
	Window    string `json:"window,omitempty"`
	Threshold int    `json:"threshold,omitempty"`
}

type DeliveryConfig struct {
	// RatePerSec caps outbound platform calls. 0 disables limiting.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// ---- duration helpers ----

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Validate parses every duration field so a bad file is rejected before
// it is committed or published.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("poll.interval", c.Poll.Interval); err != nil {
		return err
	}
	if _, err := ParseDurationField("poll.unit_timeout", c.Poll.UnitTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("abuse.window", c.Abuse.Window); err != nil {
		return err
	}
	return nil
}
