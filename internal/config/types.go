package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Upstream  UpstreamConfig  `json:"upstream"`
	Poller    PollerConfig    `json:"poller,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	RateLimit RateLimitConfig `json:"ratelimit,omitempty"`
	Phone     PhoneConfig     `json:"phone"`
	Channels  ChannelsConfig  `json:"channels"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

// UpstreamConfig points at the task tracker's REST API.
type UpstreamConfig struct {
	APIToken    string `json:"api_token"`
	WorkspaceID string `json:"workspace_id"`
	BaseURL     string `json:"base_url,omitempty"`
	// CallbackURL is where the upstream should POST push notifications.
	CallbackURL string `json:"callback_url"`
	// RequestsPerSec paces outgoing API calls. Default 5.
	RequestsPerSec int `json:"requests_per_sec,omitempty"`
	// Timeout is a Go duration string (e.g. "15s").
	Timeout string `json:"timeout,omitempty"`
}

type PollerConfig struct {
	// Interval is a Go duration string. Default "60s".
	Interval string `json:"interval,omitempty"`
}

type SchedulerConfig struct {
	// ScanInterval is a Go duration string. Default "60s".
	ScanInterval string `json:"scan_interval,omitempty"`
	DailyDigest  bool   `json:"daily_digest,omitempty"`
	// Timezone is an IANA zone name used for daily digests (e.g.
	// "America/Mexico_City"). Empty means UTC.
	Timezone string `json:"timezone,omitempty"`
}

// RateLimitConfig caps outgoing sends per recipient-agnostic window.
// Zero values fall back to 30/minute and 1000/hour.
type RateLimitConfig struct {
	PerMinute int `json:"per_minute,omitempty"`
	PerHour   int `json:"per_hour,omitempty"`
}

type PhoneConfig struct {
	// DefaultCountryCode is the calling code assumed for bare local
	// numbers (digits only, no "+", e.g. "52").
	DefaultCountryCode string `json:"default_country_code"`
}

// ChannelsConfig wires delivery backends. WhatsApp is the primary
// channel; telegram and slack are optional and addressed through
// recipient prefixes ("tg:", "slack:").
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig  `json:"whatsapp"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Slack    *SlackConfig    `json:"slack,omitempty"`
}

type WhatsAppConfig struct {
	BaseURL  string `json:"base_url,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Simulator swaps the HTTP gateway for an in-memory recorder.
	Simulator bool `json:"simulator,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
}

type SlackConfig struct {
	Token string `json:"token"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console,omitempty"`
	File    LoggingFile   `json:"file,omitempty"`
	Alerts  LoggingAlerts `json:"alerts,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LoggingAlerts mirrors WARN+ records to an operations recipient via a
// delivery channel.
type LoggingAlerts struct {
	Enabled    bool   `json:"enabled,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the optional delivery log.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./taskping-deliveries" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Validate fails fast on anything that would make the delivery loops
// useless once started. Called before Commit on load and on every hot
// reload.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Upstream.APIToken) == "" {
		return errors.New("upstream.api_token is required")
	}
	if strings.TrimSpace(c.Upstream.WorkspaceID) == "" {
		return errors.New("upstream.workspace_id is required")
	}
	if strings.TrimSpace(c.Upstream.CallbackURL) == "" {
		return errors.New("upstream.callback_url is required (push registration is always attempted)")
	}
	if strings.TrimSpace(c.Phone.DefaultCountryCode) == "" {
		return errors.New("phone.default_country_code is required")
	}
	for _, r := range strings.TrimSpace(c.Phone.DefaultCountryCode) {
		if r < '0' || r > '9' {
			return fmt.Errorf("phone.default_country_code must be digits only, got %q", c.Phone.DefaultCountryCode)
		}
	}
	if c.Channels.Telegram != nil && strings.TrimSpace(c.Channels.Telegram.Token) == "" {
		return errors.New("channels.telegram.token is required when the section is present")
	}
	if c.Channels.Slack != nil && strings.TrimSpace(c.Channels.Slack.Token) == "" {
		return errors.New("channels.slack.token is required when the section is present")
	}
	if !c.Channels.WhatsApp.Simulator {
		if strings.TrimSpace(c.Channels.WhatsApp.BaseURL) == "" {
			return errors.New("channels.whatsapp.base_url is required unless simulator is on")
		}
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.PerHour < 0 {
		return errors.New("ratelimit caps must be >= 0")
	}
	for _, f := range []struct{ path, raw string }{
		{"upstream.timeout", c.Upstream.Timeout},
		{"poller.interval", c.Poller.Interval},
		{"scheduler.scan_interval", c.Scheduler.ScanInterval},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		switch strings.TrimSpace(strings.ToLower(c.Storage.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver %q is not one of none|file|sqlite", c.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
