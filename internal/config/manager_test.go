package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
upstream:
  api_token: "tok"
  workspace_id: "ws1"
  callback_url: "https://example.com/webhooks/tasks"
  requests_per_sec: 5
poller:
  interval: "30s"
scheduler:
  scan_interval: "45s"
  daily_digest: true
  timezone: "America/Mexico_City"
ratelimit:
  per_minute: 10
  per_hour: 200
phone:
  default_country_code: "52"
channels:
  whatsapp: { simulator: true }
logging:
  level: DEBUG
  console: true
storage:
  driver: "file"
  path: "./deliveries"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.APIToken != "tok" || cfg.Upstream.WorkspaceID != "ws1" {
		t.Fatalf("upstream = %+v", cfg.Upstream)
	}
	if cfg.Poller.Interval != "30s" {
		t.Fatalf("poller.interval = %q", cfg.Poller.Interval)
	}
	if !cfg.Scheduler.DailyDigest || cfg.Scheduler.Timezone != "America/Mexico_City" {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.RateLimit.PerMinute != 10 || cfg.RateLimit.PerHour != 200 {
		t.Fatalf("ratelimit = %+v", cfg.RateLimit)
	}
	if !cfg.Channels.WhatsApp.Simulator {
		t.Fatal("whatsapp simulator flag lost")
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeConfig(t, "config.json", `{
		"upstream": {"api_token": "tok", "workspace_id": "ws1", "callback_url": "https://x/h"},
		"phone": {"default_country_code": "52"},
		"channels": {"whatsapp": {"simulator": true}}
	}`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeConfig(t, "config.yaml", validYAML+"\nnot_a_section:\n  x: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeConfig(t, "config.json", `{"phone":{"default_country_code":"52"}}{"x":1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidateFailFast(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Upstream: UpstreamConfig{APIToken: "t", WorkspaceID: "ws", CallbackURL: "https://x/h"},
			Phone:    PhoneConfig{DefaultCountryCode: "52"},
			Channels: ChannelsConfig{WhatsApp: WhatsAppConfig{Simulator: true}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Upstream.APIToken = "" }},
		{"missing workspace", func(c *Config) { c.Upstream.WorkspaceID = "" }},
		{"missing callback url", func(c *Config) { c.Upstream.CallbackURL = "" }},
		{"missing country code", func(c *Config) { c.Phone.DefaultCountryCode = "" }},
		{"non-digit country code", func(c *Config) { c.Phone.DefaultCountryCode = "+52" }},
		{"telegram without token", func(c *Config) { c.Channels.Telegram = &TelegramConfig{} }},
		{"slack without token", func(c *Config) { c.Channels.Slack = &SlackConfig{} }},
		{"gateway without base url", func(c *Config) { c.Channels.WhatsApp.Simulator = false }},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"negative rate cap", func(c *Config) { c.RateLimit.PerMinute = -1 }},
		{"bad poll interval", func(c *Config) { c.Poller.Interval = "sixty" }},
		{"bad storage driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "redis"} }},
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSubscribePublishAndUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeConfig(t, "config.yaml", validYAML))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("subscriber never received the config")
	}

	// Full buffer: oldest is dropped, newest wins.
	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)
	if got := <-ch; got != second {
		t.Fatal("expected the newest config after a dropped publish")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Fatalf("ParseDurationField = %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty duration = %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative durations must be rejected")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default = %v, %v", d, err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{RateLimit: RateLimitConfig{PerMinute: 10}}
	newCfg := &Config{
		RateLimit: RateLimitConfig{PerMinute: 20},
		Logging:   LoggingConfig{Level: "DEBUG"},
	}
	sections, _ := SummarizeConfigChange(oldCfg, newCfg)
	want := map[string]bool{"ratelimit": true, "logging": true}
	if len(sections) != len(want) {
		t.Fatalf("sections = %v", sections)
	}
	for _, s := range sections {
		if !want[s] {
			t.Fatalf("unexpected section %q in %v", s, sections)
		}
	}

	if sections, _ := SummarizeConfigChange(newCfg, newCfg); len(sections) != 0 {
		t.Fatalf("identical configs should produce no sections, got %v", sections)
	}
}
