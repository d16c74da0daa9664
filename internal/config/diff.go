package config

import (
	"sort"
	"strings"

	logx "taskping/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus
// safe structured attrs for logging. Secrets (tokens, API keys) are
// reported as presence booleans only.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Upstream (never log the token)
	if strings.TrimSpace(oldCfg.Upstream.BaseURL) != strings.TrimSpace(newCfg.Upstream.BaseURL) ||
		strings.TrimSpace(oldCfg.Upstream.CallbackURL) != strings.TrimSpace(newCfg.Upstream.CallbackURL) ||
		oldCfg.Upstream.RequestsPerSec != newCfg.Upstream.RequestsPerSec ||
		strings.TrimSpace(oldCfg.Upstream.Timeout) != strings.TrimSpace(newCfg.Upstream.Timeout) ||
		(strings.TrimSpace(oldCfg.Upstream.APIToken) != "") != (strings.TrimSpace(newCfg.Upstream.APIToken) != "") ||
		strings.TrimSpace(oldCfg.Upstream.WorkspaceID) != strings.TrimSpace(newCfg.Upstream.WorkspaceID) {
		changed = append(changed, "upstream")
		attrs = append(attrs,
			logx.Bool("upstream.token_set", strings.TrimSpace(newCfg.Upstream.APIToken) != ""),
			logx.String("upstream.workspace_id", strings.TrimSpace(newCfg.Upstream.WorkspaceID)),
			logx.Int("upstream.requests_per_sec", newCfg.Upstream.RequestsPerSec),
		)
	}

	// Poller
	if strings.TrimSpace(oldCfg.Poller.Interval) != strings.TrimSpace(newCfg.Poller.Interval) {
		changed = append(changed, "poller")
		attrs = append(attrs, logx.String("poller.interval", strings.TrimSpace(newCfg.Poller.Interval)))
	}

	// Scheduler
	if strings.TrimSpace(oldCfg.Scheduler.ScanInterval) != strings.TrimSpace(newCfg.Scheduler.ScanInterval) ||
		oldCfg.Scheduler.DailyDigest != newCfg.Scheduler.DailyDigest ||
		strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.scan_interval", strings.TrimSpace(newCfg.Scheduler.ScanInterval)),
			logx.Bool("scheduler.daily_digest", newCfg.Scheduler.DailyDigest),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}

	// Rate limit
	if oldCfg.RateLimit != newCfg.RateLimit {
		changed = append(changed, "ratelimit")
		attrs = append(attrs,
			logx.Int("ratelimit.per_minute", newCfg.RateLimit.PerMinute),
			logx.Int("ratelimit.per_hour", newCfg.RateLimit.PerHour),
		)
	}

	// Phone
	if strings.TrimSpace(oldCfg.Phone.DefaultCountryCode) != strings.TrimSpace(newCfg.Phone.DefaultCountryCode) {
		changed = append(changed, "phone")
		attrs = append(attrs, logx.String("phone.default_country_code", strings.TrimSpace(newCfg.Phone.DefaultCountryCode)))
	}

	// Channels (keys only)
	if channelsChanged(oldCfg.Channels, newCfg.Channels) {
		changed = append(changed, "channels")
		attrs = append(attrs,
			logx.Bool("channels.whatsapp_simulator", newCfg.Channels.WhatsApp.Simulator),
			logx.Bool("channels.telegram_present", newCfg.Channels.Telegram != nil),
			logx.Bool("channels.slack_present", newCfg.Channels.Slack != nil),
		)
	}

	// Logging (never log alert recipient verbatim at info)
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File != newCfg.Logging.File ||
		oldCfg.Logging.Alerts != newCfg.Logging.Alerts {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.alerts_enabled", newCfg.Logging.Alerts.Enabled),
		)
	}

	// Storage
	oldS, newS := oldCfg.Storage, newCfg.Storage
	var oDriver, nDriver string
	var oPathSet, nPathSet bool
	if oldS != nil {
		oDriver = strings.TrimSpace(oldS.Driver)
		oPathSet = strings.TrimSpace(oldS.Path) != ""
	}
	if newS != nil {
		nDriver = strings.TrimSpace(newS.Driver)
		nPathSet = strings.TrimSpace(newS.Path) != ""
	}
	if oDriver != nDriver || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func channelsChanged(o, n ChannelsConfig) bool {
	if o.WhatsApp != n.WhatsApp {
		return true
	}
	if (o.Telegram == nil) != (n.Telegram == nil) {
		return true
	}
	if o.Telegram != nil && *o.Telegram != *n.Telegram {
		return true
	}
	if (o.Slack == nil) != (n.Slack == nil) {
		return true
	}
	if o.Slack != nil && *o.Slack != *n.Slack {
		return true
	}
	return false
}
