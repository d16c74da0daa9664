// Package app wires the delivery subsystem together: config, logging,
// channels, upstream access, the poll fallback and the notification
// scheduler.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"taskping/internal/channel"
	"taskping/internal/channel/slack"
	"taskping/internal/channel/telegram"
	"taskping/internal/channel/whatsapp"
	"taskping/internal/config"
	"taskping/internal/eventbus"
	"taskping/internal/notify"
	"taskping/internal/ratelimit"
	"taskping/internal/storage"
	"taskping/internal/upstream"
	"taskping/pkg/phone"

	logx "taskping/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	mux *channel.Mux
	sim *whatsapp.Simulator // non-nil in simulator mode

	client *upstream.Client
	coord  *upstream.Coordinator
	poller *upstream.Poller

	extractor *phone.Extractor
	limiter   *ratelimit.Window
	sched     *notify.Scheduler

	digest *digestJob

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level)

	// Channels first: the log service's alert sink sends through the mux.
	mux, sim, err := buildChannels(cfg, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    cfg.Logging.Alerts.Enabled,
			Recipient:  cfg.Logging.Alerts.Recipient,
			MinLevel:   cfg.Logging.Alerts.MinLevel,
			RatePerSec: cfg.Logging.Alerts.RatePerSec,
		},
	}, mux)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Delivery log (optional)
	var store storage.Store
	if cfg.Storage != nil {
		sc, err := mapStorageConfig(cfg.Storage)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		if st != nil {
			store = st
			log.Info("delivery log enabled", logx.String("driver", sc.Driver))
		}
	}

	timeout, err := config.ParseDurationField("upstream.timeout", cfg.Upstream.Timeout)
	if err != nil {
		return nil, err
	}
	client, err := upstream.NewClient(upstream.ClientConfig{
		BaseURL:        cfg.Upstream.BaseURL,
		APIToken:       cfg.Upstream.APIToken,
		WorkspaceID:    cfg.Upstream.WorkspaceID,
		RequestsPerSec: cfg.Upstream.RequestsPerSec,
		Timeout:        timeout,
	}, log.With(logx.String("comp", "upstream")))
	if err != nil {
		return nil, err
	}

	coord := upstream.NewCoordinator(client, log.With(logx.String("comp", "webhooks")), bus)

	pollInterval, err := config.ParseDurationOrDefault("poller.interval", cfg.Poller.Interval, upstream.DefaultPollInterval)
	if err != nil {
		return nil, err
	}
	poller := upstream.NewPoller(client, pollInterval, log.With(logx.String("comp", "poller")), bus)

	extractor := phone.New(cfg.Phone.DefaultCountryCode)
	limiter := ratelimit.New(ratelimit.Config{
		PerMinute: cfg.RateLimit.PerMinute,
		PerHour:   cfg.RateLimit.PerHour,
	})

	scanInterval, err := config.ParseDurationOrDefault("scheduler.scan_interval", cfg.Scheduler.ScanInterval, notify.DefaultScanInterval)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, err
		}
	}
	sched := notify.NewScheduler(notify.Config{
		ScanInterval: scanInterval,
		Location:     loc,
	}, mux, extractor, limiter, store, log.With(logx.String("comp", "scheduler")), bus)

	a := &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		mux:       mux,
		sim:       sim,
		client:    client,
		coord:     coord,
		poller:    poller,
		extractor: extractor,
		limiter:   limiter,
		sched:     sched,
	}
	if cfg.Scheduler.DailyDigest {
		a.digest = newDigestJob(client, sched, loc, log.With(logx.String("comp", "digest")))
	}
	return a, nil
}

func buildChannels(cfg *config.Config, log logx.Logger) (*channel.Mux, *whatsapp.Simulator, error) {
	var (
		primary channel.Adapter
		sim     *whatsapp.Simulator
	)
	if cfg.Channels.WhatsApp.Simulator {
		sim = whatsapp.NewSimulator()
		primary = sim
	} else {
		primary = whatsapp.New(whatsapp.Config{
			BaseURL:  cfg.Channels.WhatsApp.BaseURL,
			APIKey:   cfg.Channels.WhatsApp.APIKey,
			Instance: cfg.Channels.WhatsApp.Instance,
		}, log)
	}

	mux := channel.NewMux(primary)
	if cfg.Channels.Telegram != nil {
		tg, err := telegram.New(telegram.Config{Token: cfg.Channels.Telegram.Token}, log)
		if err != nil {
			return nil, nil, err
		}
		mux.Route("tg:", tg)
	}
	if cfg.Channels.Slack != nil {
		sl, err := slack.New(slack.Config{Token: cfg.Channels.Slack.Token}, log)
		if err != nil {
			return nil, nil, err
		}
		mux.Route("slack:", sl)
	}
	return mux, sim, nil
}

func mapStorageConfig(sc *config.StorageConfig) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: sc.Driver, Path: sc.Path, BusyTimeout: busy}, nil
}

// Coordinator exposes push/polling state for status surfaces.
func (a *App) Coordinator() *upstream.Coordinator { return a.coord }

// Scheduler exposes the notification scheduler (schedule/cancel/stats).
func (a *App) Scheduler() *notify.Scheduler { return a.sched }

// Simulator returns the in-memory WhatsApp recorder, or nil when the
// real gateway is configured.
func (a *App) Simulator() *whatsapp.Simulator { return a.sim }

func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	cfg := a.cfgm.Get()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return c.Validate()
	})

	// One registration attempt; any failure activates polling mode.
	pushMode := a.coord.RegisterOrFallback(ctx, cfg.Upstream.CallbackURL)
	if !pushMode {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.poller.Run(ctx, a.ProcessChange)
		}()
	}

	a.sched.Start(ctx)

	if a.digest != nil {
		a.digest.start()
	}

	// eventbus debug trace
	events, unsub := a.bus.Subscribe(128)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	}()

	// hot reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(ctx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(ctx)
	}()

	a.log.Info("taskping started",
		logx.Bool("push_mode", pushMode),
		logx.Bool("daily_digest", a.digest != nil),
	)
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}

			a.applyConfig(newCfg, sections)

			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)
		}
	}
}

// applyConfig applies the hot-reloadable subset: logging, scan/poll
// intervals and rate caps. Channel, upstream and storage changes need a
// restart and are called out in the log.
func (a *App) applyConfig(cfg *config.Config, sections []string) {
	for _, s := range sections {
		switch s {
		case "channels", "upstream", "storage", "phone":
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    cfg.Logging.Alerts.Enabled,
			Recipient:  cfg.Logging.Alerts.Recipient,
			MinLevel:   cfg.Logging.Alerts.MinLevel,
			RatePerSec: cfg.Logging.Alerts.RatePerSec,
		},
	})

	if d, err := config.ParseDurationField("poller.interval", cfg.Poller.Interval); err == nil && d > 0 {
		a.poller.Apply(d)
	}
	if d, err := config.ParseDurationField("scheduler.scan_interval", cfg.Scheduler.ScanInterval); err == nil && d > 0 {
		a.sched.Apply(notify.Config{ScanInterval: d})
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			a.sched.Apply(notify.Config{Location: loc})
		}
	}
}

// ProcessChange classifies a batch of changed tasks and schedules
// reminders. It is the poller's batch callback and would equally serve
// a push callback handler.
func (a *App) ProcessChange(_ context.Context, tasks []upstream.Task) error {
	now := time.Now()
	scheduled := 0
	for _, t := range tasks {
		due, ok := t.DueTime()
		if !ok {
			continue
		}
		var kind notify.Kind
		switch {
		case due.Before(now):
			kind = notify.KindOverdue
		case due.Sub(now) <= 24*time.Hour:
			kind = notify.KindDueSoon
		default:
			continue
		}
		if _, ok := a.sched.ScheduleReminder(t, kind); ok {
			scheduled++
		}
	}
	if scheduled > 0 {
		a.log.Info("reminders scheduled from change batch",
			logx.Int("tasks", len(tasks)), logx.Int("scheduled", scheduled))
	}
	return nil
}

func (a *App) Stop() {
	a.log.Info("taskping stopping")
	if a.digest != nil {
		a.digest.stop()
	}
	a.poller.Stop()
	// Cancel first: both loops select on the context, so Stop() returns
	// promptly instead of waiting out a full interval.
	if a.cancel != nil {
		a.cancel()
	}
	a.sched.Stop()
	a.wg.Wait()
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
}
