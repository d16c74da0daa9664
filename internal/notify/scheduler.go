// Package notify owns scheduled outbound notifications: the in-memory
// queue, the cooperative scan loop, recipient extraction, rate limiting
// and fan-out to the delivery channels.
package notify

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"taskping/internal/channel"
	"taskping/internal/eventbus"
	"taskping/internal/ratelimit"
	"taskping/internal/storage"
	"taskping/internal/upstream"
	"taskping/pkg/phone"

	logx "taskping/pkg/logx"
)

// Scheduler runs the delivery state machine.
//
// All notification state lives behind mu; delivery itself happens
// outside the lock so a slow provider never blocks scheduling. The rate
// limiter is touched only from the scan loop, which is the single
// sequential caller it requires.
type Scheduler struct {
	sender    channel.Adapter
	extractor *phone.Extractor
	limiter   *ratelimit.Window
	store     storage.Store // may be nil
	log       logx.Logger
	bus       eventbus.Bus

	mu       sync.Mutex
	items    []*Notification
	running  bool
	lastScan time.Time
	interval time.Duration
	loc      *time.Location

	wg sync.WaitGroup

	now func() time.Time
}

func NewScheduler(cfg Config, sender channel.Adapter, extractor *phone.Extractor, limiter *ratelimit.Window, store storage.Store, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		sender:    sender,
		extractor: extractor,
		limiter:   limiter,
		store:     store,
		log:       log,
		bus:       bus,
		interval:  cfg.ScanInterval,
		loc:       cfg.Location,
		now:       time.Now,
	}
}

// Apply updates scan interval and timezone; takes effect at the next tick.
func (s *Scheduler) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.ScanInterval > 0 {
		s.interval = cfg.ScanInterval
	}
	if cfg.Location != nil {
		s.loc = cfg.Location
	}
}

// Start launches the scan loop. Second and later calls are no-ops while
// the loop is running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info("notification scheduler started", logx.Duration("scan_interval", s.currentInterval()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop requests a cooperative shutdown and waits for the loop to exit.
// The running flag is observed once per iteration, so stop latency is
// bounded by one scan interval.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ScheduleReminder creates a Pending notification for the task with a
// kind-specific due time. Recipients come from phone extraction over
// title and description; when none are found, no notification is
// created and ok is false. That is a documented no-op, not an error.
func (s *Scheduler) ScheduleReminder(task upstream.Task, kind Kind) (*Notification, bool) {
	recipients := s.extractor.Numbers(task.Name + "\n" + task.Description)
	if len(recipients) == 0 {
		s.log.Debug("no recipients found, reminder skipped", logx.String("task_id", task.ID), logx.String("kind", string(kind)))
		return nil, false
	}

	now := s.now()
	n := &Notification{
		ID:          fmt.Sprintf("reminder_%s_%d", task.ID, now.UnixNano()),
		TaskID:      task.ID,
		TaskTitle:   task.Name,
		Recipients:  recipients,
		Kind:        kind,
		ScheduledAt: s.reminderAt(now, kind),
		Message:     reminderMessage(task, kind),
		Status:      StatusPending,
	}
	s.add(n)
	return n, true
}

// ScheduleCustom creates a Pending notification carrying a caller
// supplied message, due after delay. Same zero-recipient no-op contract
// as ScheduleReminder.
func (s *Scheduler) ScheduleCustom(task upstream.Task, message string, delay time.Duration) (*Notification, bool) {
	recipients := s.extractor.Numbers(task.Name + "\n" + task.Description)
	if len(recipients) == 0 {
		s.log.Debug("no recipients found, custom notification skipped", logx.String("task_id", task.ID))
		return nil, false
	}
	if delay < 0 {
		delay = 0
	}

	now := s.now()
	n := &Notification{
		ID:          fmt.Sprintf("custom_%s_%d", task.ID, now.UnixNano()),
		TaskID:      task.ID,
		TaskTitle:   task.Name,
		Recipients:  recipients,
		Kind:        KindCustom,
		ScheduledAt: now.Add(delay),
		Message:     message,
		Status:      StatusPending,
	}
	s.add(n)
	return n, true
}

// reminderAt maps a kind to its due time.
func (s *Scheduler) reminderAt(now time.Time, kind Kind) time.Time {
	switch kind {
	case KindDueSoon:
		return now.Add(dueSoonLead)
	case KindOverdue:
		return now
	case KindDaily:
		return nextDailyAt(now, s.location())
	default:
		return now.Add(defaultDelay)
	}
}

// nextDailyAt is 09:00 in loc on the calendar day after now.
func nextDailyAt(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	tomorrow := local.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), dailySendHour, 0, 0, 0, loc)
}

func (s *Scheduler) add(n *Notification) {
	s.mu.Lock()
	s.items = append(s.items, n)
	s.mu.Unlock()

	s.log.Info("notification scheduled",
		logx.String("id", n.ID),
		logx.String("kind", string(n.Kind)),
		logx.Int("recipients", len(n.Recipients)),
		logx.Time("at", n.ScheduledAt),
	)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventScheduled, Data: n.ID})
	}
}

// Cancel transitions Pending to Cancelled. Any other current status, or
// an unknown id, is a no-op returning false. Idempotent.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	var hit *Notification
	for _, n := range s.items {
		if n.ID == id && n.Status == StatusPending {
			n.Status = StatusCancelled
			hit = n
			break
		}
	}
	s.mu.Unlock()

	if hit == nil {
		return false
	}
	s.log.Info("notification cancelled", logx.String("id", id))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventCancelled, Data: id})
	}
	return true
}

// ListByStatus returns copies of notifications with the given status,
// or all of them when status is nil, in insertion order.
func (s *Scheduler) ListByStatus(status *Status) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, len(s.items))
	for _, n := range s.items {
		if status != nil && n.Status != *status {
			continue
		}
		cp := *n
		cp.Recipients = append([]string(nil), n.Recipients...)
		out = append(out, cp)
	}
	return out
}

func (s *Scheduler) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Statistics{Running: s.running, LastScan: s.lastScan}
	for _, n := range s.items {
		switch n.Status {
		case StatusPending:
			st.Pending++
		case StatusSent:
			st.Sent++
		case StatusFailed:
			st.Failed++
		case StatusCancelled:
			st.Cancelled++
		}
	}
	return st
}

func (s *Scheduler) location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

func (s *Scheduler) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		if ctx.Err() != nil || !s.Running() {
			s.log.Info("notification scheduler stopped")
			return
		}

		s.scan(ctx)

		t := time.NewTimer(s.currentInterval())
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
}

// scan processes every due Pending notification sequentially, in
// insertion order. A failure in one entry marks that entry Failed and
// never blocks its siblings.
func (s *Scheduler) scan(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	due := make([]*Notification, 0, 4)
	for _, n := range s.items {
		if n.Status == StatusPending && !n.ScheduledAt.After(now) {
			due = append(due, n)
		}
	}
	s.mu.Unlock()

	for _, n := range due {
		s.process(ctx, n)
	}

	s.mu.Lock()
	s.lastScan = s.now()
	s.mu.Unlock()
}

// process delivers one notification and settles its terminal status.
func (s *Scheduler) process(ctx context.Context, n *Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic delivering notification",
				logx.String("id", n.ID), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			s.settle(n, StatusFailed)
		}
	}()

	failed := 0
	for _, recipient := range n.Recipients {
		if !s.limiter.CanSend() {
			failed++
			s.log.Warn("send skipped, rate limit reached",
				logx.String("id", n.ID), logx.String("recipient", recipient))
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{Type: eventbus.EventRateLimited, Data: n.ID})
			}
			s.record(ctx, n, recipient, false, "rate limited", 0)
			continue
		}

		started := s.now()
		res, err := s.sender.SendText(ctx, recipient, n.Message)
		took := time.Since(started).Milliseconds()

		switch {
		case err != nil:
			failed++
			s.log.Warn("send failed", logx.String("id", n.ID), logx.String("recipient", recipient), logx.Err(err))
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{Type: eventbus.EventRecipientFailed, Data: recipient})
			}
			s.record(ctx, n, recipient, false, err.Error(), took)
		case !res.OK:
			failed++
			s.log.Warn("send rejected by provider",
				logx.String("id", n.ID), logx.String("recipient", recipient), logx.String("detail", res.Detail))
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{Type: eventbus.EventRecipientFailed, Data: recipient})
			}
			s.record(ctx, n, recipient, false, res.Detail, took)
		default:
			s.limiter.RecordSend(1)
			s.record(ctx, n, recipient, true, "", took)
		}
	}

	// Sent once every recipient was attempted, even with partial
	// failures. Inherited delivery policy; see README.
	s.settle(n, StatusSent)
	s.log.Info("notification delivered",
		logx.String("id", n.ID),
		logx.Int("recipients", len(n.Recipients)),
		logx.Int("failed", failed),
	)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventSent, Data: n.ID})
	}
}

// settle moves n to a terminal status unless a concurrent Cancel got
// there first. Terminal states are never overwritten.
func (s *Scheduler) settle(n *Notification, status Status) {
	s.mu.Lock()
	if n.Status == StatusPending {
		n.Status = status
	}
	s.mu.Unlock()
}

func (s *Scheduler) record(ctx context.Context, n *Notification, recipient string, ok bool, detail string, tookMS int64) {
	if s.store == nil {
		return
	}
	err := s.store.AppendDelivery(ctx, storage.DeliveryRecord{
		At:             s.now(),
		NotificationID: n.ID,
		TaskID:         n.TaskID,
		Recipient:      recipient,
		Kind:           string(n.Kind),
		OK:             ok,
		Error:          detail,
		TookMS:         tookMS,
	})
	if err != nil {
		s.log.Debug("delivery log append failed", logx.Err(err))
	}
}
