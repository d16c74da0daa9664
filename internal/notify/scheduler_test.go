package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"taskping/internal/channel/whatsapp"
	"taskping/internal/ratelimit"
	"taskping/internal/upstream"
	"taskping/pkg/phone"

	logx "taskping/pkg/logx"
)

func newTestScheduler(t *testing.T, rl ratelimit.Config) (*Scheduler, *whatsapp.Simulator) {
	t.Helper()
	sim := whatsapp.NewSimulator()
	s := NewScheduler(Config{ScanInterval: 10 * time.Millisecond, Location: time.UTC},
		sim, phone.New("52"), ratelimit.New(rl), nil, logx.Nop(), nil)
	return s, sim
}

func taskWithPhone(id string) upstream.Task {
	return upstream.Task{ID: id, Name: "Fix pump", Description: "on call: +34612345678"}
}

func TestReminderOffsets(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		kind Kind
		want time.Time
	}{
		{"due soon", KindDueSoon, base.Add(time.Hour)},
		{"overdue is immediate", KindOverdue, base},
		{"daily next day 09:00", KindDaily, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)},
		{"unknown kind default", Kind("other"), base.Add(30 * time.Minute)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScheduler(t, ratelimit.Config{})
			s.now = func() time.Time { return base }

			n, ok := s.ScheduleReminder(taskWithPhone("t1"), tt.kind)
			if !ok {
				t.Fatal("expected a notification")
			}
			if !n.ScheduledAt.Equal(tt.want) {
				t.Fatalf("ScheduledAt = %v, want %v", n.ScheduledAt, tt.want)
			}
			if n.Status != StatusPending {
				t.Fatalf("Status = %s, want pending", n.Status)
			}
		})
	}
}

func TestScheduleReminderNoRecipientsIsNoop(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, ratelimit.Config{})

	n, ok := s.ScheduleReminder(upstream.Task{ID: "t1", Name: "no numbers here"}, KindDueSoon)
	if ok || n != nil {
		t.Fatalf("expected no-op, got %+v", n)
	}
	if got := s.ListByStatus(nil); len(got) != 0 {
		t.Fatalf("no notification should be stored, got %d", len(got))
	}
}

func TestScheduleCustom(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, ratelimit.Config{})
	s.now = func() time.Time { return base }

	n, ok := s.ScheduleCustom(taskWithPhone("t2"), "deployment done", 10*time.Minute)
	if !ok {
		t.Fatal("expected a notification")
	}
	if n.Kind != KindCustom {
		t.Fatalf("Kind = %s", n.Kind)
	}
	if !n.ScheduledAt.Equal(base.Add(10 * time.Minute)) {
		t.Fatalf("ScheduledAt = %v", n.ScheduledAt)
	}
	if n.Message != "deployment done" {
		t.Fatalf("Message = %q", n.Message)
	}

	if _, ok := s.ScheduleCustom(upstream.Task{ID: "t3", Name: "nothing"}, "msg", 0); ok {
		t.Fatal("expected zero-recipient no-op")
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, ratelimit.Config{})

	n, _ := s.ScheduleReminder(taskWithPhone("t1"), KindDueSoon)
	if !s.Cancel(n.ID) {
		t.Fatal("cancel of a pending notification should succeed")
	}
	if s.Cancel(n.ID) {
		t.Fatal("second cancel must be a no-op returning false")
	}
	if s.Cancel("unknown") {
		t.Fatal("cancel of an unknown id must return false")
	}

	st := StatusCancelled
	if got := s.ListByStatus(&st); len(got) != 1 {
		t.Fatalf("cancelled list = %d entries", len(got))
	}
}

func TestScanDeliversDueNotification(t *testing.T) {
	t.Parallel()
	s, sim := newTestScheduler(t, ratelimit.Config{})
	base := time.Now()
	s.now = func() time.Time { return base.Add(time.Second) } // 1s past due

	n, _ := s.ScheduleReminder(upstream.Task{ID: "t1", Name: "Fix pump +34612345678"}, KindOverdue)
	s.scan(context.Background())

	st := s.Statistics()
	if st.Sent != 1 || st.Pending != 0 {
		t.Fatalf("statistics = %+v", st)
	}
	if st.LastScan.IsZero() {
		t.Fatal("LastScan should be set after a scan")
	}

	sent := sim.Sent()
	if len(sent) != 1 {
		t.Fatalf("simulator recorded %d sends, want 1", len(sent))
	}
	if sent[0].Recipient != "+34612345678" {
		t.Fatalf("recipient = %s", sent[0].Recipient)
	}
	if !strings.Contains(sent[0].Text, "overdue") {
		t.Fatalf("message = %q", sent[0].Text)
	}

	// One successful send, one limiter record.
	if m, _ := s.limiter.Counts(); m != 1 {
		t.Fatalf("limiter minute count = %d, want 1", m)
	}
	_ = n
}

func TestPartialRecipientFailureStillSent(t *testing.T) {
	t.Parallel()
	s, sim := newTestScheduler(t, ratelimit.Config{})

	task := upstream.Task{
		ID:          "t1",
		Name:        "Escalation",
		Description: "Contact WhatsApp: +52 55 1234 5678 or call 5551234567",
	}
	n, ok := s.ScheduleReminder(task, KindOverdue)
	if !ok {
		t.Fatal("expected a notification")
	}
	if len(n.Recipients) != 2 {
		t.Fatalf("recipients = %v, want 2", n.Recipients)
	}
	sim.FailFor(n.Recipients[0], "number not registered")

	s.scan(context.Background())

	// Sent despite the failed recipient.
	if n.Status != StatusSent {
		t.Fatalf("Status = %s, want sent", n.Status)
	}
	if len(sim.Sent()) != 1 {
		t.Fatalf("simulator recorded %d sends, want 1", len(sim.Sent()))
	}
	// Only the successful send consumed quota.
	if m, _ := s.limiter.Counts(); m != 1 {
		t.Fatalf("limiter minute count = %d, want 1", m)
	}
}

func TestRateLimitSkipsWithoutBlocking(t *testing.T) {
	t.Parallel()
	s, sim := newTestScheduler(t, ratelimit.Config{PerMinute: 1, PerHour: 10})

	task := upstream.Task{
		ID:          "t1",
		Name:        "Escalation",
		Description: "Contact WhatsApp: +52 55 1234 5678 or call 5551234567",
	}
	n, _ := s.ScheduleReminder(task, KindOverdue)

	s.scan(context.Background())

	if n.Status != StatusSent {
		t.Fatalf("Status = %s, want sent", n.Status)
	}
	if len(sim.Sent()) != 1 {
		t.Fatalf("simulator recorded %d sends, want 1 (second recipient rate limited)", len(sim.Sent()))
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, ratelimit.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	if !s.Running() {
		t.Fatal("scheduler should be running after Start")
	}
	s.Start(ctx) // second start is a no-op

	cancel()
	s.Stop()
	if s.Running() {
		t.Fatal("scheduler should not be running after Stop")
	}
}

func TestTerminalStatusNeverOverwritten(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, ratelimit.Config{})

	n, _ := s.ScheduleReminder(taskWithPhone("t1"), KindOverdue)
	s.Cancel(n.ID)

	// A later scan must not resurrect a cancelled notification.
	s.scan(context.Background())
	if n.Status != StatusCancelled {
		t.Fatalf("Status = %s, want cancelled", n.Status)
	}
}
