package ratelimit

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Parallel()
	w := New(Config{})
	if w.cfg.PerMinute != DefaultPerMinute || w.cfg.PerHour != DefaultPerHour {
		t.Fatalf("defaults = %d/%d", w.cfg.PerMinute, w.cfg.PerHour)
	}
	if !w.CanSend() {
		t.Fatal("fresh window should allow sending")
	}
}

func TestMinuteCapSaturatesAndAgesOut(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := base
	w := New(Config{PerMinute: 3, PerHour: 100})
	w.now = func() time.Time { return now }

	w.RecordSend(3)
	if w.CanSend() {
		t.Fatal("CanSend should be false at the minute cap")
	}

	// 59s later the entries are still inside the window.
	now = base.Add(59 * time.Second)
	if w.CanSend() {
		t.Fatal("CanSend should still be false at 59s")
	}

	// Just past 60s the whole batch ages out.
	now = base.Add(61 * time.Second)
	if !w.CanSend() {
		t.Fatal("CanSend should be true after the oldest send ages past 60s")
	}
	if m, _ := w.Counts(); m != 0 {
		t.Fatalf("minute count = %d, want 0", m)
	}
}

func TestHourCapIndependentOfMinuteCap(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := base
	w := New(Config{PerMinute: 100, PerHour: 5})
	w.now = func() time.Time { return now }

	w.RecordSend(5)
	if w.CanSend() {
		t.Fatal("CanSend should be false at the hour cap")
	}

	// Minute window empties, hour window still full.
	now = base.Add(2 * time.Minute)
	if m, h := w.Counts(); m != 0 || h != 5 {
		t.Fatalf("counts = %d/%d, want 0/5", m, h)
	}
	if w.CanSend() {
		t.Fatal("hour cap should still block")
	}

	now = base.Add(61 * time.Minute)
	if !w.CanSend() {
		t.Fatal("CanSend should recover after the hour window")
	}
}

func TestCanSendDoesNotConsume(t *testing.T) {
	t.Parallel()
	w := New(Config{PerMinute: 1, PerHour: 10})
	for i := 0; i < 5; i++ {
		if !w.CanSend() {
			t.Fatal("CanSend must not consume quota")
		}
	}
	w.RecordSend(1)
	if w.CanSend() {
		t.Fatal("RecordSend should consume quota")
	}
}

func TestRecordSendMultiple(t *testing.T) {
	t.Parallel()
	w := New(Config{PerMinute: 10, PerHour: 10})
	w.RecordSend(4)
	m, h := w.Counts()
	if m != 4 || h != 4 {
		t.Fatalf("counts = %d/%d, want 4/4", m, h)
	}
}
