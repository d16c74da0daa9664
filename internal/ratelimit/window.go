// Package ratelimit implements the provider send-quota tracker: two
// sliding windows (per minute, per hour) of send timestamps.
//
// Window is NOT internally synchronized. The scheduler's delivery loop is
// its single sequential caller; wrap it yourself before sharing it across
// goroutines.
package ratelimit

import "time"

const (
	minuteSpan = time.Minute
	hourSpan   = time.Hour

	DefaultPerMinute = 30
	DefaultPerHour   = 1000
)

type Config struct {
	PerMinute int
	PerHour   int
}

// Window tracks recent sends against both caps. Both timestamp queues are
// kept sorted ascending by insertion; stale entries are pruned before
// every read.
type Window struct {
	cfg Config

	perMinute []time.Time
	perHour   []time.Time

	now func() time.Time
}

func New(cfg Config) *Window {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = DefaultPerMinute
	}
	if cfg.PerHour <= 0 {
		cfg.PerHour = DefaultPerHour
	}
	return &Window{cfg: cfg, now: time.Now}
}

// CanSend prunes both windows and reports whether one more send fits
// under both caps. It never consumes quota.
func (w *Window) CanSend() bool {
	w.prune(w.now())
	return len(w.perMinute) < w.cfg.PerMinute && len(w.perHour) < w.cfg.PerHour
}

// RecordSend accounts for n messages sent now.
func (w *Window) RecordSend(n int) {
	now := w.now()
	for i := 0; i < n; i++ {
		w.perMinute = append(w.perMinute, now)
		w.perHour = append(w.perHour, now)
	}
}

// Counts prunes and returns the current occupancy of both windows.
func (w *Window) Counts() (minute, hour int) {
	w.prune(w.now())
	return len(w.perMinute), len(w.perHour)
}

func (w *Window) prune(now time.Time) {
	w.perMinute = trimBefore(w.perMinute, now.Add(-minuteSpan))
	w.perHour = trimBefore(w.perHour, now.Add(-hourSpan))
}

// trimBefore drops leading entries at or before cutoff. Queues are
// insertion-ordered, so only a prefix can be stale.
func trimBefore(q []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(q) && !q[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return q
	}
	return append(q[:0], q[i:]...)
}
