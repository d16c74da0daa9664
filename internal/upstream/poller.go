package upstream

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"taskping/internal/eventbus"
	logx "taskping/pkg/logx"
)

const (
	DefaultPollInterval = 60 * time.Second
	// pollLookback is the trailing change window each cycle fetches.
	// Wide on purpose: cycles overlap, so a task is seen more than once
	// and consumers must tolerate duplicates (at-least-once).
	pollLookback = 24 * time.Hour
)

// Batch receives one polling cycle's changed tasks.
type Batch func(ctx context.Context, tasks []Task) error

// Poller emulates push notifications by periodically pulling recently
// changed tasks. It only runs while the coordinator is in polling mode.
type Poller struct {
	client *Client
	log    logx.Logger
	bus    eventbus.Bus

	mu       sync.Mutex
	interval time.Duration
	running  bool
	lastPoll time.Time
}

func NewPoller(client *Client, interval time.Duration, log logx.Logger, bus eventbus.Bus) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{client: client, interval: interval, log: log, bus: bus}
}

// Apply updates the poll interval; takes effect at the next cycle.
func (p *Poller) Apply(interval time.Duration) {
	if interval <= 0 {
		return
	}
	p.mu.Lock()
	p.interval = interval
	p.mu.Unlock()
}

// Run blocks, executing cycles until Stop() or ctx cancellation. The stop
// flag is observed once per iteration, so stop latency is bounded by one
// interval. A failed cycle (fetch or callback) is logged and the loop
// keeps going.
func (p *Poller) Run(ctx context.Context, fn Batch) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.log.Info("polling started", logx.Duration("interval", p.currentInterval()))
	for {
		if ctx.Err() != nil || !p.Running() {
			p.log.Info("polling stopped")
			return
		}

		if err := p.cycle(ctx, fn); err != nil {
			p.log.Warn("poll cycle failed", logx.Err(err))
		}

		t := time.NewTimer(p.currentInterval())
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
}

// Stop requests a cooperative shutdown. The loop exits at the next
// iteration boundary, never mid-fetch.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastPoll is the start time of the most recent completed cycle.
func (p *Poller) LastPoll() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll
}

func (p *Poller) currentInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) cycle(ctx context.Context, fn Batch) (err error) {
	// A panicking callback must not kill the loop.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll callback panic: %v", r)
			p.log.Error("panic in poll cycle", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	started := time.Now()
	tasks, err := p.client.ChangedTasks(ctx, started.Add(-pollLookback), true)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.lastPoll = started
	p.mu.Unlock()

	if len(tasks) == 0 {
		return nil
	}

	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: eventbus.EventPollBatch, Time: started, Data: len(tasks)})
	}
	if fn != nil {
		if err := fn(ctx, tasks); err != nil {
			return fmt.Errorf("poll callback: %w", err)
		}
	}
	p.log.Debug("poll cycle done", logx.Int("tasks", len(tasks)), logx.Duration("took", time.Since(started)))
	return nil
}
