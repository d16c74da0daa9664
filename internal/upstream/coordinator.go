package upstream

import (
	"context"
	"sync"
	"time"

	"taskping/internal/eventbus"
	logx "taskping/pkg/logx"
)

// Coordinator decides how upstream changes reach us: push (webhook) when
// the upstream accepts our registration, polling emulation otherwise.
type Coordinator struct {
	client *Client
	log    logx.Logger
	bus    eventbus.Bus

	mu            sync.Mutex
	registrations []Webhook
	polling       bool
}

func NewCoordinator(client *Client, log logx.Logger, bus eventbus.Bus) *Coordinator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Coordinator{client: client, log: log, bus: bus}
}

// RegisterOrFallback issues exactly one push-subscription request and
// reports whether push mode is active. Any failure (non-2xx, timeout,
// transport error) flips the coordinator to polling mode.
//
// The registration is never retried: the upstream create call is not
// idempotent, and a retry after an ambiguous failure risks a duplicate
// subscription (and duplicated deliveries).
func (c *Coordinator) RegisterOrFallback(ctx context.Context, callbackURL string) bool {
	wh, err := c.client.CreateWebhook(ctx, callbackURL, DefaultEvents())
	if err != nil {
		c.log.Warn("webhook registration failed, falling back to polling", logx.Err(err))
		c.mu.Lock()
		c.polling = true
		c.mu.Unlock()
		if c.bus != nil {
			c.bus.Publish(eventbus.Event{Type: eventbus.EventWebhookFallback, Time: time.Now(), Data: err.Error()})
		}
		return false
	}

	c.mu.Lock()
	c.registrations = append(c.registrations, wh)
	c.mu.Unlock()
	c.log.Info("push mode active", logx.String("webhook_id", wh.ID), logx.String("endpoint", wh.Endpoint))
	return true
}

// PollingEnabled reports whether the fallback is active.
func (c *Coordinator) PollingEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polling
}

// Registrations returns the locally known registrations.
func (c *Coordinator) Registrations() []Webhook {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Webhook(nil), c.registrations...)
}

// Webhooks lists registrations from the upstream and refreshes the local
// view. Thin pass-through.
func (c *Coordinator) Webhooks(ctx context.Context) ([]Webhook, error) {
	whs, err := c.client.ListWebhooks(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.registrations = append([]Webhook(nil), whs...)
	c.mu.Unlock()
	return whs, nil
}

// DeleteWebhook removes a registration upstream and locally. Thin
// pass-through.
func (c *Coordinator) DeleteWebhook(ctx context.Context, id string) error {
	if err := c.client.DeleteWebhook(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	kept := c.registrations[:0]
	for _, w := range c.registrations {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	c.registrations = kept
	c.mu.Unlock()
	return nil
}

// Status is the coordinator's observable state.
type Status struct {
	Registrations  int  `json:"registrations"`
	PollingEnabled bool `json:"polling_enabled"`
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Registrations: len(c.registrations), PollingEnabled: c.polling}
}
