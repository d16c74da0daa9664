// Package channel abstracts "send one message to one recipient" over the
// concrete outbound transports (WhatsApp gateway, Telegram, Slack).
package channel

import (
	"context"
	"errors"
	"strings"
)

var ErrNoRoute = errors.New("no channel for recipient")

// Result is the provider-level outcome of a single send. OK=false with a
// nil error means the provider accepted the call but reported failure.
type Result struct {
	OK     bool
	Detail string
}

// Adapter sends one text message to one recipient address.
//
// Recipient format is adapter-specific: canonical "+"-prefixed numbers for
// WhatsApp, "tg:<chat-id>" for Telegram, "slack:<channel>" for Slack.
type Adapter interface {
	Name() string
	SendText(ctx context.Context, recipient, text string) (Result, error)
}

// Mux routes a recipient to an adapter by address prefix. Recipients with
// no registered prefix go to the default adapter (the primary channel).
type Mux struct {
	byPrefix map[string]Adapter
	fallback Adapter
}

func NewMux(fallback Adapter) *Mux {
	return &Mux{byPrefix: map[string]Adapter{}, fallback: fallback}
}

// Route registers an adapter for recipients starting with prefix
// (e.g. "tg:"). The prefix is stripped before the adapter sees the
// recipient.
func (m *Mux) Route(prefix string, a Adapter) {
	m.byPrefix[prefix] = a
}

func (m *Mux) Name() string { return "mux" }

func (m *Mux) SendText(ctx context.Context, recipient, text string) (Result, error) {
	for prefix, a := range m.byPrefix {
		if strings.HasPrefix(recipient, prefix) {
			return a.SendText(ctx, strings.TrimPrefix(recipient, prefix), text)
		}
	}
	if m.fallback == nil {
		return Result{}, ErrNoRoute
	}
	return m.fallback.SendText(ctx, recipient, text)
}
