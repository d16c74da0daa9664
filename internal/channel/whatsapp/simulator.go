package whatsapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskping/internal/channel"
)

// SimMessage is one message recorded by the simulator.
type SimMessage struct {
	ID        string
	Recipient string
	Text      string
	At        time.Time
}

// Simulator is an in-process stand-in for the gateway, used in development
// mode and in tests. It records every send and can be primed to fail for
// specific recipients.
//
// Safe for concurrent use.
type Simulator struct {
	mu   sync.Mutex
	sent []SimMessage
	fail map[string]string
}

func NewSimulator() *Simulator {
	return &Simulator{fail: map[string]string{}}
}

func (s *Simulator) Name() string { return "whatsapp-simulator" }

// FailFor makes subsequent sends to recipient report a failure Result
// with the given detail.
func (s *Simulator) FailFor(recipient, detail string) {
	s.mu.Lock()
	s.fail[recipient] = detail
	s.mu.Unlock()
}

func (s *Simulator) SendText(ctx context.Context, recipient, text string) (channel.Result, error) {
	if err := ctx.Err(); err != nil {
		return channel.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if detail, ok := s.fail[recipient]; ok {
		return channel.Result{OK: false, Detail: detail}, nil
	}
	s.sent = append(s.sent, SimMessage{
		ID:        fmt.Sprintf("sim_%d", len(s.sent)+1),
		Recipient: recipient,
		Text:      text,
		At:        time.Now(),
	})
	return channel.Result{OK: true}, nil
}

// Sent returns a copy of everything recorded so far.
func (s *Simulator) Sent() []SimMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SimMessage(nil), s.sent...)
}
