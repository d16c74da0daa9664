// Package slack is a send-only delivery channel posting to Slack channels
// or user DMs. Recipients are channel IDs (the "slack:" prefix is stripped
// by the mux).
package slack

import (
	"context"
	"errors"
	"strings"

	slackapi "github.com/slack-go/slack"

	"taskping/internal/channel"
	logx "taskping/pkg/logx"
)

type Config struct {
	Token string
}

type Adapter struct {
	api *slackapi.Client
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("slack token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{api: slackapi.New(cfg.Token), log: log}, nil
}

func (a *Adapter) Name() string { return "slack" }

func (a *Adapter) SendText(ctx context.Context, recipient, text string) (channel.Result, error) {
	ch := strings.TrimSpace(recipient)
	if ch == "" {
		return channel.Result{}, errors.New("slack recipient is empty")
	}
	_, _, err := a.api.PostMessageContext(ctx, ch,
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		a.log.Debug("slack send failed", logx.String("channel", ch), logx.Err(err))
		return channel.Result{}, err
	}
	return channel.Result{OK: true}, nil
}
