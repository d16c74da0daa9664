// Package telegram is a send-only delivery channel over the Telegram Bot
// API. Recipients are chat IDs (the "tg:" prefix is stripped by the mux).
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"taskping/internal/channel"
	logx "taskping/pkg/logx"
)

type Config struct {
	Token string
}

type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	// Send-only: no poller, we never consume updates.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{bot: b, log: log}, nil
}

func (a *Adapter) Name() string { return "telegram" }

func (a *Adapter) SendText(ctx context.Context, recipient, text string) (channel.Result, error) {
	if err := ctx.Err(); err != nil {
		return channel.Result{}, err
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil {
		return channel.Result{}, errors.New("telegram recipient must be a chat id")
	}
	_, err = a.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		a.log.Debug("telegram send failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return channel.Result{}, err
	}
	return channel.Result{OK: true}, nil
}
