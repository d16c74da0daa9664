// Package whatsapp sends messages through an Evolution-style WhatsApp
// HTTP gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taskping/internal/channel"
	logx "taskping/pkg/logx"
)

type Config struct {
	BaseURL  string
	APIKey   string
	Instance string
	Timeout  time.Duration
}

// Gateway is the HTTP adapter for the real WhatsApp provider.
type Gateway struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Instance == "" {
		cfg.Instance = "main"
	}
	return &Gateway{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

func (g *Gateway) Name() string { return "whatsapp" }

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

func (g *Gateway) SendText(ctx context.Context, recipient, text string) (channel.Result, error) {
	// The gateway wants bare digits, no "+".
	number := strings.TrimPrefix(recipient, "+")

	body, err := json.Marshal(sendTextRequest{Number: number, Text: text})
	if err != nil {
		return channel.Result{}, err
	}

	url := fmt.Sprintf("%s/message/sendText/%s", strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return channel.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.cfg.APIKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return channel.Result{}, fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Keep a short body excerpt; gateways put the reason there.
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		g.log.Debug("gateway rejected send",
			logx.Int("status", resp.StatusCode),
			logx.String("body", string(excerpt)))
		return channel.Result{OK: false, Detail: fmt.Sprintf("gateway status %d", resp.StatusCode)}, nil
	}
	return channel.Result{OK: true}, nil
}
