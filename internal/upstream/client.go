// Package upstream talks to the task-tracking service: webhook
// subscription management and the changed-task query that backs polling
// mode.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "taskping/pkg/logx"
)

const defaultRequestTimeout = 15 * time.Second

// StatusError wraps a non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
}

type ClientConfig struct {
	BaseURL     string
	APIToken    string
	WorkspaceID string
	// RequestsPerSec paces all API calls; the upstream enforces its own
	// quota and bans bursty clients.
	RequestsPerSec int
	Timeout        time.Duration
}

type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewClient(cfg ClientConfig, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, errors.New("upstream api token is empty")
	}
	if strings.TrimSpace(cfg.WorkspaceID) == "" {
		return nil, errors.New("upstream workspace id is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.clickup.com/api/v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}, nil
}

// CreateWebhook registers a push subscription. Called at most once per
// process start; duplicate registrations on the upstream side are the
// caller's problem to avoid.
func (c *Client) CreateWebhook(ctx context.Context, endpoint string, events []string) (Webhook, error) {
	payload := map[string]any{
		"endpoint": endpoint,
		"events":   events,
		"space_id": c.cfg.WorkspaceID,
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/webhook", payload, &resp); err != nil {
		return Webhook{}, err
	}
	return Webhook{
		ID:       resp.ID,
		Endpoint: endpoint,
		Events:   append([]string(nil), events...),
		SpaceID:  c.cfg.WorkspaceID,
		Status:   "active",
	}, nil
}

// ListWebhooks returns the registrations currently held upstream.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var resp struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	if err := c.do(ctx, http.MethodGet, "/webhook", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Webhooks, nil
}

// DeleteWebhook removes one registration by id.
func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/webhook/"+url.PathEscape(id), nil, nil)
}

// ChangedTasks fetches tasks changed since the given time, which backs
// the polling emulation of push mode.
func (c *Client) ChangedTasks(ctx context.Context, since time.Time, includeCompleted bool) ([]Task, error) {
	q := url.Values{}
	q.Set("due_date_gt", strconv.FormatInt(since.UnixMilli(), 10))
	q.Set("include_closed", strconv.FormatBool(includeCompleted))
	q.Set("limit", "100")

	path := "/team/" + url.PathEscape(c.cfg.WorkspaceID) + "/task?" + q.Encode()
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.cfg.APIToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upstream %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
