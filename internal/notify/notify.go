// Package notify delivers fire-and-forget supervision alerts to external
// channels. Delivery is best effort: failures are captured in an explicit
// result and logged, never propagated, so notification reliability can be
// audited without gating any safety decision.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Message is one outbound supervision alert.
type Message struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Agent    string    `json:"agent,omitempty"`
	Severity string    `json:"severity,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

// Result records the outcome of one delivery attempt.
type Result struct {
	Channel string
	OK      bool
	Err     error
	Elapsed time.Duration
}

// Notifier is an outbound alert channel.
type Notifier interface {
	// Notify attempts delivery and reports the outcome. Implementations
	// never panic and bound their own I/O.
	Notify(ctx context.Context, msg Message) Result
	// Name identifies the channel in logs and results.
	Name() string
}

// DefaultWebhookTimeout bounds a single webhook POST.
const DefaultWebhookTimeout = 5 * time.Second

// Webhook posts messages as JSON to an HTTP endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier for url.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: DefaultWebhookTimeout},
	}
}

// Name implements Notifier.
func (w *Webhook) Name() string { return "webhook" }

// Notify posts the message. Non-2xx responses count as failures.
func (w *Webhook) Notify(ctx context.Context, msg Message) Result {
	start := time.Now()
	res := Result{Channel: w.Name()}

	payload, err := json.Marshal(msg)
	if err != nil {
		res.Err = fmt.Errorf("marshal message: %w", err)
		res.Elapsed = time.Since(start)
		return res
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		res.Err = fmt.Errorf("build request: %w", err)
		res.Elapsed = time.Since(start)
		return res
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("post webhook: %w", err)
		res.Elapsed = time.Since(start)
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	res.Elapsed = time.Since(start)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Err = fmt.Errorf("webhook returned %s", resp.Status)
		return res
	}
	res.OK = true
	return res
}

// LogNotifier writes alerts to the structured log. It always succeeds and
// serves as the fallback channel when no webhook is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// Name implements Notifier.
func (n *LogNotifier) Name() string { return "log" }

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) Result {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("supervision alert",
		"title", msg.Title, "agent", msg.Agent, "severity", msg.Severity, "body", msg.Body)
	return Result{Channel: n.Name(), OK: true}
}

// Fanout delivers to every configured channel and logs each outcome at
// the call site.
type Fanout struct {
	channels []Notifier
	logger   *slog.Logger
}

// NewFanout creates a Fanout over the given channels.
func NewFanout(logger *slog.Logger, channels ...Notifier) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{channels: channels, logger: logger}
}

// Name implements Notifier.
func (f *Fanout) Name() string { return "fanout" }

// Notify delivers msg to all channels. The result is OK if every channel
// succeeded; the first failure is carried as Err.
func (f *Fanout) Notify(ctx context.Context, msg Message) Result {
	start := time.Now()
	out := Result{Channel: f.Name(), OK: true}
	for _, ch := range f.channels {
		res := ch.Notify(ctx, msg)
		if res.OK {
			f.logger.Debug("notification delivered",
				"channel", res.Channel, "elapsed", res.Elapsed)
			continue
		}
		f.logger.Warn("notification failed",
			"channel", res.Channel, "elapsed", res.Elapsed, "error", res.Err)
		if out.Err == nil {
			out.Err = res.Err
		}
		out.OK = false
	}
	out.Elapsed = time.Since(start)
	return out
}
