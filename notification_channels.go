package insurai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// LogChannel writes notifications to a logger. It is the default transport
// when no external mailer is configured.
type LogChannel struct {
	logger Logger
}

func NewLogChannel(logger Logger) *LogChannel {
	return &LogChannel{logger: normalizeLogger(logger)}
}

func (c *LogChannel) Name() string {
	return "log"
}

func (c *LogChannel) Deliver(_ context.Context, n Notification) error {
	c.logger.Info("notification",
		"id", n.ID,
		"kind", n.Kind,
		"to", n.Recipient.Email,
		"role", n.Recipient.Role,
		"subject", n.Subject,
	)
	return nil
}

const (
	webhookRequestTimeout = 5 * time.Second
	webhookMaxRetries     = 3
)

// WebhookChannel posts notifications as JSON. Server errors are retried,
// client errors are not.
type WebhookChannel struct {
	url     string
	headers map[string]string
	client  *http.Client
	retries int
	backoff time.Duration
}

// WebhookOption customizes the webhook channel.
type WebhookOption func(*WebhookChannel)

func WithWebhookClient(client *http.Client) WebhookOption {
	return func(w *WebhookChannel) {
		if client != nil {
			w.client = client
		}
	}
}

func WithWebhookHeaders(headers map[string]string) WebhookOption {
	return func(w *WebhookChannel) {
		for k, v := range headers {
			w.headers[k] = v
		}
	}
}

// WithWebhookBackoff sets the base delay between attempts.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *WebhookChannel) {
		if d >= 0 {
			w.backoff = d
		}
	}
}

func NewWebhookChannel(url string, opts ...WebhookOption) *WebhookChannel {
	w := &WebhookChannel{
		url:     url,
		headers: map[string]string{},
		client:  &http.Client{Timeout: webhookRequestTimeout},
		retries: webhookMaxRetries,
		backoff: time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

func (w *WebhookChannel) Name() string {
	return "webhook"
}

func (w *WebhookChannel) Deliver(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode notification")
	}

	var lastErr error
	for attempt := 0; attempt < w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * w.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range w.headers {
			req.Header.Set(k, v)
		}

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return goerrors.New(fmt.Sprintf("webhook rejected: HTTP %d", resp.StatusCode), goerrors.CategoryExternal).
				WithCode(resp.StatusCode)
		}
		lastErr = fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	}

	return goerrors.Wrap(lastErr, goerrors.CategoryExternal, fmt.Sprintf("webhook failed after %d attempts", w.retries))
}
