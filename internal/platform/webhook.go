package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Webhook delivers messages by POSTing them as JSON to a platform
// endpoint. Any 2xx status counts as delivered.
type Webhook struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhook creates a webhook connector. Outgoing requests carry the
// caller's trace context.
func NewWebhook(name, url string, timeout time.Duration) *Webhook {
	return &Webhook{
		name: name,
		url:  strings.TrimSpace(url),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Name returns the platform the webhook serves.
func (w *Webhook) Name() string { return w.name }

// Send posts msg to the webhook.
func (w *Webhook) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s webhook: %w", w.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s webhook: status %d: %s", w.name, resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
