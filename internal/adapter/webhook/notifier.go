// Package webhook implements a notifier.Notifier posting JSON payloads
// to a chat webhook (Google Chat, Slack-compatible endpoints).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quizmasterhq/quizmaster/internal/port/notifier"
)

const providerName = "webhook"

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		return NewNotifier(config["url"]), nil
	})
}

// Notifier posts messages as {"text": ...} to a configured webhook URL.
type Notifier struct {
	url        string
	httpClient *http.Client
}

// NewNotifier creates a webhook notifier. An empty URL leaves it
// unconfigured; Send then reports ErrNotConfigured.
func NewNotifier(url string) *Notifier {
	return &Notifier{
		url:        url,
		httpClient: http.DefaultClient,
	}
}

func (n *Notifier) Name() string { return providerName }

// Send posts the message. The receiving end only reads the text field;
// source travels along for endpoints that log full payloads.
func (n *Notifier) Send(ctx context.Context, msg notifier.Message) error {
	if n.url == "" {
		return notifier.ErrNotConfigured
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
