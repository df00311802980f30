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

	"github.com/cenkalti/backoff/v5"
)

type Kind string

const (
	KindReceipt Kind = "receipt"
	KindAlert   Kind = "operator_alert"
)

type Message struct {
	Kind    Kind   `json:"kind"`
	OrderID string `json:"order_id"`
	To      string `json:"to,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers one message. Errors wrapped with backoff.Permanent are not retried.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(ctx context.Context, m Message) error {
	s.Log.Info("notification", "kind", m.Kind, "order_id", m.OrderID, "to", m.To, "subject", m.Subject)
	return nil
}

// WebhookSender POSTs each message as JSON to a relay (mailer, chat hook).
type WebhookSender struct {
	URL    string
	Client *http.Client
}

func (s WebhookSender) Send(ctx context.Context, m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(b))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("relay answered %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("relay rejected message: %d", resp.StatusCode))
	}
}
