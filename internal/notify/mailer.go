package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebhookMailer posts messages to an HTTP mail relay.
type WebhookMailer struct {
	URL    string
	From   string
	Client *http.Client
}

type mailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (m WebhookMailer) Send(ctx context.Context, to, subject, body string) error {
	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	b, err := json.Marshal(mailRequest{From: m.From, To: to, Subject: subject, Text: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay error: %s", resp.Status)
	}
	return nil
}

// LogMailer only records what would have been sent.
type LogMailer struct {
	Logger zerolog.Logger
}

func (m LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.Logger.Info().Str("to", to).Str("subject", subject).Msg("email (log only)")
	return nil
}
