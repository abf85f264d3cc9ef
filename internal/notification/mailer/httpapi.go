// Package mailer implements notification.Sender against a transactional
// mail provider's HTTP API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client sends mail via the provider's JSON API.
type Client struct {
	APIKey     string
	BaseURL    string
	From       string
	HTTPClient *http.Client
}

// NewClient returns a client that uses the given API key, base URL, and
// sender address.
func NewClient(apiKey, baseURL, from string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		From:       from,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send posts one message to the provider. Does not log message bodies; they
// can contain passcodes.
func (c *Client) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if c.APIKey == "" || c.BaseURL == "" {
		return fmt.Errorf("mail: provider not configured")
	}
	body := map[string]any{
		"from":    c.From,
		"to":      to,
		"subject": subject,
		"html":    htmlBody,
		"text":    textBody,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
