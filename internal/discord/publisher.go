// Package discord posts notification text to Discord webhooks.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"meetupnotify/internal/api"
	"meetupnotify/internal/format"
	appLog "meetupnotify/internal/log"
)

// webhookPayload is the JSON body of an execute-webhook call.
type webhookPayload struct {
	Content string `json:"content"`
}

// Publisher delivers messages to webhooks. Delivery is best effort: errors
// are returned for the caller to log, and nothing is retried.
type Publisher struct {
	client api.HTTPClient
	dryRun bool
}

// NewPublisher creates a Publisher. In dry-run mode messages are only
// logged and client is never used.
func NewPublisher(client api.HTTPClient, dryRun bool) *Publisher {
	return &Publisher{client: client, dryRun: dryRun}
}

// Publish posts text to webhook, into threadID when it is set. Text longer
// than Discord's limit is sent as several consecutive messages.
func (p *Publisher) Publish(ctx context.Context, webhook, text, threadID string) error {
	if p.dryRun {
		appLog.Info("[DRY RUN] "+text, "thread_id", threadID)
		return nil
	}

	target, err := webhookURL(webhook, threadID)
	if err != nil {
		return err
	}

	for _, chunk := range format.Split(text, format.MaxMessageLen) {
		if err := p.post(ctx, target, chunk); err != nil {
			return err
		}
	}

	appLog.Info("published message", "thread_id", threadID, "chars", len(text))
	appLog.Debug("published message text", "text", text)
	return nil
}

func (p *Publisher) post(ctx context.Context, target, content string) error {
	body, err := json.Marshal(webhookPayload{Content: content})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", api.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if err := api.CheckResponse(resp); err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}

func webhookURL(webhook, threadID string) (string, error) {
	u, err := url.Parse(webhook)
	if err != nil {
		return "", fmt.Errorf("discord webhook url: %w", err)
	}
	if threadID != "" {
		q := u.Query()
		q.Set("thread_id", threadID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
