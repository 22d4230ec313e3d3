package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embed is a Discord rich embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is one titled section of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the embed footer line.
type EmbedFooter struct {
	Text string `json:"text"`
}

// Webhook posts to a single Discord webhook URL. Execute uses wait=true so
// Discord returns the created message, whose ID is needed to edit the live
// standings message in place later.
type Webhook struct {
	url      string
	username string
	httpc    *http.Client
}

// NewWebhook creates a webhook client. Returns nil when no URL is configured
// so callers can carry a disabled webhook without special-casing.
func NewWebhook(url, username string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		url:      url,
		username: username,
		httpc:    &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// Execute posts a message and returns the created message ID.
func (w *Webhook) Execute(ctx context.Context, content string, embeds []Embed) (string, error) {
	body, err := json.Marshal(webhookPayload{Username: w.username, Content: content, Embeds: embeds})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url+"?wait=true", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("webhook post: status %d: %s", resp.StatusCode, data)
	}

	var msg struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("webhook post: decoding response: %w", err)
	}
	return msg.ID, nil
}

// EditMessage replaces the content of a previously posted webhook message.
func (w *Webhook) EditMessage(ctx context.Context, messageID, content string, embeds []Embed) error {
	body, err := json.Marshal(webhookPayload{Content: content, Embeds: embeds})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, w.url+"/messages/"+messageID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook edit: status %d: %s", resp.StatusCode, data)
	}
	return nil
}
