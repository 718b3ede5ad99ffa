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
)

// WebhookClient executes webhooks over plain HTTP. It covers the one
// collaborator operation that needs no gateway session, so webhook-only
// deployments can run without a platform client.
type WebhookClient struct {
	base   string
	client *http.Client
}

// NewWebhookClient creates an executor posting to {base}/{id}/{token}.
func NewWebhookClient(base string) *WebhookClient {
	return &WebhookClient{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookBody struct {
	Content string         `json:"content,omitempty"`
	Embeds  []webhookEmbed `json:"embeds,omitempty"`
}

type webhookEmbed struct {
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Color       int           `json:"color,omitempty"`
	Image       *webhookImage `json:"image,omitempty"`
}

type webhookImage struct {
	URL string `json:"url"`
}

func (c *WebhookClient) ExecuteWebhook(ctx context.Context, ref WebhookRef, p Payload) error {
	body := webhookBody{Content: p.Content}
	if p.Embed != nil {
		e := webhookEmbed{
			Title:       p.Embed.Title,
			Description: p.Embed.Description,
			URL:         p.Embed.URL,
			Color:       p.Embed.Color,
		}
		if p.Embed.ImageURL != "" {
			e.Image = &webhookImage{URL: p.Embed.ImageURL}
		}
		body.Embeds = []webhookEmbed{e}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}

	url := c.base + "/" + ref.ID + "/" + ref.Token
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute webhook: %w", err)
	}
	defer func() { _, _ = io.Copy(io.Discard, resp.Body); _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: webhook %s", ErrStaleReference, ref.ID)
	case resp.StatusCode >= 300:
		return fmt.Errorf("execute webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
