// Package platform declares the chat-platform collaborator surface.
//
// The concrete client (gateway connection, REST calls, auth) lives outside
// this module; the pipeline only depends on these interfaces.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/vicky5124/robo-arc-sub000/internal/model"
)

// ErrStaleReference marks an edit or delete against a message that no
// longer exists. Benign: callers skip, at most logging at debug.
var ErrStaleReference = errors.New("message reference no longer exists")

// Embed is the rich portion of a payload. Fields mirror the platform's
// embed object loosely; empty fields are omitted by the client.
type Embed struct {
	Title       string
	Description string
	URL         string
	ImageURL    string
	Color       int
}

// Payload is what the pipeline hands the platform client for one message.
type Payload struct {
	Content string
	Embed   *Embed
}

// Sender posts a new message to a channel.
type Sender interface {
	Send(ctx context.Context, channelID string, p Payload) (model.MessageRef, error)
}

// Editor replaces the payload of an existing message.
// Returns ErrStaleReference (possibly wrapped) when ref is gone.
type Editor interface {
	Edit(ctx context.Context, ref model.MessageRef, p Payload) error
}

// BulkDeleter removes a batch of messages from one channel.
type BulkDeleter interface {
	DeleteBulk(ctx context.Context, channelID string, messageIDs []string) error
}

// WebhookExecutor posts a payload through a parsed webhook reference.
type WebhookExecutor interface {
	ExecuteWebhook(ctx context.Context, ref WebhookRef, p Payload) error
}

// Client is the full collaborator surface the pipeline can use.
type Client interface {
	Sender
	Editor
	BulkDeleter
	WebhookExecutor
}

// WebhookRef identifies one webhook endpoint.
type WebhookRef struct {
	ID    string
	Token string
}

// ParseWebhookURL extracts the id and token from a webhook URL.
// They are the last two path segments.
func ParseWebhookURL(raw string) (WebhookRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return WebhookRef{}, fmt.Errorf("parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return WebhookRef{}, fmt.Errorf("webhook url %q: path has no id/token segments", raw)
	}
	id := parts[len(parts)-2]
	token := parts[len(parts)-1]
	if id == "" || token == "" {
		return WebhookRef{}, fmt.Errorf("webhook url %q: empty id or token", raw)
	}
	return WebhookRef{ID: id, Token: token}, nil
}
