// Package model defines the domain types shared across the pipeline.
package model

import "time"

// SourceKind says which external API a watch polls.
type SourceKind string

const (
	SourceFeed   SourceKind = "feed"
	SourceStream SourceKind = "stream"
)

// DestinationKind selects the delivery mechanism for one destination.
type DestinationKind string

const (
	DestChannel DestinationKind = "channel"
	DestWebhook DestinationKind = "webhook"
)

// Policy is the content policy a destination is held to.
//
// Restricted destinations accept the broad allow-list; general destinations
// additionally reject the deny-list.
type Policy string

const (
	PolicyGeneral    Policy = "general"
	PolicyRestricted Policy = "restricted"
)

// Destination is a single delivery target of a watch.
type Destination struct {
	Kind       DestinationKind
	Policy     Policy
	ChannelID  string // Kind == DestChannel
	WebhookURL string // Kind == DestWebhook
}

// Watch is a standing subscription to a tag query or a streamer.
//
// Identity is (Source, Query). Watches are created and deleted by an
// external configuration collaborator; the pipeline only appends delivered
// dedup keys.
type Watch struct {
	Source       SourceKind
	Query        string
	Destinations []Destination
	DeliveredIDs map[string]struct{}
}

// Delivered reports whether a dedup key was already delivered for this watch.
func (w *Watch) Delivered(key string) bool {
	_, ok := w.DeliveredIDs[key]
	return ok
}

// MarkDelivered records a dedup key in the in-memory set.
// Persistence is the storage layer's job.
func (w *Watch) MarkDelivered(key string) {
	if w.DeliveredIDs == nil {
		w.DeliveredIDs = map[string]struct{}{}
	}
	w.DeliveredIDs[key] = struct{}{}
}

// ContentItem is one item fetched from the content API. Ephemeral: only the
// dedup key outlives the poll cycle (via Watch.DeliveredIDs).
type ContentItem struct {
	ID        string
	DedupKey  string
	Tags      []string
	MediaURL  string
	SourceURL string
}

// MessageRef points at a message previously sent by the pipeline.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// IsZero reports whether the ref points nowhere.
func (r MessageRef) IsZero() bool { return r.ChannelID == "" && r.MessageID == "" }

// StreamSnapshot is the last-observed state of one streamer.
//
// Persisted so a restart does not re-announce an unchanged stream.
type StreamSnapshot struct {
	StreamerID string
	IsLive     bool
	Title      string
	GameName   string
	LastRef    MessageRef
	UpdatedAt  time.Time
}

// AuditRecord is the durable, append-history representation of a message.
//
// Histories hold the replaced values, oldest first. Consecutive identical
// values are stored once.
type AuditRecord struct {
	MessageID string
	ChannelID string
	GuildID   string
	AuthorID  string

	Content        string
	ContentHistory []string

	Attachments        []string
	AttachmentsHistory [][]string

	Embeds        []string
	EmbedsHistory [][]string

	Pinned    bool
	WasPinned bool // sticky: never reset once true

	CreatedAt time.Time
	EditedAt  *time.Time
	Deleted   bool
}

// LoggingConfig is one guild's audit-delivery configuration.
// Owned by an external collaborator; read-only to the pipeline.
type LoggingConfig struct {
	GuildID    string
	Bitmask    EventMask
	WebhookURL string
}
