package audit

import "time"

// EventKind tags a gateway event. The set is closed: Translator.Handle
// switches over every kind, so adding one is a compile-visible change.
type EventKind string

const (
	KindMessageCreate  EventKind = "message_create"
	KindMessageUpdate  EventKind = "message_update"
	KindMessageDelete  EventKind = "message_delete"
	KindMemberJoin     EventKind = "member_join"
	KindMemberLeave    EventKind = "member_leave"
	KindBanAdd         EventKind = "ban_add"
	KindBanRemove      EventKind = "ban_remove"
	KindChannelCreate  EventKind = "channel_create"
	KindChannelUpdate  EventKind = "channel_update"
	KindChannelDelete  EventKind = "channel_delete"
	KindEmojiUpdate    EventKind = "emoji_update"
	KindReactionAdd    EventKind = "reaction_add"
	KindReactionRemove EventKind = "reaction_remove"
	KindReactionClear  EventKind = "reaction_clear"
)

// Event is one gateway event. Exactly one payload pointer matching Kind
// is set.
type Event struct {
	Kind     EventKind
	Message  *MessageEvent
	Member   *MemberEvent
	Channel  *ChannelEvent
	Emoji    *EmojiEvent
	Reaction *ReactionEvent
}

// MessageEvent carries create/update/delete payloads.
//
// On update, nil pointer fields mean "not present in the gateway payload"
// and leave the stored value untouched; each non-nil field is diffed
// independently.
type MessageEvent struct {
	MessageID string
	ChannelID string
	GuildID   string
	AuthorID  string

	Content     *string
	Attachments *[]string
	Embeds      *[]string
	Pinned      *bool

	At time.Time
}

type MemberEvent struct {
	GuildID  string
	UserID   string
	Username string
}

type ChannelEvent struct {
	GuildID   string
	ChannelID string
	Name      string
}

type EmojiEvent struct {
	GuildID string
	Names   []string
}

type ReactionEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string
}

// Ptr is a small helper for building update events.
func Ptr[T any](v T) *T { return &v }
