package model

// EventMask is the per-guild audit event bitset.
//
// The bit order is persisted in guild rows; do not renumber.
type EventMask uint32

const (
	EventMessageDelete EventMask = 1 << iota
	EventMessageEdit
	EventMemberJoin
	EventMemberLeave
	EventBanAdd
	EventBanRemove
	EventChannelCreate
	EventChannelDelete
	EventChannelUpdate
	EventEmojiUpdate
	EventReactionAdd
	EventReactionRemove
	EventReactionClear
	EventMessagePin
)

// EventAll has every defined bit set.
const EventAll = EventMessagePin<<1 - 1

// Has reports whether every bit of e is set in m.
func (m EventMask) Has(e EventMask) bool { return m&e == e }

// String names single-bit masks; combined masks render as "mask(0x...)".
func (m EventMask) String() string {
	switch m {
	case EventMessageDelete:
		return "message_delete"
	case EventMessageEdit:
		return "message_edit"
	case EventMemberJoin:
		return "member_join"
	case EventMemberLeave:
		return "member_leave"
	case EventBanAdd:
		return "ban_add"
	case EventBanRemove:
		return "ban_remove"
	case EventChannelCreate:
		return "channel_create"
	case EventChannelDelete:
		return "channel_delete"
	case EventChannelUpdate:
		return "channel_update"
	case EventEmojiUpdate:
		return "emoji_update"
	case EventReactionAdd:
		return "reaction_add"
	case EventReactionRemove:
		return "reaction_remove"
	case EventReactionClear:
		return "reaction_clear"
	case EventMessagePin:
		return "message_pin"
	}
	return "mask(" + hex32(uint32(m)) + ")"
}

func hex32(v uint32) string {
	const digits = "0123456789abcdef"
	b := make([]byte, 0, 10)
	b = append(b, '0', 'x')
	started := false
	for i := 7; i >= 0; i-- {
		d := digits[(v>>(uint(i)*4))&0xf]
		if d != '0' || started || i == 0 {
			started = true
			b = append(b, d)
		}
	}
	return string(b)
}
