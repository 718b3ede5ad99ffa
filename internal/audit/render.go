package audit

import (
	"strings"
	"unicode/utf8"

	"github.com/vicky5124/robo-arc-sub000/internal/model"
	"github.com/vicky5124/robo-arc-sub000/internal/platform"
)

const (
	colorEdit   = 0xffa500
	colorDelete = 0xcc3333
	colorInfo   = 0x3366cc
)

func editPayload(rec model.AuditRecord) platform.Payload {
	var b strings.Builder
	if n := len(rec.ContentHistory); n > 0 {
		b.WriteString("**Before:** ")
		b.WriteString(truncate(rec.ContentHistory[n-1], 900))
		b.WriteString("\n")
	}
	b.WriteString("**After:** ")
	b.WriteString(truncate(rec.Content, 900))
	return platform.Payload{
		Embed: &platform.Embed{
			Title:       "Message edited in <#" + rec.ChannelID + ">",
			Description: b.String(),
			Color:       colorEdit,
		},
	}
}

func pinPayload(rec model.AuditRecord) platform.Payload {
	return platform.Payload{
		Embed: &platform.Embed{
			Title:       "Message pinned in <#" + rec.ChannelID + ">",
			Description: truncate(rec.Content, 1800),
			Color:       colorInfo,
		},
	}
}

func deletePayload(rec model.AuditRecord) platform.Payload {
	var b strings.Builder
	b.WriteString("**Author:** <@")
	b.WriteString(rec.AuthorID)
	b.WriteString(">\n**Content:** ")
	b.WriteString(truncate(rec.Content, 900))
	if len(rec.ContentHistory) > 0 {
		b.WriteString("\n**Earlier versions:** ")
		b.WriteString(truncate(strings.Join(rec.ContentHistory, " | "), 500))
	}
	if len(rec.Attachments) > 0 {
		b.WriteString("\n**Attachments:** ")
		b.WriteString(truncate(strings.Join(rec.Attachments, "\n"), 500))
	}
	return platform.Payload{
		Embed: &platform.Embed{
			Title:       "Message deleted in <#" + rec.ChannelID + ">",
			Description: b.String(),
			Color:       colorDelete,
		},
	}
}

func memberPayload(title string, m *MemberEvent) platform.Payload {
	name := m.Username
	if name == "" {
		name = m.UserID
	}
	return platform.Payload{
		Embed: &platform.Embed{
			Title:       title,
			Description: name + " (<@" + m.UserID + ">)",
			Color:       colorInfo,
		},
	}
}

func channelPayload(title string, c *ChannelEvent) platform.Payload {
	return platform.Payload{
		Embed: &platform.Embed{
			Title:       title,
			Description: "#" + c.Name + " (" + c.ChannelID + ")",
			Color:       colorInfo,
		},
	}
}

func emojiPayload(e *EmojiEvent) platform.Payload {
	return platform.Payload{
		Embed: &platform.Embed{
			Title:       "Emoji list updated",
			Description: truncate(strings.Join(e.Names, " "), 1800),
			Color:       colorInfo,
		},
	}
}

func reactionPayload(title string, r *ReactionEvent) platform.Payload {
	return platform.Payload{
		Embed: &platform.Embed{
			Title:       title,
			Description: r.Emoji + " by <@" + r.UserID + "> on message " + r.MessageID + " in <#" + r.ChannelID + ">",
			Color:       colorInfo,
		},
	}
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	cut := maxN
	if maxN >= 10 {
		cut = maxN - 3
	}
	// Never split a rune at the cut point.
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if maxN < 10 {
		return s[:cut]
	}
	return s[:cut] + "..."
}
