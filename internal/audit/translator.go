// Package audit translates platform gateway events into durable message
// records and, where a guild's logging bitmask enables it, into
// webhook-delivered summaries.
package audit

import (
	"context"
	"fmt"
	"slices"
	"time"

	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"

	"github.com/vicky5124/robo-arc-sub000/internal/deliver"
	"github.com/vicky5124/robo-arc-sub000/internal/model"
	"github.com/vicky5124/robo-arc-sub000/internal/platform"
	"github.com/vicky5124/robo-arc-sub000/internal/storage"
)

type Translator struct {
	store  storage.Store
	fanout *deliver.Service
	log    logx.Logger
}

func NewTranslator(store storage.Store, fanout *deliver.Service, log logx.Logger) *Translator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Translator{store: store, fanout: fanout, log: log}
}

// Handle dispatches one gateway event. Errors are store failures or
// malformed events; delivery failures never surface (the fan-out isolates
// them).
func (t *Translator) Handle(ctx context.Context, ev Event) error {
	if err := checkPayload(ev); err != nil {
		return err
	}
	switch ev.Kind {
	case KindMessageCreate:
		return t.messageCreate(ctx, ev.Message)
	case KindMessageUpdate:
		return t.messageUpdate(ctx, ev.Message)
	case KindMessageDelete:
		return t.messageDelete(ctx, ev.Message)
	case KindMemberJoin:
		return t.notify(ctx, ev.Member.GuildID, model.EventMemberJoin, memberPayload("Member joined", ev.Member))
	case KindMemberLeave:
		return t.notify(ctx, ev.Member.GuildID, model.EventMemberLeave, memberPayload("Member left", ev.Member))
	case KindBanAdd:
		return t.notify(ctx, ev.Member.GuildID, model.EventBanAdd, memberPayload("Member banned", ev.Member))
	case KindBanRemove:
		return t.notify(ctx, ev.Member.GuildID, model.EventBanRemove, memberPayload("Member unbanned", ev.Member))
	case KindChannelCreate:
		return t.notify(ctx, ev.Channel.GuildID, model.EventChannelCreate, channelPayload("Channel created", ev.Channel))
	case KindChannelUpdate:
		return t.notify(ctx, ev.Channel.GuildID, model.EventChannelUpdate, channelPayload("Channel updated", ev.Channel))
	case KindChannelDelete:
		return t.notify(ctx, ev.Channel.GuildID, model.EventChannelDelete, channelPayload("Channel deleted", ev.Channel))
	case KindEmojiUpdate:
		return t.notify(ctx, ev.Emoji.GuildID, model.EventEmojiUpdate, emojiPayload(ev.Emoji))
	case KindReactionAdd:
		return t.notify(ctx, ev.Reaction.GuildID, model.EventReactionAdd, reactionPayload("Reaction added", ev.Reaction))
	case KindReactionRemove:
		return t.notify(ctx, ev.Reaction.GuildID, model.EventReactionRemove, reactionPayload("Reaction removed", ev.Reaction))
	case KindReactionClear:
		return t.notify(ctx, ev.Reaction.GuildID, model.EventReactionClear, reactionPayload("Reactions cleared", ev.Reaction))
	}
	return fmt.Errorf("audit: unknown event kind %q", ev.Kind)
}

// checkPayload rejects events whose Kind does not match the payload
// pointer that is set, so a malformed dispatch can never panic here.
func checkPayload(ev Event) error {
	var ok bool
	switch ev.Kind {
	case KindMessageCreate, KindMessageUpdate, KindMessageDelete:
		ok = ev.Message != nil
	case KindMemberJoin, KindMemberLeave, KindBanAdd, KindBanRemove:
		ok = ev.Member != nil
	case KindChannelCreate, KindChannelUpdate, KindChannelDelete:
		ok = ev.Channel != nil
	case KindEmojiUpdate:
		ok = ev.Emoji != nil
	case KindReactionAdd, KindReactionRemove, KindReactionClear:
		ok = ev.Reaction != nil
	default:
		return fmt.Errorf("audit: unknown event kind %q", ev.Kind)
	}
	if !ok {
		return fmt.Errorf("audit: %s event missing its payload", ev.Kind)
	}
	return nil
}

func (t *Translator) messageCreate(ctx context.Context, m *MessageEvent) error {
	rec := model.AuditRecord{
		MessageID: m.MessageID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		AuthorID:  m.AuthorID,
		CreatedAt: m.At,
	}
	if m.Content != nil {
		rec.Content = *m.Content
	}
	if m.Attachments != nil {
		rec.Attachments = *m.Attachments
	}
	if m.Embeds != nil {
		rec.Embeds = *m.Embeds
	}
	if m.Pinned != nil && *m.Pinned {
		rec.Pinned = true
		rec.WasPinned = true
	}
	return t.store.InsertAudit(ctx, rec)
}

func (t *Translator) messageUpdate(ctx context.Context, m *MessageEvent) error {
	rec, found, err := t.store.GetAudit(ctx, m.MessageID)
	if err != nil {
		return err
	}
	if !found {
		// Message predates tracking; there is no current value to diff.
		t.log.Debug("update for untracked message", logx.String("message_id", m.MessageID))
		return nil
	}
	if rec.Deleted {
		return nil
	}

	edited := false
	pinnedNow := false

	if m.Content != nil && *m.Content != rec.Content {
		rec.ContentHistory = pushHistory(rec.ContentHistory, rec.Content)
		rec.Content = *m.Content
		edited = true
	}
	if m.Attachments != nil && !slices.Equal(*m.Attachments, rec.Attachments) {
		rec.AttachmentsHistory = pushListHistory(rec.AttachmentsHistory, rec.Attachments)
		rec.Attachments = *m.Attachments
		edited = true
	}
	if m.Embeds != nil && !slices.Equal(*m.Embeds, rec.Embeds) {
		rec.EmbedsHistory = pushListHistory(rec.EmbedsHistory, rec.Embeds)
		rec.Embeds = *m.Embeds
		edited = true
	}
	if m.Pinned != nil {
		if *m.Pinned && !rec.Pinned {
			pinnedNow = true
		}
		rec.Pinned = *m.Pinned
		if *m.Pinned {
			// Sticky: survives later unpins.
			rec.WasPinned = true
		}
	}

	if edited {
		at := m.At
		if at.IsZero() {
			at = time.Now()
		}
		rec.EditedAt = &at
	}
	if err := t.store.UpdateAudit(ctx, rec); err != nil {
		return err
	}

	if edited {
		if err := t.notify(ctx, rec.GuildID, model.EventMessageEdit, editPayload(rec)); err != nil {
			return err
		}
	}
	if pinnedNow {
		if err := t.notify(ctx, rec.GuildID, model.EventMessagePin, pinPayload(rec)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Translator) messageDelete(ctx context.Context, m *MessageEvent) error {
	rec, found, err := t.store.GetAudit(ctx, m.MessageID)
	if err != nil {
		return err
	}
	if !found {
		// Never tracked: no audit is possible.
		return nil
	}
	if rec.Deleted {
		return nil
	}
	rec.Deleted = true
	if err := t.store.UpdateAudit(ctx, rec); err != nil {
		return err
	}
	return t.notify(ctx, rec.GuildID, model.EventMessageDelete, deletePayload(rec))
}

// notify delivers a summary iff the guild's bitmask enables the event.
// A missing config row means "no destinations", never an error.
func (t *Translator) notify(ctx context.Context, guildID string, bit model.EventMask, p platform.Payload) error {
	cfg, found, err := t.store.GetLoggingConfig(ctx, guildID)
	if err != nil {
		return err
	}
	if !found || !cfg.Bitmask.Has(bit) || cfg.WebhookURL == "" {
		return nil
	}
	dest := model.Destination{
		Kind:       model.DestWebhook,
		Policy:     model.PolicyRestricted,
		WebhookURL: cfg.WebhookURL,
	}
	t.fanout.Deliver(ctx, deliver.NewJob("audit:"+bit.String(), []model.Destination{dest}, p))
	return nil
}

// pushHistory appends v unless it equals the last entry.
func pushHistory(hist []string, v string) []string {
	if n := len(hist); n > 0 && hist[n-1] == v {
		return hist
	}
	return append(hist, v)
}

func pushListHistory(hist [][]string, v []string) [][]string {
	if n := len(hist); n > 0 && slices.Equal(hist[n-1], v) {
		return hist
	}
	return append(hist, slices.Clone(v))
}
