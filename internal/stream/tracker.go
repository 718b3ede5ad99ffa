// Package stream tracks per-streamer live status and announces
// transitions, editing the original announcement in place on metadata
// changes instead of re-posting.
package stream

import (
	"context"
	"errors"
	"fmt"

	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"

	"github.com/vicky5124/robo-arc-sub000/internal/deliver"
	"github.com/vicky5124/robo-arc-sub000/internal/model"
	"github.com/vicky5124/robo-arc-sub000/internal/platform"
	"github.com/vicky5124/robo-arc-sub000/internal/storage"
)

// ErrFetch marks a network or parse failure against the livestream API.
var ErrFetch = errors.New("livestream fetch failed")

// Status is the freshly fetched live state for one streamer.
type Status struct {
	IsLive   bool
	Title    string
	GameName string
}

// LiveAPI is the livestream side of the content API collaborator.
type LiveAPI interface {
	Live(ctx context.Context, streamerID string) (Status, error)
}

type Tracker struct {
	api    LiveAPI
	store  storage.Store
	sender platform.Sender
	editor platform.Editor
	fanout *deliver.Service
	log    logx.Logger
}

func NewTracker(api LiveAPI, store storage.Store, sender platform.Sender, editor platform.Editor, fanout *deliver.Service, log logx.Logger) *Tracker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Tracker{api: api, store: store, sender: sender, editor: editor, fanout: fanout, log: log}
}

// Check runs one poll cycle for one streamer.
//
// offline -> live: announce to every destination; the first channel
// message ref is stored so later transitions can edit it.
// live -> live (changed title/game): edit the stored ref in place.
// live -> live (unchanged): nothing.
// live -> offline: edit the stored ref to an offline summary, clear it.
//
// A stored ref whose message was deleted externally is skipped, debug-only.
func (t *Tracker) Check(ctx context.Context, streamerID string, dests []model.Destination) error {
	if t.api == nil {
		t.log.Debug("no livestream api configured", logx.String("streamer_id", streamerID))
		return nil
	}
	status, err := t.api.Live(ctx, streamerID)
	if err != nil {
		return fmt.Errorf("%w: streamer %q: %v", ErrFetch, streamerID, err)
	}

	snap, found, err := t.store.GetSnapshot(ctx, streamerID)
	if err != nil {
		return fmt.Errorf("load snapshot %q: %w", streamerID, err)
	}
	if !found {
		snap = model.StreamSnapshot{StreamerID: streamerID}
	}

	switch {
	case status.IsLive && !snap.IsLive:
		snap.LastRef = t.announce(ctx, streamerID, status, dests)
	case status.IsLive && snap.IsLive:
		if status.Title == snap.Title && status.GameName == snap.GameName {
			return nil
		}
		t.edit(ctx, snap.LastRef, livePayload(streamerID, status))
	case !status.IsLive && snap.IsLive:
		t.edit(ctx, snap.LastRef, offlinePayload(streamerID, snap))
		snap.LastRef = model.MessageRef{}
	default:
		// still offline
		return nil
	}

	snap.IsLive = status.IsLive
	snap.Title = status.Title
	snap.GameName = status.GameName
	if err := t.store.PutSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("store snapshot %q: %w", streamerID, err)
	}
	return nil
}

// announce posts the went-live notification to every destination and
// returns the ref of the first channel message that went through.
func (t *Tracker) announce(ctx context.Context, streamerID string, status Status, dests []model.Destination) model.MessageRef {
	payload := livePayload(streamerID, status)

	var ref model.MessageRef
	var webhooks []model.Destination
	for _, d := range dests {
		if d.Kind != model.DestChannel {
			webhooks = append(webhooks, d)
			continue
		}
		if t.sender == nil {
			t.log.Debug("no channel sender configured, skipping announce",
				logx.String("channel_id", d.ChannelID))
			continue
		}
		r, err := t.sender.Send(ctx, d.ChannelID, payload)
		if err != nil {
			t.log.Warn("live announce failed",
				logx.String("streamer_id", streamerID),
				logx.String("channel_id", d.ChannelID),
				logx.Err(err))
			continue
		}
		if ref.IsZero() {
			ref = r
		}
	}
	if len(webhooks) > 0 {
		t.fanout.Deliver(ctx, deliver.NewJob("stream:"+streamerID, webhooks, payload))
	}
	return ref
}

func (t *Tracker) edit(ctx context.Context, ref model.MessageRef, p platform.Payload) {
	if ref.IsZero() || t.editor == nil {
		return
	}
	err := t.editor.Edit(ctx, ref, p)
	switch {
	case err == nil:
	case errors.Is(err, platform.ErrStaleReference):
		t.log.Debug("announcement message gone, skipping edit",
			logx.String("channel_id", ref.ChannelID),
			logx.String("message_id", ref.MessageID))
	default:
		t.log.Warn("announcement edit failed",
			logx.String("channel_id", ref.ChannelID),
			logx.String("message_id", ref.MessageID),
			logx.Err(err))
	}
}

func livePayload(streamerID string, status Status) platform.Payload {
	desc := status.Title
	if status.GameName != "" {
		desc += "\nPlaying: " + status.GameName
	}
	return platform.Payload{
		Content: streamerID + " is now live!",
		Embed: &platform.Embed{
			Title:       status.Title,
			Description: desc,
			URL:         "https://www.twitch.tv/" + streamerID,
		},
	}
}

func offlinePayload(streamerID string, snap model.StreamSnapshot) platform.Payload {
	return platform.Payload{
		Content: streamerID + " is now offline.",
		Embed: &platform.Embed{
			Title:       snap.Title,
			Description: "Stream ended.",
			URL:         "https://www.twitch.tv/" + streamerID,
		},
	}
}
