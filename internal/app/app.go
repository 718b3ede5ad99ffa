// Package app assembles the pipeline and exposes the two entry points the
// host framework drives: the scheduler (started here) and the
// gateway-event path (HandleGatewayEvent / TrackMessage).
package app

import (
	"context"
	"fmt"
	"time"

	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"

	"github.com/vicky5124/robo-arc-sub000/internal/abuse"
	"github.com/vicky5124/robo-arc-sub000/internal/audit"
	"github.com/vicky5124/robo-arc-sub000/internal/config"
	"github.com/vicky5124/robo-arc-sub000/internal/deliver"
	"github.com/vicky5124/robo-arc-sub000/internal/feed"
	"github.com/vicky5124/robo-arc-sub000/internal/platform"
	"github.com/vicky5124/robo-arc-sub000/internal/scheduler"
	"github.com/vicky5124/robo-arc-sub000/internal/storage"
	"github.com/vicky5124/robo-arc-sub000/internal/stream"
	"github.com/vicky5124/robo-arc-sub000/internal/ttlstore"
)

// Collaborators are the external pieces the host owns. Any of them may be
// nil; the affected paths degrade to webhook-only or no-op behavior.
type Collaborators struct {
	Sender      platform.Sender
	Editor      platform.Editor
	BulkDeleter platform.BulkDeleter
	Webhooks    platform.WebhookExecutor
	LiveAPI     stream.LiveAPI
	TTL         ttlstore.Store
}

type App struct {
	log    logx.Logger
	store  storage.Store
	sched  *scheduler.Service
	fanout *deliver.Service
	poller *feed.Poller

	translator *audit.Translator
	abuse      *abuse.Tracker
	deleter    platform.BulkDeleter
}

// New wires the pipeline from config plus host collaborators.
func New(cfg *config.Config, col Collaborators, log logx.Logger) (*App, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:         cfg.Storage.Path,
		BusyTimeout:  busy,
		DeliveredCap: cfg.Storage.DeliveredCap,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	fanout := deliver.New(deliver.Config{RatePerSec: cfg.Delivery.RatePerSec}, col.Sender, col.Webhooks, log)

	filter := feed.ContentFilter{
		GeneralAllow:    cfg.Content.GeneralAllow,
		RestrictedExtra: cfg.Content.RestrictedExtra,
		Banned:          cfg.Content.Banned,
	}
	source := feed.NewBooruClient(cfg.Content.BaseURL, nil)
	poller := feed.NewPoller(source, store, fanout, filter, log)
	poller.SetLimit(cfg.Poll.FetchLimit)

	tracker := stream.NewTracker(col.LiveAPI, store, col.Sender, col.Editor, fanout, log)

	ttl := col.TTL
	if ttl == nil {
		ttl = ttlstore.NewMemory()
	}
	window, err := config.ParseDurationOrDefault("abuse.window", cfg.Abuse.Window, abuse.DefaultWindow)
	if err != nil {
		return nil, err
	}

	interval, err := config.ParseDurationOrDefault("poll.interval", cfg.Poll.Interval, 120*time.Second)
	if err != nil {
		return nil, err
	}
	unitTimeout, err := config.ParseDurationOrDefault("poll.unit_timeout", cfg.Poll.UnitTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}

	return &App{
		log:    log,
		store:  store,
		fanout: fanout,
		poller: poller,
		sched: scheduler.New(scheduler.Config{
			Interval:    interval,
			Workers:     cfg.Poll.Workers,
			UnitTimeout: unitTimeout,
		}, store, poller, tracker, log),
		translator: audit.NewTranslator(store, fanout, log),
		abuse: abuse.NewTracker(ttl, abuse.Config{
			Window:    window,
			Threshold: cfg.Abuse.Threshold,
		}, log),
		deleter: col.BulkDeleter,
	}, nil
}

// Start launches the scheduler loop.
func (a *App) Start(ctx context.Context) error { return a.sched.Start(ctx) }

// ApplyConfig applies the reloadable parts of a fresh config: abuse
// window/threshold, feed fetch limit, delivery rate. Storage path and poll
// interval changes need a restart and are ignored here.
func (a *App) ApplyConfig(cfg *config.Config) error {
	window, err := config.ParseDurationOrDefault("abuse.window", cfg.Abuse.Window, abuse.DefaultWindow)
	if err != nil {
		return err
	}
	a.abuse.UpdateConfig(abuse.Config{Window: window, Threshold: cfg.Abuse.Threshold})
	a.poller.SetLimit(cfg.Poll.FetchLimit)
	a.fanout.SetRate(cfg.Delivery.RatePerSec)
	a.log.Info("runtime config applied",
		logx.Duration("abuse_window", window),
		logx.Int("abuse_threshold", cfg.Abuse.Threshold),
		logx.Int("rate_per_sec", cfg.Delivery.RatePerSec))
	return nil
}

// Stop stops the scheduler and closes the store.
func (a *App) Stop() {
	a.sched.Stop()
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
}

// HandleGatewayEvent feeds one gateway event to the audit translator.
// The host's dispatch path calls this for every event it receives.
func (a *App) HandleGatewayEvent(ctx context.Context, ev audit.Event) {
	if err := a.translator.Handle(ctx, ev); err != nil {
		a.log.Error("audit event failed", logx.String("kind", string(ev.Kind)), logx.Err(err))
	}
}

// TrackMessage runs the flood detector for one message and performs the
// suppress side effect: bulk-deleting the window's messages per channel.
func (a *App) TrackMessage(ctx context.Context, userID, messageID, channelID string) {
	action, err := a.abuse.Track(ctx, userID, messageID, channelID)
	if err != nil {
		a.log.Warn("flood tracking failed", logx.String("user_id", userID), logx.Err(err))
		return
	}
	if action.Kind != abuse.Suppress || a.deleter == nil {
		return
	}
	for channel, ids := range action.ByChannel {
		if err := a.deleter.DeleteBulk(ctx, channel, ids); err != nil {
			a.log.Warn("flood bulk delete failed",
				logx.String("channel_id", channel),
				logx.Int("messages", len(ids)),
				logx.Err(err))
		}
	}
}
