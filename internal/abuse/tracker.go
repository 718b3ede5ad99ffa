// Package abuse detects message floods with a TTL-bounded sliding window
// per user. It never touches the chat platform: on a trigger it hands the
// caller the message ids to bulk-delete, grouped per channel.
package abuse

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"

	"github.com/vicky5124/robo-arc-sub000/internal/ttlstore"
)

// Defaults match the source bot: 5 messages inside a 5 second window.
const (
	DefaultWindow    = 5 * time.Second
	DefaultThreshold = 5
)

type ActionKind int

const (
	Allow ActionKind = iota
	Suppress
)

// Action is the verdict for one tracked message.
//
// On Suppress, ByChannel holds every message id from the window grouped by
// channel (bulk delete is a per-channel operation). The window is already
// cleared; deleting the messages is the caller's side effect.
type Action struct {
	Kind      ActionKind
	ByChannel map[string][]string
}

type Config struct {
	Window    time.Duration
	Threshold int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	return c
}

// Tracker counts recent messages per user in the TTL store.
// The store is the single source of truth, so multiple processes sharing a
// backend coordinate without extra locking.
type Tracker struct {
	store ttlstore.Store
	log   logx.Logger

	mu  sync.RWMutex
	cfg Config
}

func NewTracker(store ttlstore.Store, cfg Config, log logx.Logger) *Tracker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Tracker{store: store, cfg: cfg.withDefaults(), log: log}
}

// UpdateConfig swaps the window and threshold; in-flight windows keep
// their current TTL until the next append refreshes it.
func (t *Tracker) UpdateConfig(cfg Config) {
	t.mu.Lock()
	t.cfg = cfg.withDefaults()
	t.mu.Unlock()
}

func (t *Tracker) config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// Track records one message and returns the verdict.
//
// Every append refreshes the window TTL, so the window slides with
// activity and expires only after the user goes quiet.
func (t *Tracker) Track(ctx context.Context, userID, messageID, channelID string) (Action, error) {
	cfg := t.config()
	key := windowKey(userID)
	if err := t.store.Append(ctx, key, encodeEntry(channelID, messageID)); err != nil {
		return Action{Kind: Allow}, fmt.Errorf("abuse: append window: %w", err)
	}
	if err := t.store.Expire(ctx, key, cfg.Window); err != nil {
		return Action{Kind: Allow}, fmt.Errorf("abuse: refresh ttl: %w", err)
	}

	entries, err := t.store.Get(ctx, key)
	if err != nil {
		return Action{Kind: Allow}, fmt.Errorf("abuse: read window: %w", err)
	}
	if len(entries) <= cfg.Threshold {
		return Action{Kind: Allow}, nil
	}

	byChannel := map[string][]string{}
	for _, raw := range entries {
		ch, msg, ok := decodeEntry(raw)
		if !ok {
			continue
		}
		byChannel[ch] = append(byChannel[ch], msg)
	}
	if err := t.store.Delete(ctx, key); err != nil {
		t.log.Warn("abuse window clear failed", logx.String("user_id", userID), logx.Err(err))
	}
	t.log.Info("flood threshold exceeded",
		logx.String("user_id", userID),
		logx.Int("messages", len(entries)),
		logx.Duration("window", cfg.Window))
	return Action{Kind: Suppress, ByChannel: byChannel}, nil
}

func windowKey(userID string) string { return "flood:" + userID }

func encodeEntry(channelID, messageID string) string {
	return channelID + ":" + messageID
}

func decodeEntry(raw string) (channelID, messageID string, ok bool) {
	i := strings.IndexByte(raw, ':')
	if i <= 0 || i == len(raw)-1 {
		return "", "", false
	}
	return raw[:i], raw[i+1:], true
}
