// Package feed polls the content API for tag-based watches and turns new
// items into delivery jobs, deduplicating against the per-watch list of
// already-delivered keys.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"

	"github.com/vicky5124/robo-arc-sub000/internal/deliver"
	"github.com/vicky5124/robo-arc-sub000/internal/model"
	"github.com/vicky5124/robo-arc-sub000/internal/platform"
	"github.com/vicky5124/robo-arc-sub000/internal/storage"
)

// ErrFetch marks a network or parse failure against the content API.
// Never fatal: the watch is retried on the next cycle.
var ErrFetch = errors.New("content fetch failed")

// Source is the content API collaborator.
type Source interface {
	// Fetch returns up to limit most-recent items for a tag query.
	Fetch(ctx context.Context, tags string, limit int) ([]model.ContentItem, error)
}

const defaultFetchLimit = 50

type Poller struct {
	src    Source
	store  storage.Store
	fanout *deliver.Service
	filter ContentFilter
	limit  atomic.Int64
	log    logx.Logger
}

func NewPoller(src Source, store storage.Store, fanout *deliver.Service, filter ContentFilter, log logx.Logger) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Poller{src: src, store: store, fanout: fanout, filter: filter, log: log}
	p.limit.Store(defaultFetchLimit)
	return p
}

// SetLimit overrides the per-cycle fetch limit; zero or negative restores
// the default. Safe while polls run.
func (p *Poller) SetLimit(n int) {
	if n <= 0 {
		n = defaultFetchLimit
	}
	p.limit.Store(int64(n))
}

// Poll runs one cycle for one watch.
//
// Per new item: every destination is policy-checked, accepting destinations
// get the rendered payload, and then the dedup key is appended and
// persisted exactly once for the item. A fetch or store error aborts only
// this watch's cycle; items not yet marked stay eligible for the next one.
func (p *Poller) Poll(ctx context.Context, w *model.Watch) error {
	items, err := p.src.Fetch(ctx, w.Query, int(p.limit.Load()))
	if err != nil {
		return fmt.Errorf("%w: query %q: %v", ErrFetch, w.Query, err)
	}

	// Fetch returns newest first; deliver oldest first.
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		key := item.DedupKey
		if key == "" {
			key = item.ID
		}
		if w.Delivered(key) {
			continue
		}

		var accepted []model.Destination
		for _, d := range w.Destinations {
			if p.filter.Accepts(d.Policy, item.Tags) {
				accepted = append(accepted, d)
			}
		}
		if len(accepted) > 0 {
			job := deliver.NewJob("feed:"+w.Query, accepted, renderItem(w.Query, item))
			p.fanout.Deliver(ctx, job)
		}

		// One append per item per watch, regardless of how many
		// destinations accepted it.
		if err := p.store.AppendDelivered(ctx, w.Source, w.Query, key); err != nil {
			return fmt.Errorf("mark delivered %q: %w", key, err)
		}
		w.MarkDelivered(key)
	}
	return nil
}

func renderItem(query string, item model.ContentItem) platform.Payload {
	return platform.Payload{
		Embed: &platform.Embed{
			Title:    "New post for " + query,
			URL:      item.SourceURL,
			ImageURL: item.MediaURL,
		},
	}
}
