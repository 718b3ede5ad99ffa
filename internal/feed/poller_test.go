package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vicky5124/robo-arc-sub000/internal/deliver"
	"github.com/vicky5124/robo-arc-sub000/internal/model"
	"github.com/vicky5124/robo-arc-sub000/internal/platform"
	"github.com/vicky5124/robo-arc-sub000/internal/storage"
	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"
)

type fakeSource struct {
	items    []model.ContentItem
	err      error
	gotLimit int
}

func (f *fakeSource) Fetch(_ context.Context, _ string, limit int) ([]model.ContentItem, error) {
	f.gotLimit = limit
	return f.items, f.err
}

// fakeStore records delivered keys; unimplemented Store methods panic.
type fakeStore struct {
	storage.Store
	appended  []string
	appendErr error
}

func (f *fakeStore) AppendDelivered(_ context.Context, _ model.SourceKind, _, key string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, key)
	return nil
}

type captureSender struct {
	sends []string // "channelID/imageURL"
}

func (c *captureSender) Send(_ context.Context, channelID string, p platform.Payload) (model.MessageRef, error) {
	img := ""
	if p.Embed != nil {
		img = p.Embed.ImageURL
	}
	c.sends = append(c.sends, channelID+"/"+img)
	return model.MessageRef{ChannelID: channelID, MessageID: "m"}, nil
}

func item(id, key string, tags ...string) model.ContentItem {
	return model.ContentItem{ID: id, DedupKey: key, Tags: tags, MediaURL: "https://img/" + id}
}

func newTestPoller(src Source, store storage.Store, sender platform.Sender, filter ContentFilter) *Poller {
	fanout := deliver.New(deliver.Config{}, sender, nil, logx.Nop())
	return NewPoller(src, store, fanout, filter, logx.Nop())
}

func TestPollDeliversNewItemsOldestFirst(t *testing.T) {
	// Fetch order is newest first; delivery must flip it.
	src := &fakeSource{items: []model.ContentItem{
		item("3", "k3", "landscape"),
		item("2", "k2", "landscape"),
		item("1", "k1", "landscape"),
	}}
	store := &fakeStore{}
	sender := &captureSender{}
	p := newTestPoller(src, store, sender, ContentFilter{})

	w := &model.Watch{
		Source: model.SourceFeed,
		Query:  "landscape",
		Destinations: []model.Destination{
			{Kind: model.DestChannel, Policy: model.PolicyGeneral, ChannelID: "c1"},
		},
	}
	if err := p.Poll(context.Background(), w); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	wantSends := []string{"c1/https://img/1", "c1/https://img/2", "c1/https://img/3"}
	if diff := cmp.Diff(wantSends, sender.sends); diff != "" {
		t.Errorf("sends (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"k1", "k2", "k3"}, store.appended); diff != "" {
		t.Errorf("appended keys (-want +got):\n%s", diff)
	}
}

func TestPollIsIdempotent(t *testing.T) {
	src := &fakeSource{items: []model.ContentItem{item("1", "k1", "landscape")}}
	store := &fakeStore{}
	sender := &captureSender{}
	p := newTestPoller(src, store, sender, ContentFilter{})

	w := &model.Watch{
		Source: model.SourceFeed,
		Query:  "landscape",
		Destinations: []model.Destination{
			{Kind: model.DestChannel, Policy: model.PolicyGeneral, ChannelID: "c1"},
		},
	}
	for i := 0; i < 3; i++ {
		if err := p.Poll(context.Background(), w); err != nil {
			t.Fatalf("Poll %d: %v", i, err)
		}
	}

	if len(sender.sends) != 1 {
		t.Errorf("got %d sends, want 1", len(sender.sends))
	}
	if len(store.appended) != 1 {
		t.Errorf("got %d appends, want 1", len(store.appended))
	}
}

func TestPollFallsBackToIDKey(t *testing.T) {
	src := &fakeSource{items: []model.ContentItem{{ID: "77", MediaURL: "https://img/77"}}}
	store := &fakeStore{}
	p := newTestPoller(src, store, &captureSender{}, ContentFilter{})

	w := &model.Watch{
		Source:       model.SourceFeed,
		Query:        "q",
		Destinations: []model.Destination{{Kind: model.DestChannel, ChannelID: "c1"}},
	}
	if err := p.Poll(context.Background(), w); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if diff := cmp.Diff([]string{"77"}, store.appended); diff != "" {
		t.Errorf("appended keys (-want +got):\n%s", diff)
	}
}

func TestPollPolicyPerDestination(t *testing.T) {
	src := &fakeSource{items: []model.ContentItem{item("1", "k1", "gore")}}
	store := &fakeStore{}
	sender := &captureSender{}
	filter := ContentFilter{GeneralAllow: []string{"landscape"}, RestrictedExtra: []string{"gore"}}
	p := newTestPoller(src, store, sender, filter)

	w := &model.Watch{
		Source: model.SourceFeed,
		Query:  "q",
		Destinations: []model.Destination{
			{Kind: model.DestChannel, Policy: model.PolicyGeneral, ChannelID: "general"},
			{Kind: model.DestChannel, Policy: model.PolicyRestricted, ChannelID: "restricted"},
		},
	}
	if err := p.Poll(context.Background(), w); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	if diff := cmp.Diff([]string{"restricted/https://img/1"}, sender.sends); diff != "" {
		t.Errorf("sends (-want +got):\n%s", diff)
	}
	// Rejected everywhere or not, the item is marked delivered once.
	if diff := cmp.Diff([]string{"k1"}, store.appended); diff != "" {
		t.Errorf("appended keys (-want +got):\n%s", diff)
	}
}

func TestPollMarksRejectedItems(t *testing.T) {
	src := &fakeSource{items: []model.ContentItem{item("1", "k1", "unwanted")}}
	store := &fakeStore{}
	sender := &captureSender{}
	p := newTestPoller(src, store, sender, ContentFilter{GeneralAllow: []string{"landscape"}})

	w := &model.Watch{
		Source:       model.SourceFeed,
		Query:        "q",
		Destinations: []model.Destination{{Kind: model.DestChannel, Policy: model.PolicyGeneral, ChannelID: "c1"}},
	}
	if err := p.Poll(context.Background(), w); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(sender.sends) != 0 {
		t.Errorf("rejected item delivered: %v", sender.sends)
	}
	if !w.Delivered("k1") {
		t.Error("rejected item must still be marked delivered")
	}
}

func TestSetLimitZeroRestoresDefault(t *testing.T) {
	src := &fakeSource{}
	p := newTestPoller(src, &fakeStore{}, &captureSender{}, ContentFilter{})
	w := &model.Watch{Source: model.SourceFeed, Query: "q"}

	p.SetLimit(10)
	if err := p.Poll(context.Background(), w); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if src.gotLimit != 10 {
		t.Errorf("limit = %d, want 10", src.gotLimit)
	}

	p.SetLimit(0)
	if err := p.Poll(context.Background(), w); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if src.gotLimit != defaultFetchLimit {
		t.Errorf("limit = %d, want the default %d", src.gotLimit, defaultFetchLimit)
	}
}

func TestPollFetchError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	store := &fakeStore{}
	p := newTestPoller(src, store, &captureSender{}, ContentFilter{})

	w := &model.Watch{Source: model.SourceFeed, Query: "q"}
	err := p.Poll(context.Background(), w)
	if !errors.Is(err, ErrFetch) {
		t.Errorf("got %v, want ErrFetch", err)
	}
	if len(store.appended) != 0 {
		t.Errorf("keys marked despite fetch failure: %v", store.appended)
	}
}

func TestPollStoreErrorAbortsCycle(t *testing.T) {
	src := &fakeSource{items: []model.ContentItem{
		item("2", "k2", "x"),
		item("1", "k1", "x"),
	}}
	store := &fakeStore{appendErr: fmt.Errorf("disk full")}
	sender := &captureSender{}
	p := newTestPoller(src, store, sender, ContentFilter{})

	w := &model.Watch{
		Source:       model.SourceFeed,
		Query:        "q",
		Destinations: []model.Destination{{Kind: model.DestChannel, ChannelID: "c1"}},
	}
	if err := p.Poll(context.Background(), w); err == nil {
		t.Fatal("want error when the store fails")
	}
	// The first (oldest) item was attempted, the second never reached.
	if len(sender.sends) != 1 {
		t.Errorf("got %d sends, want 1", len(sender.sends))
	}
	if w.Delivered("k1") || w.Delivered("k2") {
		t.Error("unpersisted keys must stay eligible for the next cycle")
	}
}
