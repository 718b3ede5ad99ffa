package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vicky5124/robo-arc-sub000/internal/model"
	"github.com/vicky5124/robo-arc-sub000/internal/storage"
	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"
)

type schedStore struct {
	storage.Store
	watches   []model.Watch
	streamers []string
}

func (s *schedStore) ListWatches(context.Context) ([]model.Watch, error) {
	return s.watches, nil
}

func (s *schedStore) ListStreamers(context.Context) ([]string, error) {
	return s.streamers, nil
}

type recordingPoller struct {
	mu      sync.Mutex
	queries []string
	done    chan struct{}
}

func (p *recordingPoller) Poll(_ context.Context, w *model.Watch) error {
	p.mu.Lock()
	p.queries = append(p.queries, w.Query)
	p.mu.Unlock()
	select {
	case p.done <- struct{}{}:
	default:
	}
	return nil
}

type recordingChecker struct {
	mu   sync.Mutex
	ids  []string
	done chan struct{}
}

func (c *recordingChecker) Check(_ context.Context, streamerID string, _ []model.Destination) error {
	c.mu.Lock()
	c.ids = append(c.ids, streamerID)
	c.mu.Unlock()
	select {
	case c.done <- struct{}{}:
	default:
	}
	return nil
}

func TestStartRunsImmediateCycle(t *testing.T) {
	store := &schedStore{watches: []model.Watch{
		{Source: model.SourceFeed, Query: "landscape"},
		{Source: model.SourceStream, Query: "streamer"},
		{Source: "bogus", Query: "ignored"},
	}}
	poller := &recordingPoller{done: make(chan struct{}, 1)}
	checker := &recordingChecker{done: make(chan struct{}, 1)}

	s := New(Config{Interval: time.Hour}, store, poller, checker, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitFor(t, poller.done, "feed poll")
	waitFor(t, checker.done, "stream check")

	poller.mu.Lock()
	defer poller.mu.Unlock()
	if len(poller.queries) != 1 || poller.queries[0] != "landscape" {
		t.Errorf("poll queries = %v", poller.queries)
	}
	checker.mu.Lock()
	defer checker.mu.Unlock()
	if len(checker.ids) != 1 || checker.ids[0] != "streamer" {
		t.Errorf("checked streamers = %v", checker.ids)
	}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestTickCoversSnapshotOnlyStreamers(t *testing.T) {
	store := &schedStore{
		watches: []model.Watch{
			{Source: model.SourceStream, Query: "watched", Destinations: []model.Destination{
				{Kind: model.DestChannel, ChannelID: "c1"},
			}},
		},
		streamers: []string{"watched", "orphaned"},
	}
	checker := &recordingChecker{done: make(chan struct{}, 2)}

	s := New(Config{Interval: time.Hour}, store, &recordingPoller{done: make(chan struct{}, 1)}, checker, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitFor(t, checker.done, "first streamer check")
	waitFor(t, checker.done, "second streamer check")

	checker.mu.Lock()
	defer checker.mu.Unlock()
	got := map[string]int{}
	for _, id := range checker.ids {
		got[id]++
	}
	// The watched streamer runs once, not once per listing.
	if got["watched"] != 1 || got["orphaned"] != 1 {
		t.Errorf("checked streamers = %v", checker.ids)
	}
}

type blockingStore struct {
	storage.Store
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) ListWatches(context.Context) ([]model.Watch, error) {
	s.entered <- struct{}{}
	<-s.release
	// The finishing tick must still enqueue after Stop was called.
	return []model.Watch{{Source: model.SourceFeed, Query: "q"}}, nil
}

func (s *blockingStore) ListStreamers(context.Context) ([]string, error) {
	return nil, nil
}

func TestStopWaitsOutRunningTick(t *testing.T) {
	store := &blockingStore{entered: make(chan struct{}, 2), release: make(chan struct{})}
	poller := &recordingPoller{done: make(chan struct{}, 1)}
	s := New(Config{Interval: time.Second}, store, poller, nil, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, store.entered, "immediate tick")
	waitFor(t, store.entered, "interval tick")

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	// Let Stop reach the cron shutdown wait, then let the ticks finish;
	// a finishing tick must be able to enqueue while Stop waits for it.
	time.Sleep(100 * time.Millisecond)
	close(store.release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while a tick was finishing")
	}
}

func TestExecOneSkipsOverlappingRun(t *testing.T) {
	s := New(Config{}, &schedStore{}, nil, nil, logx.Nop())

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.execOne(context.Background(), unit{id: "feed/x", run: func(context.Context) error {
			close(started)
			<-release
			return nil
		}})
	}()
	<-started

	ran := false
	s.execOne(context.Background(), unit{id: "feed/x", run: func(context.Context) error {
		ran = true
		return nil
	}})
	if ran {
		t.Error("overlapping run for the same unit was not skipped")
	}

	// A different unit is unaffected.
	otherRan := false
	s.execOne(context.Background(), unit{id: "feed/y", run: func(context.Context) error {
		otherRan = true
		return nil
	}})
	if !otherRan {
		t.Error("independent unit was blocked")
	}

	close(release)
	wg.Wait()

	// After the first run finishes, the unit is schedulable again.
	ranAfter := false
	s.execOne(context.Background(), unit{id: "feed/x", run: func(context.Context) error {
		ranAfter = true
		return nil
	}})
	if !ranAfter {
		t.Error("unit stayed blocked after its run finished")
	}
}

func TestExecOneAppliesTimeout(t *testing.T) {
	s := New(Config{UnitTimeout: 10 * time.Millisecond}, &schedStore{}, nil, nil, logx.Nop())

	var got error
	s.execOne(context.Background(), unit{id: "feed/x", run: func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return ctx.Err()
	}})
	if got != context.DeadlineExceeded {
		t.Errorf("ctx err = %v, want DeadlineExceeded", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(Config{Interval: time.Hour}, &schedStore{}, nil, nil, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	s.Stop()
}
