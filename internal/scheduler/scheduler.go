// Package scheduler drives the poll cycle: every interval it enumerates
// the configured watches and hands each one to a worker as an independent
// unit. A unit failing or running long never affects its siblings, and at
// most one run per unit is in flight (a slow fetch skips the next tick
// for that unit instead of overlapping it).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"

	"github.com/vicky5124/robo-arc-sub000/internal/model"
	"github.com/vicky5124/robo-arc-sub000/internal/storage"
)

// FeedPoller runs one feed-watch cycle.
type FeedPoller interface {
	Poll(ctx context.Context, w *model.Watch) error
}

// StreamChecker runs one streamer cycle.
type StreamChecker interface {
	Check(ctx context.Context, streamerID string, dests []model.Destination) error
}

type Config struct {
	// Interval between poll cycles. Default 120s (the source cadence).
	Interval time.Duration
	// Workers drain the unit queue. Default 4.
	Workers int
	// UnitTimeout bounds one unit of work. Default 30s.
	UnitTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 120 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.UnitTimeout <= 0 {
		c.UnitTimeout = 30 * time.Second
	}
	return c
}

type unit struct {
	id  string
	run func(ctx context.Context) error
}

type runState struct {
	mu      sync.Mutex
	running bool
}

type Service struct {
	cfg     Config
	log     logx.Logger
	store   storage.Store
	poller  FeedPoller
	tracker StreamChecker

	mu     sync.Mutex
	c      *cron.Cron
	queue  chan unit
	stopCh chan struct{}
	wg     sync.WaitGroup

	smu    sync.Mutex
	states map[string]*runState
}

func New(cfg Config, store storage.Store, poller FeedPoller, tracker StreamChecker, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		log:     log,
		store:   store,
		poller:  poller,
		tracker: tracker,
		states:  map[string]*runState{},
	}
}

// Start launches the workers and the interval trigger. It returns
// immediately; the first cycle runs right away rather than one interval in.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.queue = make(chan unit, 256)

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, s.stopCh, s.queue)
	}

	s.c = cron.New()
	if _, err := s.c.AddFunc("@every "+s.cfg.Interval.String(), func() { s.tick(ctx) }); err != nil {
		return err
	}
	s.c.Start()

	go s.tick(ctx)

	s.log.Info("scheduler started",
		logx.Duration("interval", s.cfg.Interval),
		logx.Int("workers", s.cfg.Workers))
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	c := s.c
	s.c = nil
	s.mu.Unlock()

	// Wait for in-flight cron ticks outside the lock: a finishing tick
	// still needs s.mu to enqueue.
	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// tick enumerates watches and tracked streamers and enqueues one unit per
// entity.
func (s *Service) tick(ctx context.Context) {
	watches, err := s.store.ListWatches(ctx)
	if err != nil {
		s.log.Error("list watches", logx.Err(err))
		return
	}

	watched := map[string]struct{}{}
	for i := range watches {
		w := watches[i]
		switch w.Source {
		case model.SourceFeed:
			s.enqueue(unit{
				id:  "feed/" + w.Query,
				run: func(ctx context.Context) error { return s.poller.Poll(ctx, &w) },
			})
		case model.SourceStream:
			watched[w.Query] = struct{}{}
			s.enqueue(unit{
				id:  "stream/" + w.Query,
				run: func(ctx context.Context) error { return s.tracker.Check(ctx, w.Query, w.Destinations) },
			})
		default:
			s.log.Warn("watch with unknown source skipped",
				logx.String("source", string(w.Source)),
				logx.String("query", w.Query))
		}
	}

	// Streamers that only exist as snapshots (watch deleted externally)
	// keep getting checked so a live one still receives its offline edit.
	streamers, err := s.store.ListStreamers(ctx)
	if err != nil {
		s.log.Error("list streamers", logx.Err(err))
		return
	}
	for _, id := range streamers {
		if _, ok := watched[id]; ok {
			continue
		}
		id := id
		s.enqueue(unit{
			id:  "stream/" + id,
			run: func(ctx context.Context) error { return s.tracker.Check(ctx, id, nil) },
		})
	}
}

func (s *Service) enqueue(u unit) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return
	}
	select {
	case q <- u:
	default:
		s.log.Warn("scheduler queue full, dropping unit", logx.String("unit", u.id))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan unit) {
	defer s.wg.Done()
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case u := <-queue:
			s.execOne(ctx, u)
		}
	}
}

func (s *Service) execOne(ctx context.Context, u unit) {
	st := s.state(u.id)
	st.mu.Lock()
	if st.running {
		st.mu.Unlock()
		s.log.Debug("unit still running, skipping this tick", logx.String("unit", u.id))
		return
	}
	st.running = true
	st.mu.Unlock()
	defer func() {
		st.mu.Lock()
		st.running = false
		st.mu.Unlock()
	}()

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.UnitTimeout)
	err := u.run(runCtx)
	cancel()

	if err != nil {
		s.log.Warn("unit failed",
			logx.String("unit", u.id),
			logx.Duration("dur", time.Since(start)),
			logx.Err(err))
		return
	}
	s.log.Debug("unit completed",
		logx.String("unit", u.id),
		logx.Duration("dur", time.Since(start)))
}

func (s *Service) state(id string) *runState {
	s.smu.Lock()
	defer s.smu.Unlock()
	st, ok := s.states[id]
	if !ok {
		st = &runState{}
		s.states[id] = st
	}
	return st
}
