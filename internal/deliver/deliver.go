// Package deliver fans one rendered payload out to many destinations.
//
// Failures are isolated per destination: one bad webhook or channel never
// blocks the rest, and nothing here retries. The per-destination results
// exist for tests and logs, not for caller control flow.
package deliver

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"

	"github.com/vicky5124/robo-arc-sub000/internal/model"
	"github.com/vicky5124/robo-arc-sub000/internal/platform"
)

// Job is one logical notification and its destinations.
type Job struct {
	ID           string
	Name         string // short label for logs ("feed:landscape", "stream:foo", "audit")
	Destinations []model.Destination
	Payload      platform.Payload
}

// NewJob labels a payload with a fresh id.
func NewJob(name string, dests []model.Destination, p platform.Payload) Job {
	return Job{ID: uuid.NewString(), Name: name, Destinations: dests, Payload: p}
}

// Result is the outcome for a single destination.
type Result struct {
	Destination model.Destination
	Err         error
}

// DeliveryError wraps a single destination failure.
type DeliveryError struct {
	Destination model.Destination
	Err         error
}

func (e *DeliveryError) Error() string {
	target := e.Destination.ChannelID
	if e.Destination.Kind == model.DestWebhook {
		target = "webhook"
	}
	return fmt.Sprintf("deliver to %s %s: %v", e.Destination.Kind, target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Config struct {
	// RatePerSec caps outbound platform calls. 0 disables limiting.
	RatePerSec int
}

// Service performs the fan-out.
type Service struct {
	sender platform.Sender
	hooks  platform.WebhookExecutor
	log    logx.Logger

	mu      sync.RWMutex
	limiter *rate.Limiter
}

func New(cfg Config, sender platform.Sender, hooks platform.WebhookExecutor, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, hooks: hooks, log: log}
	s.SetRate(cfg.RatePerSec)
	return s
}

// SetRate replaces the outbound rate cap. 0 removes it.
func (s *Service) SetRate(perSec int) {
	var lim *rate.Limiter
	if perSec > 0 {
		lim = rate.NewLimiter(rate.Limit(perSec), perSec)
	}
	s.mu.Lock()
	s.limiter = lim
	s.mu.Unlock()
}

// Deliver attempts each destination exactly once and returns one result per
// destination, in order. It never returns an error itself.
func (s *Service) Deliver(ctx context.Context, j Job) []Result {
	results := make([]Result, 0, len(j.Destinations))
	for _, d := range j.Destinations {
		err := s.sendOne(ctx, d, j.Payload)
		if err != nil {
			err = &DeliveryError{Destination: d, Err: err}
			s.log.Warn("delivery failed",
				logx.String("job", j.ID),
				logx.String("name", j.Name),
				logx.String("kind", string(d.Kind)),
				logx.String("channel_id", d.ChannelID),
				logx.Err(err))
		}
		results = append(results, Result{Destination: d, Err: err})
	}
	return results
}

func (s *Service) sendOne(ctx context.Context, d model.Destination, p platform.Payload) error {
	s.mu.RLock()
	lim := s.limiter
	s.mu.RUnlock()
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}
	switch d.Kind {
	case model.DestChannel:
		if s.sender == nil {
			return fmt.Errorf("no channel sender configured")
		}
		_, err := s.sender.Send(ctx, d.ChannelID, p)
		return err
	case model.DestWebhook:
		if s.hooks == nil {
			return fmt.Errorf("no webhook executor configured")
		}
		ref, err := platform.ParseWebhookURL(d.WebhookURL)
		if err != nil {
			return err
		}
		return s.hooks.ExecuteWebhook(ctx, ref, p)
	default:
		return fmt.Errorf("unknown destination kind %q", d.Kind)
	}
}
