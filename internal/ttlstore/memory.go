package ttlstore

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	values  []string
	expires time.Time // zero means no expiry set yet
}

// Memory is an in-process Store. Expiry is lazy: entries are dropped when
// touched past their deadline.
type Memory struct {
	mu sync.Mutex
	m  map[string]*memEntry

	// now is swappable for tests.
	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: map[string]*memEntry{}, now: time.Now}
}

// SetNowFunc overrides the clock. For tests.
func (s *Memory) SetNowFunc(f func() time.Time) {
	s.mu.Lock()
	s.now = f
	s.mu.Unlock()
}

func (s *Memory) Append(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.liveLocked(key)
	if e == nil {
		e = &memEntry{}
		s.m[key] = e
	}
	e.values = append(e.values, value)
	return nil
}

func (s *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.liveLocked(key); e != nil {
		e.expires = s.now().Add(ttl)
	}
	return nil
}

func (s *Memory) Get(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.liveLocked(key)
	if e == nil {
		return nil, nil
	}
	out := make([]string, len(e.values))
	copy(out, e.values)
	return out, nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// liveLocked returns the entry at key, dropping it first if expired.
func (s *Memory) liveLocked(key string) *memEntry {
	e, ok := s.m[key]
	if !ok {
		return nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.m, key)
		return nil
	}
	return e
}
