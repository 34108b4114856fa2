package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a run is neither in memory nor archived.
var ErrNotFound = errors.New("store: run not found")

// Archive persists runs beyond the in-memory TTL.
type Archive interface {
	Save(ctx context.Context, r *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]*Run, error)
	Close() error
}

// Store is a thread-safe in-memory run store keyed by run ID.
// A background goroutine (Run) periodically evicts runs older than the
// configured TTL. A zero TTL keeps runs until restart.
type Store struct {
	mu      sync.RWMutex
	data    map[string]*Run
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests
	archive Archive
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Run),
		ttl:  ttl,
		now:  time.Now,
	}
}

// WithArchive makes Put also save to a, and Get fall back to a for runs no
// longer in memory.
func (s *Store) WithArchive(a Archive) *Store {
	s.archive = a
	return s
}

// Archiving reports whether an archive is attached.
func (s *Store) Archiving() bool { return s.archive != nil }

// Put stores r in memory and, when an archive is attached, saves it there.
// The in-memory copy is kept even if the archive write fails.
// Callers must not modify r after calling Put.
func (s *Store) Put(ctx context.Context, r *Run) error {
	s.mu.Lock()
	s.data[r.ID] = r
	s.mu.Unlock()

	if s.archive == nil {
		return nil
	}
	if err := s.archive.Save(ctx, r); err != nil {
		slog.Warn("store: archive save failed", "run", r.ID, "err", err)
		return err
	}
	return nil
}

// Get returns the run with the given ID from memory or, failing that, from
// the archive. It returns ErrNotFound when neither has it.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	r, ok := s.data[id]
	s.mu.RUnlock()
	if ok {
		return r, nil
	}
	if s.archive == nil {
		return nil, ErrNotFound
	}
	return s.archive.Get(ctx, id)
}

// List returns the live in-memory runs, newest first.
func (s *Store) List() []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	out := make([]*Run, 0, len(s.data))
	for _, r := range s.data {
		if s.live(r, now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Archived lists up to limit archived runs, newest first. Without an archive
// it returns the first limit live runs.
func (s *Store) Archived(ctx context.Context, limit int) ([]*Run, error) {
	if s.archive == nil {
		runs := s.List()
		if len(runs) > limit {
			runs = runs[:limit]
		}
		return runs, nil
	}
	return s.archive.List(ctx, limit)
}

// Count returns the total number of runs currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes runs created before now minus TTL and returns how many were
// removed. Archived copies are untouched.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, r := range s.data {
		if !s.live(r, now) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

func (s *Store) live(r *Run, now time.Time) bool {
	if s.ttl <= 0 {
		return true
	}
	return r.CreatedAt.After(now.Add(-s.ttl))
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted expired runs", "count", n)
			}
		}
	}
}
