package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/climdiff/climdiff/internal/pipeline"
	"github.com/climdiff/climdiff/pkg/types"
)

// Run states.
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StateCompleted = pipeline.StateCompleted
	StateFailed    = pipeline.StateFailed
)

// Run is one submitted selection and, once finished, its outcome.
type Run struct {
	ID          string
	Selection   types.Selection
	State       string
	Error       string
	Result      *pipeline.Result // set when State is completed
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Finished reports whether r reached a final state.
func (r Run) Finished() bool {
	return r.State == StateCompleted || r.State == StateFailed
}

// Store is a thread-safe in-memory run store, keyed by run ID.
// A background goroutine (Run) periodically evicts finished runs that have
// not been updated within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Run
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Run),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Create registers a pending run for sel and returns it.
func (s *Store) Create(sel types.Selection) Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	r := &Run{
		ID:          uuid.NewString(),
		Selection:   sel,
		State:       StatePending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	s.data[r.ID] = r
	return *r
}

// Start marks run id as running. It reports false for unknown IDs.
func (s *Store) Start(id string) bool {
	return s.update(id, func(r *Run) { r.State = StateRunning })
}

// Complete records the result of run id.
func (s *Store) Complete(id string, res *pipeline.Result) bool {
	return s.update(id, func(r *Run) {
		r.State = StateCompleted
		r.Result = res
	})
}

// Fail records the error that ended run id.
func (s *Store) Fail(id string, err error) bool {
	return s.update(id, func(r *Run) {
		r.State = StateFailed
		r.Error = err.Error()
	})
}

func (s *Store) update(id string, fn func(*Run)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[id]
	if !ok {
		return false
	}
	fn(r)
	r.UpdatedAt = s.now()
	return true
}

// Get returns a copy of run id and whether it was found.
func (s *Store) Get(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[id]
	if !ok {
		return Run{}, false
	}
	return *r, true
}

// List returns copies of all runs, newest submission first.
func (s *Store) List() []Run {
	s.mu.RLock()
	out := make([]Run, 0, len(s.data))
	for _, r := range s.data {
		out = append(out, *r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count returns the number of runs currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes finished runs whose UpdatedAt is older than now minus TTL.
// It returns the number of runs removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, r := range s.data {
		if r.Finished() && !r.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
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
				slog.Debug("store: evicted finished runs", "count", n)
			}
		}
	}
}
