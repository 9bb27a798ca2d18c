package memory

import (
	"context"
	"sync"
	"time"

	"github.com/halcyonlabs/sentinel/internal/application"
	"github.com/halcyonlabs/sentinel/internal/domain/consensus"
	"github.com/halcyonlabs/sentinel/internal/domain/memory"
)

// entry wraps the stored record with its own lock so concurrent lookups of
// different fingerprints never serialize on a store-wide lock.
type entry struct {
	mu   sync.Mutex
	data memory.Entry
}

// Store is the in-process VerdictStore. The map lock is held only for
// map access; per-entry mutation happens under the entry lock.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	clock   application.Clock
}

func NewStore(clock application.Clock) *Store {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Store{
		entries: make(map[string]*entry),
		clock:   clock,
	}
}

// Lookup bumps the access counter atomically and returns a snapshot, so
// callers cannot mutate the stored consensus.
func (s *Store) Lookup(_ context.Context, fingerprint string) (*memory.Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[fingerprint]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	e.data.AccessCount++
	e.data.LastAccessedAt = s.clock.Now()
	snapshot := e.data
	e.mu.Unlock()
	return &snapshot, true
}

// Record inserts or overwrites the entry for a fingerprint.
func (s *Store) Record(_ context.Context, fingerprint, excerpt string, verdict consensus.ConsensusResult) error {
	now := s.clock.Now()

	s.mu.RLock()
	e, ok := s.entries[fingerprint]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		// Double-check after acquiring write lock
		if e, ok = s.entries[fingerprint]; !ok {
			// The analysis that produced the verdict counts as the first
			// access, so a later lookup observes AccessCount == 2.
			e = &entry{data: memory.Entry{
				Fingerprint:    fingerprint,
				CreatedAt:      now,
				LastAccessedAt: now,
				AccessCount:    1,
			}}
			s.entries[fingerprint] = e
		}
		s.mu.Unlock()
	}

	e.mu.Lock()
	e.data.ContentExcerpt = excerpt
	e.data.Consensus = verdict
	e.mu.Unlock()
	return nil
}

// Sweep evicts entries created before the horizon.
func (s *Store) Sweep(_ context.Context, horizon time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for fp, e := range s.entries {
		e.mu.Lock()
		old := e.data.CreatedAt.Before(horizon)
		e.mu.Unlock()
		if old {
			delete(s.entries, fp)
			evicted++
		}
	}
	return evicted
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
