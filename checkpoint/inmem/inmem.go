// Package inmem provides an in-memory checkpoint.Store reference
// implementation.
package inmem

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sovereignrun/agentcore/checkpoint"
)

// Store is a thread-safe, process-local checkpoint.Store.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]checkpoint.Checkpoint
}

// New constructs an empty Store.
func New() *Store {
	return &Store{byID: make(map[string]checkpoint.Checkpoint)}
}

// Save records ckpt. Checkpoints are immutable once saved; saving again
// under an ID that is already stored returns an error and keeps the
// original.
func (s *Store) Save(ckpt checkpoint.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[ckpt.ID]; exists {
		return fmt.Errorf("checkpoint: inmem: checkpoint %q already saved", ckpt.ID)
	}
	s.byID[ckpt.ID] = ckpt
	return nil
}

// Get retrieves a checkpoint by ID.
func (s *Store) Get(id string) (checkpoint.Checkpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	return c, ok
}

// ListByRun returns every checkpoint for runID, ordered by StepIndex.
func (s *Store) ListByRun(runID string) []checkpoint.Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []checkpoint.Checkpoint
	for _, c := range s.byID {
		if c.RunID == runID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepIndex < out[j].StepIndex })
	return out
}

// ListByTrace returns every checkpoint for traceID, ordered by StepIndex.
func (s *Store) ListByTrace(traceID string) []checkpoint.Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []checkpoint.Checkpoint
	for _, c := range s.byID {
		if c.TraceID == traceID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepIndex < out[j].StepIndex })
	return out
}
