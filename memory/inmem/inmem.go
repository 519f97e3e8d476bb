// Package inmem provides an in-memory memory.Store reference implementation,
// keyed maps behind a sync.RWMutex. It is intended for tests and the example
// CLI; no durable backend is wired.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sovereignrun/agentcore/memory"
)

// Store is a process-local memory.Store.
type Store struct {
	mu       sync.RWMutex
	threads  map[string]memory.Thread
	entries  map[string][]memory.Entry // keyed by threadID, insertion order
	connected bool
}

// New constructs an empty in-memory Store.
func New() *Store {
	return &Store{
		threads: make(map[string]memory.Thread),
		entries: make(map[string][]memory.Entry),
	}
}

// Connect marks the store connected. Idempotent.
func (s *Store) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// Disconnect marks the store disconnected. Idempotent.
func (s *Store) Disconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// CreateThread creates a thread, minting an id if threadID is empty. If
// threadID already exists, the existing Thread is returned unchanged.
func (s *Store) CreateThread(_ context.Context, agentID string, metadata map[string]any, threadID string) (memory.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if threadID == "" {
		threadID = "thread_" + uuid.New().String()[:12]
	}
	if existing, ok := s.threads[threadID]; ok {
		return existing, nil
	}
	th := memory.Thread{ID: threadID, AgentID: agentID, Metadata: metadata, CreatedAt: timeNow()}
	s.threads[threadID] = th
	return th, nil
}

// GetThread retrieves a thread by id.
func (s *Store) GetThread(_ context.Context, threadID string) (memory.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.threads[threadID]
	if !ok {
		return memory.Thread{}, fmt.Errorf("memory: thread not found: %s", threadID)
	}
	return th, nil
}

// AddEntry appends an entry to its thread, creating the thread first if it
// does not exist.
func (s *Store) AddEntry(ctx context.Context, entry memory.Entry) error {
	if entry.ThreadID == "" {
		return fmt.Errorf("memory: entry requires a thread id")
	}
	s.mu.Lock()
	if _, ok := s.threads[entry.ThreadID]; !ok {
		s.threads[entry.ThreadID] = memory.Thread{ID: entry.ThreadID, CreatedAt: timeNow()}
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = timeNow()
	}
	s.entries[entry.ThreadID] = append(s.entries[entry.ThreadID], entry)
	s.mu.Unlock()
	return nil
}

// GetEntries returns entries for a thread in insertion order, most-recent
// Limit entries by default, honoring an optional Before/After window.
func (s *Store) GetEntries(_ context.Context, query memory.EntryQuery) ([]memory.Entry, error) {
	s.mu.RLock()
	all := append([]memory.Entry(nil), s.entries[query.ThreadID]...)
	s.mu.RUnlock()

	filtered := make([]memory.Entry, 0, len(all))
	for _, e := range all {
		if query.Before != nil && !e.Timestamp.Before(*query.Before) {
			continue
		}
		if query.After != nil && !e.Timestamp.After(*query.After) {
			continue
		}
		filtered = append(filtered, e)
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Timestamp.Before(filtered[j].Timestamp) })

	limit := query.Limit
	if limit <= 0 || limit > len(filtered) {
		limit = len(filtered)
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// timeNow is a seam so tests could inject a fixed clock if needed; the
// runtime always calls it unmodified.
var timeNow = time.Now
