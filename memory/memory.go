// Package memory exposes the persistence contract for per-thread
// conversation history. Store
// implementations must be thread-safe; the only invariant the orchestrator
// relies on is that entries for a given thread are retrievable in insertion
// order up to a limit. Spec §1 excludes implementing persistent storage
// engines, so this module ships only the contract plus an in-memory
// reference implementation (memory/inmem).
package memory

import (
	"context"
	"time"

	"github.com/sovereignrun/agentcore/model"
)

type (
	// Store persists thread-scoped conversation history. Implementations
	// must be safe for concurrent use by multiple runs.
	Store interface {
		// Connect establishes any underlying connection. Idempotent.
		Connect(ctx context.Context) error

		// Disconnect releases resources. Idempotent.
		Disconnect(ctx context.Context) error

		// CreateThread creates a thread for agentID if threadID is empty or
		// does not already exist, returning the resulting Thread. Creation
		// is idempotent for an existing threadID.
		CreateThread(ctx context.Context, agentID string, metadata map[string]any, threadID string) (Thread, error)

		// GetThread retrieves a thread by id.
		GetThread(ctx context.Context, threadID string) (Thread, error)

		// AddEntry persists one turn of a thread, creating the thread first
		// if it does not exist.
		AddEntry(ctx context.Context, entry Entry) error

		// GetEntries retrieves entries for a thread, most recent `Limit`
		// entries by default, optionally bounded by Before/After timestamps.
		GetEntries(ctx context.Context, query EntryQuery) ([]Entry, error)
	}

	// Thread is the memory scope into which turns of related runs are
	// persisted.
	Thread struct {
		ID        string
		AgentID   string
		Metadata  map[string]any
		CreatedAt time.Time
	}

	// Entry is one persisted turn: a message plus any tool calls/results
	// attached to it and an estimated token count.
	Entry struct {
		ThreadID    string
		Message     *model.Message
		ToolCalls   []model.ToolCall
		ToolResults []model.ToolResultPart
		TokenCount  int
		Timestamp   time.Time
	}

	// EntryQuery selects a window of entries from a thread.
	EntryQuery struct {
		ThreadID string
		Limit    int
		Before   *time.Time
		After    *time.Time
	}
)

// DefaultHistoryLimit is the number of most-recent entries the message
// builder fetches when no context builder is configured.
const DefaultHistoryLimit = 20
