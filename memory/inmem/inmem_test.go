package inmem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/memory"
	"github.com/sovereignrun/agentcore/memory/inmem"
	"github.com/sovereignrun/agentcore/model"
)

func TestCreateThreadIdempotent(t *testing.T) {
	s := inmem.New()
	ctx := context.Background()
	th1, err := s.CreateThread(ctx, "agent-1", nil, "thread-a")
	require.NoError(t, err)
	th2, err := s.CreateThread(ctx, "agent-1", nil, "thread-a")
	require.NoError(t, err)
	assert.Equal(t, th1, th2)
}

func TestAddEntryCreatesThread(t *testing.T) {
	s := inmem.New()
	ctx := context.Background()
	err := s.AddEntry(ctx, memory.Entry{ThreadID: "t1", Message: &model.Message{Role: model.ConversationRoleUser}})
	require.NoError(t, err)

	th, err := s.GetThread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", th.ID)
}

func TestGetEntriesOrderAndLimit(t *testing.T) {
	s := inmem.New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddEntry(ctx, memory.Entry{ThreadID: "t1", Message: &model.Message{Role: model.ConversationRoleUser}, TokenCount: i}))
	}
	entries, err := s.GetEntries(ctx, memory.EntryQuery{ThreadID: "t1", Limit: 3})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[0].TokenCount)
	assert.Equal(t, 4, entries[2].TokenCount)
}

func TestGetThreadMissing(t *testing.T) {
	s := inmem.New()
	_, err := s.GetThread(context.Background(), "missing")
	assert.Error(t, err)
}
