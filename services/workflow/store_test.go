package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveLoad(t *testing.T) {
	store := NewMemoryStore()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	wf := SampleWorkflow()
	require.NoError(t, store.Save(ctx, wf))
	assert.Equal(t, clock, wf.CreatedAt)

	clock = clock.Add(time.Hour)
	wf.Name = "renamed"
	require.NoError(t, store.Save(ctx, wf))

	loaded, err := store.Load(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", loaded.Name)
	assert.Equal(t, clock.Add(-time.Hour), loaded.CreatedAt)
	assert.Equal(t, clock, loaded.UpdatedAt)
}

func TestMemoryStore_IsolatesCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	wf := SampleWorkflow()
	require.NoError(t, store.Save(ctx, wf))
	wf.Nodes[1].Config = TelegramGetChatConfig{ChatID: "mutated"}

	loaded, err := store.Load(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, TelegramGetChatConfig{ChatID: "-1001234567890"}, loaded.Nodes[1].Config)
}

func TestMemoryStore_DropsRunStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	wf := SampleWorkflow()
	wf.Nodes[0].Status = StatusRunning
	require.NoError(t, store.Save(ctx, wf))

	loaded, err := store.Load(ctx, wf.ID)
	require.NoError(t, err)
	for _, n := range loaded.Nodes {
		assert.Equal(t, StatusInitial, n.Status, n.ID)
	}
	assert.Equal(t, StatusRunning, wf.Nodes[0].Status)
}

func TestMemoryStore_Errors(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	require.ErrorIs(t, err, ErrWorkflowNotFound)

	bad := &Workflow{ID: "bad", Edges: []Edge{{ID: "e", Source: "x", Target: "y"}}}
	require.ErrorIs(t, store.Save(ctx, bad), ErrInvalidConnection)
}
