package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentscaffold/store"
)

func newTestStore(t *testing.T, ttl time.Duration) (*CheckpointStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewCheckpointStore(Options{Addr: mr.Addr(), TTL: ttl})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func checkpoint(t *testing.T, thread string, version int) *store.Checkpoint {
	t.Helper()
	cp, err := store.NewCheckpoint(thread, "agent", map[string]any{"foo": "bar"}, version)
	require.NoError(t, err)
	return cp
}

func TestCheckpointStore(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	cp := checkpoint(t, "session-1", 1)
	require.NoError(t, s.Save(ctx, cp))

	loaded, err := s.Load(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, loaded.ID)
	assert.Equal(t, "agent", loaded.Node)
	assert.Equal(t, "session-1", loaded.ThreadID)

	var state map[string]any
	require.NoError(t, loaded.Decode(&state))
	assert.Equal(t, "bar", state["foo"])

	list, err := s.List(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete(ctx, cp.ID))
	_, err = s.Load(ctx, cp.ID)
	assert.ErrorIs(t, err, store.ErrCheckpointNotFound)

	list, err = s.List(ctx, "session-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	// deleting again is a no-op
	assert.NoError(t, s.Delete(ctx, cp.ID))
}

func TestCheckpointStore_LatestAndOrdering(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	for _, v := range []int{2, 3, 1} {
		require.NoError(t, s.Save(ctx, checkpoint(t, "session-1", v)))
	}

	list, err := s.List(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 1, list[0].Version)
	assert.Equal(t, 3, list[2].Version)

	latest, err := s.Latest(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)

	_, err = s.Latest(ctx, "other")
	assert.ErrorIs(t, err, store.ErrCheckpointNotFound)
}

func TestCheckpointStore_Clear(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, checkpoint(t, "session-1", 1)))
	require.NoError(t, s.Save(ctx, checkpoint(t, "session-1", 2)))
	keep := checkpoint(t, "session-2", 1)
	require.NoError(t, s.Save(ctx, keep))

	require.NoError(t, s.Clear(ctx, "session-1"))

	list, err := s.List(ctx, "session-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Load(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestCheckpointStore_TTL(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	cp := checkpoint(t, "session-1", 1)
	require.NoError(t, s.Save(ctx, cp))
	assert.Equal(t, time.Minute, mr.TTL("agentscaffold:checkpoint:"+cp.ID))

	mr.FastForward(2 * time.Minute)

	_, err := s.Load(ctx, cp.ID)
	assert.ErrorIs(t, err, store.ErrCheckpointNotFound)
}
