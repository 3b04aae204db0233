package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/smallnest/agentscaffold/store"
)

func newCheckpoint(t *testing.T, thread string, version int) *store.Checkpoint {
	t.Helper()
	cp, err := store.NewCheckpoint(thread, "agent", map[string]any{"turn": version}, version)
	if err != nil {
		t.Fatalf("NewCheckpoint: %v", err)
	}
	return cp
}

func TestCheckpointStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	ms := NewCheckpointStore()
	ctx := context.Background()

	cp := newCheckpoint(t, "session-1", 1)
	cp.Metadata["agent_id"] = "agent-7"

	if err := ms.Save(ctx, cp); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	loaded, err := ms.Load(ctx, cp.ID)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if loaded.ThreadID != "session-1" || loaded.Node != "agent" || loaded.Version != 1 {
		t.Errorf("unexpected checkpoint: %+v", loaded)
	}
	if string(loaded.State) != string(cp.State) {
		t.Errorf("State mismatch: got %s, want %s", loaded.State, cp.State)
	}
	if loaded.Metadata["agent_id"] != "agent-7" {
		t.Error("metadata not preserved")
	}

	// stored value is a copy
	loaded.Metadata["agent_id"] = "changed"
	again, _ := ms.Load(ctx, cp.ID)
	if again.Metadata["agent_id"] != "agent-7" {
		t.Error("store state mutated through returned checkpoint")
	}
}

func TestCheckpointStore_LoadMissing(t *testing.T) {
	t.Parallel()

	_, err := NewCheckpointStore().Load(context.Background(), "nope")
	if !errors.Is(err, store.ErrCheckpointNotFound) {
		t.Fatalf("expected ErrCheckpointNotFound, got %v", err)
	}
}

func TestCheckpointStore_SaveRequiresID(t *testing.T) {
	t.Parallel()

	if err := NewCheckpointStore().Save(context.Background(), &store.Checkpoint{}); err == nil {
		t.Fatal("expected error for checkpoint without id")
	}
}

func TestCheckpointStore_ListAndLatest(t *testing.T) {
	t.Parallel()

	ms := NewCheckpointStore()
	ctx := context.Background()

	for _, v := range []int{3, 1, 2} {
		if err := ms.Save(ctx, newCheckpoint(t, "thread-a", v)); err != nil {
			t.Fatal(err)
		}
	}
	_ = ms.Save(ctx, newCheckpoint(t, "thread-b", 9))

	list, err := ms.List(ctx, "thread-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(list))
	}
	for i, cp := range list {
		if cp.Version != i+1 {
			t.Errorf("position %d: version %d", i, cp.Version)
		}
	}

	latest, err := ms.Latest(ctx, "thread-a")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Version != 3 {
		t.Errorf("latest version = %d, want 3", latest.Version)
	}

	next, err := store.NextVersion(ctx, ms, "thread-a")
	if err != nil || next != 4 {
		t.Errorf("NextVersion = %d, %v", next, err)
	}

	if _, err := ms.Latest(ctx, "empty"); !errors.Is(err, store.ErrCheckpointNotFound) {
		t.Errorf("expected not found for empty thread, got %v", err)
	}
	if next, _ := store.NextVersion(ctx, ms, "empty"); next != 1 {
		t.Errorf("NextVersion on empty thread = %d", next)
	}
}

func TestCheckpointStore_DeleteAndClear(t *testing.T) {
	t.Parallel()

	ms := NewCheckpointStore()
	ctx := context.Background()

	a := newCheckpoint(t, "thread-a", 1)
	b := newCheckpoint(t, "thread-a", 2)
	c := newCheckpoint(t, "thread-b", 1)
	for _, cp := range []*store.Checkpoint{a, b, c} {
		_ = ms.Save(ctx, cp)
	}

	if err := ms.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := ms.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("deleting an absent checkpoint should be a no-op, got %v", err)
	}
	if _, err := ms.Load(ctx, a.ID); err == nil {
		t.Error("checkpoint still present after delete")
	}

	if err := ms.Clear(ctx, "thread-a"); err != nil {
		t.Fatal(err)
	}
	list, _ := ms.List(ctx, "thread-a")
	if len(list) != 0 {
		t.Errorf("expected empty thread after clear, got %d", len(list))
	}
	if _, err := ms.Load(ctx, c.ID); err != nil {
		t.Error("clear removed a checkpoint of another thread")
	}
}

func TestCheckpointStore_ThreadSafety(t *testing.T) {
	t.Parallel()

	ms := NewCheckpointStore()
	ctx := context.Background()

	numGoroutines := 10
	perGoroutine := 5
	done := make(chan error, numGoroutines)

	for i := range numGoroutines {
		go func(worker int) {
			thread := fmt.Sprintf("session-%d", worker)
			for j := range perGoroutine {
				cp, _ := store.NewCheckpoint(thread, "agent", j, j+1)
				if err := ms.Save(ctx, cp); err != nil {
					done <- err
					return
				}
				if _, err := ms.Latest(ctx, thread); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}(i)
	}

	for range numGoroutines {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("worker error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("Test timed out")
		}
	}

	for i := range numGoroutines {
		list, _ := ms.List(ctx, fmt.Sprintf("session-%d", i))
		if len(list) != perGoroutine {
			t.Errorf("session-%d has %d checkpoints", i, len(list))
		}
	}
}
