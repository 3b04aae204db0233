// Package memory provides in-process implementations of the agent and session
// repositories and of store.CheckpointStore.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/smallnest/agentscaffold/store"
)

// CheckpointStore keeps checkpoints in a map guarded by a RWMutex.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*store.Checkpoint
}

var _ store.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore creates an empty in-memory checkpoint store
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{checkpoints: make(map[string]*store.Checkpoint)}
}

func (s *CheckpointStore) Save(_ context.Context, checkpoint *store.Checkpoint) error {
	if checkpoint == nil || checkpoint.ID == "" {
		return fmt.Errorf("checkpoint id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[checkpoint.ID] = cloneCheckpoint(checkpoint)
	return nil
}

func (s *CheckpointStore) Load(_ context.Context, checkpointID string) (*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[checkpointID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrCheckpointNotFound, checkpointID)
	}
	return cloneCheckpoint(cp), nil
}

func (s *CheckpointStore) Latest(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	list, err := s.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: thread %s", store.ErrCheckpointNotFound, threadID)
	}
	return list[len(list)-1], nil
}

func (s *CheckpointStore) List(_ context.Context, threadID string) ([]*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.Checkpoint, 0)
	for _, cp := range s.checkpoints {
		if cp.ThreadID == threadID {
			out = append(out, cloneCheckpoint(cp))
		}
	}
	store.SortByVersion(out)
	return out, nil
}

func (s *CheckpointStore) Delete(_ context.Context, checkpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, checkpointID)
	return nil
}

func (s *CheckpointStore) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cp := range s.checkpoints {
		if cp.ThreadID == threadID {
			delete(s.checkpoints, id)
		}
	}
	return nil
}

func cloneCheckpoint(cp *store.Checkpoint) *store.Checkpoint {
	c := *cp
	c.State = append([]byte(nil), cp.State...)
	if cp.Metadata != nil {
		c.Metadata = make(map[string]any, len(cp.Metadata))
		for k, v := range cp.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
