// Package store defines conversation checkpoints and the CheckpointStore port.
// Backends live in the memory, redis, postgres and sqlite subpackages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrCheckpointNotFound is returned when a checkpoint or a thread's latest
// checkpoint does not exist.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Checkpoint is a saved conversation state for a thread (a session).
type Checkpoint struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	Node      string          `json:"node"`
	State     json.RawMessage `json:"state"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Version   int             `json:"version"`
}

// CheckpointStore defines the interface for checkpoint persistence
type CheckpointStore interface {
	// Save stores a checkpoint, replacing one with the same ID
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load retrieves a checkpoint by ID
	Load(ctx context.Context, checkpointID string) (*Checkpoint, error)

	// Latest returns the checkpoint with the highest version for a thread
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// List returns all checkpoints for a thread, version ascending
	List(ctx context.Context, threadID string) ([]*Checkpoint, error)

	// Delete removes a checkpoint. Deleting an absent checkpoint is not an error.
	Delete(ctx context.Context, checkpointID string) error

	// Clear removes all checkpoints for a thread
	Clear(ctx context.Context, threadID string) error
}

// NewCheckpoint marshals state into a new checkpoint for threadID.
func NewCheckpoint(threadID, node string, state any, version int) (*Checkpoint, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}
	return &Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Node:      node,
		State:     data,
		Metadata:  map[string]any{},
		CreatedAt: time.Now().UTC(),
		Version:   version,
	}, nil
}

// Decode unmarshals the checkpoint state into v.
func (c *Checkpoint) Decode(v any) error {
	if err := json.Unmarshal(c.State, v); err != nil {
		return fmt.Errorf("failed to unmarshal checkpoint %s: %w", c.ID, err)
	}
	return nil
}

// SortByVersion orders checkpoints by version, then creation time.
func SortByVersion(cps []*Checkpoint) {
	sort.SliceStable(cps, func(i, j int) bool {
		if cps[i].Version != cps[j].Version {
			return cps[i].Version < cps[j].Version
		}
		return cps[i].CreatedAt.Before(cps[j].CreatedAt)
	})
}

// NextVersion returns the version a new checkpoint for threadID should carry.
func NextVersion(ctx context.Context, s CheckpointStore, threadID string) (int, error) {
	latest, err := s.Latest(ctx, threadID)
	if errors.Is(err, ErrCheckpointNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return latest.Version + 1, nil
}
