package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCheckpoint_RoundTripsState(t *testing.T) {
	type conv struct {
		Messages []string `json:"messages"`
		Turns    int      `json:"turns"`
	}

	cp, err := NewCheckpoint("session-1", "agent", conv{Messages: []string{"hi"}, Turns: 1}, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, cp.ID)
	assert.Equal(t, "session-1", cp.ThreadID)
	assert.Equal(t, 3, cp.Version)

	var out conv
	require.NoError(t, cp.Decode(&out))
	assert.Equal(t, []string{"hi"}, out.Messages)
	assert.Equal(t, 1, out.Turns)
}

func TestNewCheckpoint_UnmarshalableState(t *testing.T) {
	_, err := NewCheckpoint("t", "n", make(chan int), 1)
	assert.Error(t, err)
}

func TestSortByVersion(t *testing.T) {
	now := time.Now()
	cps := []*Checkpoint{
		{ID: "c", Version: 3, CreatedAt: now},
		{ID: "b", Version: 2, CreatedAt: now.Add(time.Second)},
		{ID: "a", Version: 2, CreatedAt: now},
	}

	SortByVersion(cps)

	assert.Equal(t, "a", cps[0].ID)
	assert.Equal(t, "b", cps[1].ID)
	assert.Equal(t, "c", cps[2].ID)
}
