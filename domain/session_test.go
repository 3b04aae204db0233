package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := NewSession("agent-1", 0)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "agent-1", s.AgentID)
	assert.Equal(t, SessionActive, s.Status)
	assert.Nil(t, s.ExpiresAt)
	assert.False(t, s.IsExpired(time.Now().Add(24*time.Hour)))
}

func TestSession_Transitions(t *testing.T) {
	s := NewSession("agent-1", 0)

	s.Pause()
	assert.Equal(t, SessionPaused, s.Status)
	s.Resume()
	assert.Equal(t, SessionActive, s.Status)
	s.Interrupt()
	assert.Equal(t, SessionInterrupted, s.Status)

	s.Fail("model unavailable")
	assert.Equal(t, SessionFailed, s.Status)
	assert.Equal(t, "model unavailable", s.LastError)

	// any transition is allowed, including failed -> completed
	s.Complete()
	assert.Equal(t, SessionCompleted, s.Status)
}

func TestSession_IsExpired(t *testing.T) {
	s := NewSession("agent-1", time.Minute)
	require.NotNil(t, s.ExpiresAt)

	assert.False(t, s.IsExpired(time.Now()))
	assert.True(t, s.IsExpired(*s.ExpiresAt))
	assert.True(t, s.IsExpired(s.ExpiresAt.Add(time.Second)))
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("agent-1", time.Hour)
	s.Metadata = map[string]any{"channel": "web"}

	cp := s.Clone()
	*cp.ExpiresAt = cp.ExpiresAt.Add(time.Hour)
	cp.Metadata["channel"] = "cli"

	assert.NotEqual(t, *s.ExpiresAt, *cp.ExpiresAt)
	assert.Equal(t, "web", s.Metadata["channel"])
}
