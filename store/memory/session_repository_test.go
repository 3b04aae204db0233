package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
)

func TestSessionRepository_CRUD(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	s := domain.NewSession("agent-1", time.Hour)
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	got.Pause()
	require.NoError(t, repo.Update(ctx, got))

	again, _ := repo.FindByID(ctx, s.ID)
	assert.Equal(t, domain.SessionPaused, again.Status)

	require.NoError(t, repo.Delete(ctx, s.ID))
	require.NoError(t, repo.Delete(ctx, s.ID))

	_, err = repo.FindByID(ctx, s.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))

	err = repo.Update(ctx, s)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))
}

func TestSessionRepository_FindByAgentAndDeleteByAgent(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	base := time.Now()
	for i, agentID := range []string{"a", "b", "a", "a"} {
		s := domain.NewSession(agentID, 0)
		s.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, s))
	}

	page, err := repo.FindByAgent(ctx, "a", domain.Page{Take: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].CreatedAt.Before(page.Items[1].CreatedAt))

	all, err := repo.FindAll(ctx, domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)

	removed, err := repo.DeleteByAgent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	n, _ := repo.Count(ctx)
	assert.Equal(t, 1, n)
}
