package participants

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/internal/sessions"
	"github.com/meetup-qa/backend/internal/testutil"
)

func TestRepository(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()
	sessionRepo := sessions.NewRepository(pool)
	s, err := sessionRepo.Create(ctx, "JOIN01", "Host", nil, 3)
	require.NoError(t, err)

	repo := NewRepository(pool)
	ann, err := repo.Add(ctx, s.ID, "Ann", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, ann.RemainingVotes)
	assert.False(t, ann.IsAdmin)

	_, err = repo.Add(ctx, s.ID, "Ann", 3)
	assert.ErrorIs(t, err, models.ErrNameTaken)
	_, err = repo.Add(ctx, s.ID+100, "Bob", 3)
	assert.ErrorIs(t, err, models.ErrNotFound)

	host, err := repo.GetByName(ctx, s.ID, "Host")
	require.NoError(t, err)
	assert.True(t, host.IsAdmin)

	require.NoError(t, repo.SetModerator(ctx, s.ID, ann.ID, true))
	got, err := repo.GetByID(ctx, s.ID, ann.ID)
	require.NoError(t, err)
	assert.True(t, got.IsModerator)
	assert.ErrorIs(t, repo.SetModerator(ctx, s.ID, ann.ID+100, true), models.ErrNotFound)

	ok, err := repo.IsParticipant(ctx, s.ID, "Ann")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, repo.Remove(ctx, s.ID, host.ID), models.ErrNotFound)
	require.NoError(t, repo.Remove(ctx, s.ID, ann.ID))
	_, err = repo.GetByName(ctx, s.ID, "Ann")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = sessionRepo.End(ctx, s.ID)
	require.NoError(t, err)
	ok, err = repo.IsParticipant(ctx, s.ID, "Host")
	require.NoError(t, err)
	assert.False(t, ok)
}
