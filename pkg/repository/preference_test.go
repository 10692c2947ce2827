package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/digestpool/pkg/domain"
)

func TestPreferenceRepository(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	t.Run("missing profile", func(t *testing.T) {
		_, err := repos.Preference.GetPreferences(ctx, "t1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("upsert and get", func(t *testing.T) {
		prefs := &domain.ContentPreferences{
			Tenant:           "t1",
			PreferredSources: []string{"hackernews", "lobsters"},
			PreferredTopics:  []string{"go", "databases"},
			AvoidedTopics:    []string{"crypto"},
			MinScore:         50,
			MinComments:      10,
			RecencyDays:      7,
			TotalFeedback:    25,
			Confidence:       0.5,
		}
		require.NoError(t, repos.Preference.UpsertPreferences(ctx, prefs))

		got, err := repos.Preference.GetPreferences(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, []string{"hackernews", "lobsters"}, got.PreferredSources)
		assert.Equal(t, []string{"crypto"}, got.AvoidedTopics)
		assert.InDelta(t, 0.5, got.Confidence, 0.0001)
		assert.Equal(t, int64(25), got.TotalFeedback)
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("upsert fully replaces", func(t *testing.T) {
		require.NoError(t, repos.Preference.UpsertPreferences(ctx, &domain.ContentPreferences{
			Tenant:          "t1",
			PreferredTopics: []string{"ml"},
			TotalFeedback:   30,
			Confidence:      0.6,
		}))

		got, err := repos.Preference.GetPreferences(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, []string{"ml"}, got.PreferredTopics)
		assert.Empty(t, got.PreferredSources) // old sources dropped by the replace
		assert.Zero(t, got.MinScore)
	})

	t.Run("tenants are isolated", func(t *testing.T) {
		_, err := repos.Preference.GetPreferences(ctx, "t2")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
