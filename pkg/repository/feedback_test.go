package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/digestpool/pkg/domain"
)

func TestFeedbackRepository_AppendAndGet(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	item := testItem("t1", "hackernews", "https://news.example.com/1")
	require.NoError(t, repos.Item.UpsertItem(ctx, item))

	dist := 0.25
	fb := &domain.FeedbackItem{
		Tenant:          "t1",
		ItemID:          item.ID,
		Source:          "hackernews",
		Rating:          domain.RatingPositive,
		IncludedInFinal: true,
		DigestID:        "digest-1",
		OriginalSummary: "original text",
		EditedSummary:   "edited text",
		EditDistance:    &dist,
		Note:            "good find",
	}
	require.NoError(t, repos.Feedback.AppendFeedback(ctx, fb))
	assert.Positive(t, fb.ID)

	got, err := repos.Feedback.GetFeedback(ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RatingPositive, got.Rating)
	assert.True(t, got.IncludedInFinal)
	require.NotNil(t, got.EditDistance)
	assert.InDelta(t, 0.25, *got.EditDistance, 0.0001)
	assert.Equal(t, "good find", got.Note)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repos.Feedback.GetFeedback(ctx, 999999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFeedbackRepository_Update(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	item := testItem("t1", "hackernews", "https://news.example.com/1")
	require.NoError(t, repos.Item.UpsertItem(ctx, item))

	fb := &domain.FeedbackItem{Tenant: "t1", ItemID: item.ID, Source: "hackernews", Rating: domain.RatingNegative}
	require.NoError(t, repos.Feedback.AppendFeedback(ctx, fb))

	fb.Rating = domain.RatingPositive
	fb.Note = "changed my mind"
	require.NoError(t, repos.Feedback.UpdateFeedback(ctx, fb))

	got, err := repos.Feedback.GetFeedback(ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RatingPositive, got.Rating)
	assert.Equal(t, "changed my mind", got.Note)

	missing := &domain.FeedbackItem{ID: 999999, Rating: domain.RatingPositive}
	assert.ErrorIs(t, repos.Feedback.UpdateFeedback(ctx, missing), ErrNotFound)
}

func TestFeedbackRepository_ListAndCount(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	ratings := []domain.Rating{
		domain.RatingPositive, domain.RatingPositive, domain.RatingPositive,
		domain.RatingNegative, domain.RatingNeutral,
	}
	itemIDs := make([]int64, len(ratings))
	for i, rating := range ratings {
		item := testItem("t1", "hackernews", fmt.Sprintf("https://news.example.com/%d", i))
		require.NoError(t, repos.Item.UpsertItem(ctx, item))
		itemIDs[i] = item.ID

		fb := &domain.FeedbackItem{Tenant: "t1", ItemID: item.ID, Source: "hackernews", Rating: rating}
		if i == 0 {
			fb.Source = "reddit"
		}
		require.NoError(t, repos.Feedback.AppendFeedback(ctx, fb))
	}

	t.Run("list all", func(t *testing.T) {
		fbs, err := repos.Feedback.ListFeedback(ctx, &domain.FeedbackFilter{Tenant: "t1"})
		require.NoError(t, err)
		assert.Len(t, fbs, 5)
	})

	t.Run("filter by source", func(t *testing.T) {
		fbs, err := repos.Feedback.ListFeedback(ctx, &domain.FeedbackFilter{Tenant: "t1", Source: "reddit"})
		require.NoError(t, err)
		assert.Len(t, fbs, 1)
	})

	t.Run("filter by rating", func(t *testing.T) {
		fbs, err := repos.Feedback.ListFeedback(ctx, &domain.FeedbackFilter{Tenant: "t1", Rating: domain.RatingPositive})
		require.NoError(t, err)
		assert.Len(t, fbs, 3)
	})

	t.Run("filter by item", func(t *testing.T) {
		fbs, err := repos.Feedback.ListFeedback(ctx, &domain.FeedbackFilter{Tenant: "t1", ItemID: itemIDs[3]})
		require.NoError(t, err)
		require.Len(t, fbs, 1)
		assert.Equal(t, domain.RatingNegative, fbs[0].Rating)
	})

	t.Run("limit", func(t *testing.T) {
		fbs, err := repos.Feedback.ListFeedback(ctx, &domain.FeedbackFilter{Tenant: "t1", Limit: 2})
		require.NoError(t, err)
		assert.Len(t, fbs, 2)
	})

	t.Run("count", func(t *testing.T) {
		count, err := repos.Feedback.CountFeedback(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, int64(5), count)

		count, err = repos.Feedback.CountFeedback(ctx, "nobody")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("rating counts", func(t *testing.T) {
		counts, err := repos.Feedback.GetRatingCounts(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), counts[domain.RatingPositive])
		assert.Equal(t, int64(1), counts[domain.RatingNegative])
		assert.Equal(t, int64(1), counts[domain.RatingNeutral])
	})
}

func TestFeedbackRepository_DigestFeedback(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		fb := &domain.DigestFeedback{
			Tenant:            "t1",
			DigestID:          "digest-" + string(rune('a'+i)),
			OverallRating:     4,
			OriginalItemCount: 10,
			ItemsRemoved:      2,
			AcceptanceRate:    0.8,
			WouldRecommend:    true,
		}
		require.NoError(t, repos.Feedback.AppendDigestFeedback(ctx, fb))
		assert.Positive(t, fb.ID)
	}

	fbs, err := repos.Feedback.ListDigestFeedback(ctx, "t1", 0)
	require.NoError(t, err)
	assert.Len(t, fbs, 3)

	fbs, err = repos.Feedback.ListDigestFeedback(ctx, "t1", 2)
	require.NoError(t, err)
	assert.Len(t, fbs, 2)

	count, avgRating, avgAcceptance, err := repos.Feedback.GetDigestStats(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.InDelta(t, 4.0, avgRating, 0.0001)
	assert.InDelta(t, 0.8, avgAcceptance, 0.0001)

	count, avgRating, avgAcceptance, err = repos.Feedback.GetDigestStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, avgRating)
	assert.Zero(t, avgAcceptance)
}
