package curation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/digestpool/pkg/domain"
)

func TestEngine_AnalyticsSummary(t *testing.T) {
	eng, repos := setupTestEngine(t)
	ctx := context.Background()

	t.Run("empty tenant", func(t *testing.T) {
		summary, err := eng.AnalyticsSummary(ctx, "nobody")
		require.NoError(t, err)
		assert.Zero(t, summary.TotalFeedback)
		assert.Empty(t, summary.TopSources)
		assert.Contains(t, summary.Recommendations, "gather more feedback to improve personalization")
	})

	// build history: a strong source, a weak source and one with too little
	// feedback to qualify for the leaderboards
	feed := func(source string, positives, negatives int) {
		for i := 0; i < positives+negatives; i++ {
			item := testPoolItem("t1", source, fmt.Sprintf("https://%s.example.com/%d", source, i))
			require.NoError(t, repos.Item.UpsertItem(ctx, item))
			rating := domain.RatingPositive
			included := true
			if i >= positives {
				rating = domain.RatingNegative
				included = false
			}
			require.NoError(t, eng.RecordFeedback(ctx, "t1", &domain.FeedbackItem{
				ItemID: item.ID, Rating: rating, IncludedInFinal: included,
			}))
		}
	}
	feed("strong", 8, 2)
	feed("decent", 3, 1)
	feed("meh", 2, 2)
	feed("weak", 1, 6)
	feed("sparse", 1, 0)

	summary, err := eng.AnalyticsSummary(ctx, "t1")
	require.NoError(t, err)

	t.Run("rates", func(t *testing.T) {
		assert.Equal(t, int64(26), summary.TotalFeedback)
		assert.InDelta(t, 15.0/26, summary.PositiveRate, 0.0001)
		assert.InDelta(t, 11.0/26, summary.NegativeRate, 0.0001)
		assert.InDelta(t, 15.0/26, summary.InclusionRate, 0.0001)
	})

	t.Run("leaderboards respect the feedback floor", func(t *testing.T) {
		require.NotEmpty(t, summary.TopSources)
		assert.Equal(t, "strong", summary.TopSources[0].Source)
		assert.Equal(t, "Excellent", summary.TopSources[0].Label)

		require.NotEmpty(t, summary.WorstSources)
		assert.Equal(t, "weak", summary.WorstSources[0].Source)

		for _, r := range append(summary.TopSources, summary.WorstSources...) {
			assert.NotEqual(t, "sparse", r.Source, "a single feedback must not rank a source")
		}
	})

	t.Run("confidence derived before extraction", func(t *testing.T) {
		assert.InDelta(t, 26.0/50, summary.ConfidenceLevel, 0.0001)
	})

	t.Run("recommends removing the weak source", func(t *testing.T) {
		var found bool
		for _, rec := range summary.Recommendations {
			if rec == `consider removing source "weak", quality score 0.14 over 7 feedbacks` {
				found = true
			}
		}
		assert.True(t, found, "got %v", summary.Recommendations)
	})

	t.Run("digest stats folded in", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, eng.RecordDigestFeedback(ctx, "t1", &domain.DigestFeedback{
				OverallRating: 4, OriginalItemCount: 10, ItemsRemoved: 8,
			}))
		}

		withDigests, err := eng.AnalyticsSummary(ctx, "t1")
		require.NoError(t, err)
		assert.InDelta(t, 4.0, withDigests.AvgDigestRating, 0.0001)
		assert.InDelta(t, 0.2, withDigests.AvgAcceptance, 0.0001)
		assert.Contains(t, withDigests.Recommendations, "digests need heavy editing before delivery, review source selection")
	})

	t.Run("confidence from stored profile after extraction", func(t *testing.T) {
		_, err := eng.ExtractPreferences(ctx, "t1")
		require.NoError(t, err)

		extracted, err := eng.AnalyticsSummary(ctx, "t1")
		require.NoError(t, err)
		assert.InDelta(t, 26.0/50, extracted.ConfidenceLevel, 0.0001)
	})
}

func TestRecommendations_NoAction(t *testing.T) {
	s := &domain.AnalyticsSummary{
		TotalFeedback:   100,
		InclusionRate:   0.8,
		AvgEditDistance: 0.1,
		AvgAcceptance:   0.8,
		ConfidenceLevel: 0.9,
	}
	recs := recommendations(s, nil, 10)
	assert.Equal(t, []string{"no action needed"}, recs)
}

func TestRecommendations_HeavyEditing(t *testing.T) {
	s := &domain.AnalyticsSummary{
		TotalFeedback:   20,
		InclusionRate:   0.8,
		AvgEditDistance: 0.7,
		ConfidenceLevel: 0.9,
	}
	recs := recommendations(s, nil, 0)
	assert.Contains(t, recs, "summaries are heavily rewritten during review, consider adjusting summary length")
}
