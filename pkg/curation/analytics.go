package curation

import (
	"context"
	"errors"
	"fmt"

	"github.com/umputun/digestpool/pkg/domain"
)

// floor below which a source doesn't qualify for the best/worst leaderboards
const minFeedbackForRank = 3

// how many sources each leaderboard carries
const rankListSize = 3

// AnalyticsSummary builds the per-tenant feedback analytics snapshot.
// Recommendations are simple rule-derived strings, not generated text.
func (e *Engine) AnalyticsSummary(ctx context.Context, tenant string) (*domain.AnalyticsSummary, error) {
	summary := &domain.AnalyticsSummary{}

	counts, err := e.feedback.GetRatingCounts(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("get rating counts: %w", err)
	}
	total := counts[domain.RatingPositive] + counts[domain.RatingNegative] + counts[domain.RatingNeutral]
	summary.TotalFeedback = total
	if total > 0 {
		summary.PositiveRate = float64(counts[domain.RatingPositive]) / float64(total)
		summary.NegativeRate = float64(counts[domain.RatingNegative]) / float64(total)
	}

	qualities, err := e.quality.ListSourceQuality(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list source quality: %w", err)
	}

	var included, editCount int64
	var editSum float64
	ranked := make([]*domain.SourceQualityScore, 0, len(qualities))
	for _, q := range qualities {
		included += q.IncludedCount
		editSum += q.AvgEditDistance * float64(q.EditCount)
		editCount += q.EditCount
		if q.TotalCount() >= minFeedbackForRank {
			ranked = append(ranked, q)
		}
	}
	if total > 0 {
		summary.InclusionRate = float64(included) / float64(total)
	}
	if editCount > 0 {
		summary.AvgEditDistance = editSum / float64(editCount)
	}

	// qualities arrive sorted by quality score desc
	for i := 0; i < len(ranked) && i < rankListSize; i++ {
		summary.TopSources = append(summary.TopSources, sourceRank(ranked[i]))
	}
	for i := len(ranked) - 1; i >= 0 && len(summary.WorstSources) < rankListSize; i-- {
		if ranked[i].Source == "" || containsRank(summary.TopSources, ranked[i].Source) {
			continue
		}
		summary.WorstSources = append(summary.WorstSources, sourceRank(ranked[i]))
	}

	prefs, err := e.prefs.GetPreferences(ctx, tenant)
	switch {
	case err == nil:
		summary.ConfidenceLevel = prefs.Confidence
	case errors.Is(err, domain.ErrNotFound):
		// profile not extracted yet, derive confidence from the raw count
		summary.ConfidenceLevel = confidence(total, e.cfg.Preference.FullConfidenceFeedback)
	default:
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	digestCount, avgRating, avgAcceptance, err := e.feedback.GetDigestStats(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("get digest stats: %w", err)
	}
	summary.AvgDigestRating = avgRating
	summary.AvgAcceptance = avgAcceptance

	summary.Recommendations = recommendations(summary, qualities, digestCount)
	return summary, nil
}

// recommendations derives rule-based advice from the snapshot
func recommendations(s *domain.AnalyticsSummary, qualities []*domain.SourceQualityScore, digestCount int64) []string {
	var recs []string

	if s.ConfidenceLevel < 0.5 {
		recs = append(recs, "gather more feedback to improve personalization")
	}
	for _, q := range qualities {
		if q.QualityScore < 0.4 && q.TotalCount() >= 5 {
			recs = append(recs, fmt.Sprintf("consider removing source %q, quality score %.2f over %d feedbacks", q.Source, q.QualityScore, q.TotalCount()))
		}
	}
	if s.TotalFeedback >= 10 && s.InclusionRate < 0.3 {
		recs = append(recs, "most reviewed items are dropped from final digests, consider raising quality thresholds")
	}
	if digestCount >= 3 && s.AvgAcceptance < 0.5 {
		recs = append(recs, "digests need heavy editing before delivery, review source selection")
	}
	if s.TotalFeedback >= 10 && s.AvgEditDistance > 0.5 {
		recs = append(recs, "summaries are heavily rewritten during review, consider adjusting summary length")
	}

	if len(recs) == 0 {
		recs = append(recs, "no action needed")
	}
	return recs
}

func sourceRank(q *domain.SourceQualityScore) domain.SourceRank {
	return domain.SourceRank{
		Source:       q.Source,
		QualityScore: q.QualityScore,
		Label:        q.Label(),
		Feedback:     q.TotalCount(),
	}
}

func containsRank(ranks []domain.SourceRank, source string) bool {
	for _, r := range ranks {
		if r.Source == source {
			return true
		}
	}
	return false
}
