package curation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/digestpool/pkg/config"
	"github.com/umputun/digestpool/pkg/domain"
)

// Tracker maintains the rolling per-(tenant, source) quality aggregate.
// Incremental updates and full recomputes go through the same per-source
// serialization boundary; a recompute always swaps the whole row at once.
type Tracker struct {
	quality  QualityStore
	feedback FeedbackStore
	halfLife time.Duration
	locks    *keyedLocks
	nowFn    func() time.Time
}

// NewTracker creates a tracker over the given stores
func NewTracker(quality QualityStore, feedback FeedbackStore, cfg config.TrackerConfig) *Tracker {
	return &Tracker{
		quality:  quality,
		feedback: feedback,
		halfLife: cfg.TrendingHalfLife,
		locks:    newKeyedLocks(),
		nowFn:    time.Now,
	}
}

// Record applies one new feedback signal to the source aggregate. Counters
// are updated incrementally; the trending score is recomputed from the
// source's history because it depends on the age of every signal.
func (t *Tracker) Record(ctx context.Context, fb *domain.FeedbackItem) error {
	unlock := t.locks.lock(fb.Tenant + "\x00" + fb.Source)
	defer unlock()

	cur, err := t.quality.GetSourceQuality(ctx, fb.Tenant, fb.Source)
	if errors.Is(err, domain.ErrNotFound) {
		cur = &domain.SourceQualityScore{Tenant: fb.Tenant, Source: fb.Source}
	} else if err != nil {
		return fmt.Errorf("get source quality: %w", err)
	}

	switch fb.Rating {
	case domain.RatingPositive:
		cur.PositiveCount++
	case domain.RatingNegative:
		cur.NegativeCount++
	case domain.RatingNeutral:
		cur.NeutralCount++
	}
	if fb.IncludedInFinal {
		cur.IncludedCount++
	}
	if fb.EditDistance != nil {
		cur.AvgEditDistance = (cur.AvgEditDistance*float64(cur.EditCount) + *fb.EditDistance) / float64(cur.EditCount+1)
		cur.EditCount++
	}

	total := cur.TotalCount()
	cur.QualityScore = float64(cur.PositiveCount) / float64(total)
	cur.InclusionRate = float64(cur.IncludedCount) / float64(total)

	trending, err := t.trendingScore(ctx, fb.Tenant, fb.Source)
	if err != nil {
		return err
	}
	cur.TrendingScore = trending

	if err := t.quality.UpsertSourceQuality(ctx, cur); err != nil {
		return fmt.Errorf("save source quality: %w", err)
	}
	return nil
}

// Recalculate rebuilds the aggregate from the full feedback history and swaps
// it in atomically. Used for recovery and backfill; a divergence from the
// incremental state means the serialization rules were violated somewhere and
// is logged loudly, the recomputed value wins.
func (t *Tracker) Recalculate(ctx context.Context, tenant, source string) (*domain.SourceQualityScore, error) {
	unlock := t.locks.lock(tenant + "\x00" + source)
	defer unlock()

	history, err := t.feedback.ListFeedback(ctx, &domain.FeedbackFilter{Tenant: tenant, Source: source})
	if err != nil {
		return nil, fmt.Errorf("list feedback history: %w", err)
	}

	fresh := t.computeFromHistory(tenant, source, history)

	stored, err := t.quality.GetSourceQuality(ctx, tenant, source)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get stored source quality: %w", err)
	}
	if stored != nil && diverged(stored, fresh) {
		lgr.Printf("[WARN] inconsistent aggregate for %s/%s: stored %d/%d/%d q=%.4f, recomputed %d/%d/%d q=%.4f",
			tenant, source,
			stored.PositiveCount, stored.NegativeCount, stored.NeutralCount, stored.QualityScore,
			fresh.PositiveCount, fresh.NegativeCount, fresh.NeutralCount, fresh.QualityScore)
	}

	if err := t.quality.UpsertSourceQuality(ctx, fresh); err != nil {
		return nil, fmt.Errorf("swap source quality: %w", err)
	}
	return fresh, nil
}

// computeFromHistory derives the full aggregate from a feedback history
func (t *Tracker) computeFromHistory(tenant, source string, history []*domain.FeedbackItem) *domain.SourceQualityScore {
	score := &domain.SourceQualityScore{Tenant: tenant, Source: source}
	if len(history) == 0 {
		return score
	}

	var editSum float64
	now := t.nowFn()
	var weightSum, weightedPositive float64

	for _, fb := range history {
		switch fb.Rating {
		case domain.RatingPositive:
			score.PositiveCount++
		case domain.RatingNegative:
			score.NegativeCount++
		case domain.RatingNeutral:
			score.NeutralCount++
		}
		if fb.IncludedInFinal {
			score.IncludedCount++
		}
		if fb.EditDistance != nil {
			editSum += *fb.EditDistance
			score.EditCount++
		}

		w := decayWeight(now.Sub(fb.CreatedAt), t.halfLife)
		weightSum += w
		if fb.Rating == domain.RatingPositive {
			weightedPositive += w
		}
	}

	total := score.TotalCount()
	score.QualityScore = float64(score.PositiveCount) / float64(total)
	score.InclusionRate = float64(score.IncludedCount) / float64(total)
	if score.EditCount > 0 {
		score.AvgEditDistance = editSum / float64(score.EditCount)
	}
	if weightSum > 0 {
		score.TrendingScore = weightedPositive / weightSum
	}
	return score
}

// trendingScore computes the recency-weighted quality score from history
func (t *Tracker) trendingScore(ctx context.Context, tenant, source string) (float64, error) {
	history, err := t.feedback.ListFeedback(ctx, &domain.FeedbackFilter{Tenant: tenant, Source: source})
	if err != nil {
		return 0, fmt.Errorf("list feedback for trending: %w", err)
	}

	now := t.nowFn()
	var weightSum, weightedPositive float64
	for _, fb := range history {
		w := decayWeight(now.Sub(fb.CreatedAt), t.halfLife)
		weightSum += w
		if fb.Rating == domain.RatingPositive {
			weightedPositive += w
		}
	}
	if weightSum == 0 {
		return 0, nil
	}
	return weightedPositive / weightSum, nil
}

// decayWeight is the exponential half-life decay, 1.0 for fresh feedback
func decayWeight(age, halfLife time.Duration) float64 {
	if age <= 0 {
		return 1.0
	}
	return math.Exp2(-age.Hours() / halfLife.Hours())
}

// diverged compares the incremental aggregate against a fresh recompute
func diverged(stored, fresh *domain.SourceQualityScore) bool {
	const eps = 1e-9
	return stored.PositiveCount != fresh.PositiveCount ||
		stored.NegativeCount != fresh.NegativeCount ||
		stored.NeutralCount != fresh.NeutralCount ||
		stored.IncludedCount != fresh.IncludedCount ||
		stored.EditCount != fresh.EditCount ||
		math.Abs(stored.QualityScore-fresh.QualityScore) > eps ||
		math.Abs(stored.InclusionRate-fresh.InclusionRate) > eps ||
		math.Abs(stored.AvgEditDistance-fresh.AvgEditDistance) > eps
}
