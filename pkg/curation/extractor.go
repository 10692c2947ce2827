package curation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/digestpool/pkg/config"
	"github.com/umputun/digestpool/pkg/domain"
)

// Extractor distills accumulated feedback into the tenant's preference
// profile. Extraction is deterministic and idempotent over the same feedback
// history, and the result fully replaces the previous profile. Confidence is
// a saturating function of the feedback count, so it can only grow as more
// feedback accumulates.
type Extractor struct {
	items    ItemStore
	feedback FeedbackStore
	quality  QualityStore
	prefs    PreferenceStore
	cfg      config.PreferenceConfig
	nowFn    func() time.Time
}

// NewExtractor creates an extractor over the given stores
func NewExtractor(items ItemStore, feedback FeedbackStore, quality QualityStore, prefs PreferenceStore, cfg config.PreferenceConfig) *Extractor {
	return &Extractor{
		items:    items,
		feedback: feedback,
		quality:  quality,
		prefs:    prefs,
		cfg:      cfg,
		nowFn:    time.Now,
	}
}

// Extract scans the tenant's feedback history and replaces the stored
// preference profile with a freshly derived one
func (e *Extractor) Extract(ctx context.Context, tenant string) (*domain.ContentPreferences, error) {
	total, err := e.feedback.CountFeedback(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}

	prefs := &domain.ContentPreferences{
		Tenant:        tenant,
		TotalFeedback: total,
		Confidence:    confidence(total, e.cfg.FullConfidenceFeedback),
	}

	// a source becomes preferred when its quality score exceeds the threshold
	qualities, err := e.quality.ListSourceQuality(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list source quality: %w", err)
	}
	for _, q := range qualities {
		if q.TotalCount() > 0 && q.QualityScore > e.cfg.SourceQualityThreshold {
			prefs.PreferredSources = append(prefs.PreferredSources, q.Source)
		}
	}
	sort.Strings(prefs.PreferredSources)

	posItems, err := e.ratedItems(ctx, tenant, domain.RatingPositive)
	if err != nil {
		return nil, err
	}
	negItems, err := e.ratedItems(ctx, tenant, domain.RatingNegative)
	if err != nil {
		return nil, err
	}

	prefs.PreferredTopics = e.topTags(posItems, nil)
	prefs.AvoidedTopics = e.topTags(negItems, prefs.PreferredTopics)

	// numeric thresholds come from the medians of positively-rated items
	if len(posItems) > 0 {
		scores := make([]float64, 0, len(posItems))
		comments := make([]float64, 0, len(posItems))
		ages := make([]float64, 0, len(posItems))
		now := e.nowFn()
		for _, it := range posItems {
			scores = append(scores, float64(it.Engagement.Score))
			comments = append(comments, float64(it.Engagement.Comments))
			if !it.PublishedAt.IsZero() {
				ages = append(ages, now.Sub(it.PublishedAt).Hours()/24)
			}
		}
		prefs.MinScore = median(scores)
		prefs.MinComments = int64(median(comments))
		if len(ages) > 0 {
			prefs.RecencyDays = int(math.Ceil(median(ages)))
		}
	}

	if err := e.prefs.UpsertPreferences(ctx, prefs); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}

	lgr.Printf("[INFO] extracted preferences for %s: %d sources, %d topics, confidence %.2f (%d feedbacks)",
		tenant, len(prefs.PreferredSources), len(prefs.PreferredTopics), prefs.Confidence, total)
	return prefs, nil
}

// ratedItems loads the distinct items behind the tenant's feedback with the
// given rating
func (e *Extractor) ratedItems(ctx context.Context, tenant string, rating domain.Rating) ([]*domain.ContentItem, error) {
	fbs, err := e.feedback.ListFeedback(ctx, &domain.FeedbackFilter{Tenant: tenant, Rating: rating})
	if err != nil {
		return nil, fmt.Errorf("list %s feedback: %w", rating, err)
	}
	if len(fbs) == 0 {
		return nil, nil
	}

	seen := make(map[int64]struct{}, len(fbs))
	ids := make([]int64, 0, len(fbs))
	for _, fb := range fbs {
		if _, ok := seen[fb.ItemID]; ok {
			continue
		}
		seen[fb.ItemID] = struct{}{}
		ids = append(ids, fb.ItemID)
	}

	items, err := e.items.ListItems(ctx, &domain.ItemFilter{Tenant: tenant, IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("load rated items: %w", err)
	}
	return items, nil
}

// topTags runs the frequency analysis over item tags, keeping tags that occur
// at least TopicMinCount times, most frequent first, capped at MaxTopics.
// Tags in exclude never make the cut.
func (e *Extractor) topTags(items []*domain.ContentItem, exclude []string) []string {
	excluded := make(map[string]struct{}, len(exclude))
	for _, t := range exclude {
		excluded[t] = struct{}{}
	}

	counts := make(map[string]int)
	for _, it := range items {
		for _, tag := range it.Tags {
			if _, ok := excluded[tag]; !ok {
				counts[tag]++
			}
		}
	}

	tags := make([]string, 0, len(counts))
	for tag, c := range counts {
		if c >= e.cfg.TopicMinCount {
			tags = append(tags, tag)
		}
	}
	// frequency desc, then name for a deterministic result
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})

	if len(tags) > e.cfg.MaxTopics {
		tags = tags[:e.cfg.MaxTopics]
	}
	return tags
}

// confidence is the saturating min(1, total/full) policy: a tenant needs
// `full` feedback signals to reach full confidence
func confidence(total int64, full int) float64 {
	if full <= 0 {
		return 1
	}
	c := float64(total) / float64(full)
	if c > 1 {
		return 1
	}
	return c
}

// median returns the middle value of the set, averaging the two middles for
// even-sized input; zero for an empty set
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
