package curation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/digestpool/pkg/config"
	"github.com/umputun/digestpool/pkg/domain"
)

// ItemStore is the content pool persistence interface
type ItemStore interface {
	GetItem(ctx context.Context, tenant, source, sourceURL string) (*domain.ContentItem, error)
	GetItemByID(ctx context.Context, id int64) (*domain.ContentItem, error)
	GetItemByExternalURL(ctx context.Context, tenant, externalURL string) (*domain.ContentItem, error)
	UpsertItem(ctx context.Context, item *domain.ContentItem) error
	ListItems(ctx context.Context, filter *domain.ItemFilter) ([]*domain.ContentItem, error)
}

// FeedbackStore is the feedback persistence interface
type FeedbackStore interface {
	AppendFeedback(ctx context.Context, fb *domain.FeedbackItem) error
	UpdateFeedback(ctx context.Context, fb *domain.FeedbackItem) error
	GetFeedback(ctx context.Context, id int64) (*domain.FeedbackItem, error)
	ListFeedback(ctx context.Context, filter *domain.FeedbackFilter) ([]*domain.FeedbackItem, error)
	CountFeedback(ctx context.Context, tenant string) (int64, error)
	GetRatingCounts(ctx context.Context, tenant string) (map[domain.Rating]int64, error)
	AppendDigestFeedback(ctx context.Context, fb *domain.DigestFeedback) error
	ListDigestFeedback(ctx context.Context, tenant string, limit int) ([]*domain.DigestFeedback, error)
	GetDigestStats(ctx context.Context, tenant string) (count int64, avgRating, avgAcceptance float64, err error)
}

// QualityStore is the source quality aggregate persistence interface
type QualityStore interface {
	GetSourceQuality(ctx context.Context, tenant, source string) (*domain.SourceQualityScore, error)
	ListSourceQuality(ctx context.Context, tenant string) ([]*domain.SourceQualityScore, error)
	UpsertSourceQuality(ctx context.Context, score *domain.SourceQualityScore) error
}

// PreferenceStore is the preference profile persistence interface
type PreferenceStore interface {
	GetPreferences(ctx context.Context, tenant string) (*domain.ContentPreferences, error)
	UpsertPreferences(ctx context.Context, prefs *domain.ContentPreferences) error
}

// Stores bundles the persistence interfaces the engine needs
type Stores struct {
	Items       ItemStore
	Feedback    FeedbackStore
	Quality     QualityStore
	Preferences PreferenceStore
}

// Engine is the content curation and feedback-learning facade. It owns no
// threading of its own - callers invoke it per tenant, per run; an external
// scheduler decides when.
type Engine struct {
	items     ItemStore
	feedback  FeedbackStore
	quality   QualityStore
	prefs     PreferenceStore
	cfg       config.CurationConfig
	norm      *Normalizer
	merger    *Merger
	scorer    *Scorer
	adjuster  *Adjuster
	tracker   *Tracker
	recorder  *Recorder
	extractor *Extractor
	itemLocks *keyedLocks
}

// NewEngine wires the curation components over the given stores
func NewEngine(cfg config.CurationConfig, stores Stores) *Engine {
	tracker := NewTracker(stores.Quality, stores.Feedback, cfg.Tracker)
	return &Engine{
		items:     stores.Items,
		feedback:  stores.Feedback,
		quality:   stores.Quality,
		prefs:     stores.Preferences,
		cfg:       cfg,
		norm:      NewNormalizer(cfg.Validation),
		merger:    NewMerger(cfg.Merge),
		scorer:    NewScorer(cfg.Scoring),
		adjuster:  NewAdjuster(cfg.Adjuster),
		tracker:   tracker,
		recorder:  NewRecorder(stores.Items, stores.Feedback, tracker),
		extractor: NewExtractor(stores.Items, stores.Feedback, stores.Quality, stores.Preferences, cfg.Preference),
		itemLocks: newKeyedLocks(),
	}
}

// ingestWorkers caps the parallel normalization fan-out
const ingestWorkers = 8

// Ingest normalizes, deduplicates and persists a batch of raw candidates for
// one tenant. Per-candidate failures are reported in the result and never
// abort the batch; only persistence-level failures surface as an error.
func (e *Engine) Ingest(ctx context.Context, tenant string, batch []domain.RawCandidate) (*domain.IngestResult, error) {
	result := &domain.IngestResult{RejectedReasons: make(map[string]int)}
	if len(batch) == 0 {
		return result, nil
	}

	// normalization has no shared state, fan out freely
	type slot struct {
		item   *domain.ContentItem
		reason string
	}
	slots := make([]slot, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestWorkers)
	for i := range batch {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			c := batch[i]
			if c.Tenant == "" {
				c.Tenant = tenant
			}
			item, reason := e.norm.Normalize(&c)
			slots[i] = slot{item: item, reason: reason}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("normalize batch: %w", err)
	}

	candidates := make([]*domain.ContentItem, 0, len(batch))
	for i, s := range slots {
		if s.reason != "" {
			result.Rejected = append(result.Rejected, domain.RejectedCandidate{
				Source:    batch[i].Source,
				SourceURL: batch[i].SourceURL,
				Title:     batch[i].Title,
				Reason:    s.reason,
			})
			result.RejectedReasons[s.reason]++
			continue
		}
		if s.item.Tenant != tenant {
			result.Rejected = append(result.Rejected, domain.RejectedCandidate{
				Source:    batch[i].Source,
				SourceURL: batch[i].SourceURL,
				Title:     batch[i].Title,
				Reason:    domain.RejectMissingTenant,
			})
			result.RejectedReasons[domain.RejectMissingTenant]++
			continue
		}
		candidates = append(candidates, s.item)
	}

	merged, batchMerges := e.merger.GroupAndMerge(candidates)
	result.MergedCount += batchMerges

	for _, item := range merged {
		// a merge can combine two sub-threshold fragments into a valid item,
		// or still fall short - re-check before persisting
		if reason := e.norm.Revalidate(item); reason != "" {
			result.Rejected = append(result.Rejected, domain.RejectedCandidate{
				Source:    item.Source,
				SourceURL: item.SourceURL,
				Title:     item.Title,
				Reason:    reason,
			})
			result.RejectedReasons[reason]++
			continue
		}

		mergedWithExisting, err := e.persistItem(ctx, item)
		if err != nil {
			return nil, err
		}
		if mergedWithExisting {
			result.MergedCount++
		}
		result.Accepted++
	}

	if len(result.RejectedReasons) > 0 {
		lgr.Printf("[DEBUG] ingest for %s rejected %d candidates: %v", tenant, len(result.Rejected), result.RejectedReasons)
	}
	lgr.Printf("[INFO] ingested %d candidates for %s: %d accepted, %d merged, %d rejected",
		len(batch), tenant, result.Accepted, result.MergedCount, len(result.Rejected))
	return result, nil
}

// persistItem upserts one merged candidate under its identity-key lock,
// folding it into an existing record when one matches the identity key or,
// cross-source, the external URL. Writers carrying an external URL serialize
// on it first, so two sources publishing the same story cannot read-modify-write
// one row in parallel. Reports whether a merge happened.
func (e *Engine) persistItem(ctx context.Context, item *domain.ContentItem) (mergedWithExisting bool, err error) {
	if item.ExternalURL != "" {
		unlockExt := e.itemLocks.lock(externalKey(item.Tenant, item.ExternalURL))
		defer unlockExt()
	}
	unlock := e.itemLocks.lock(identityKey(item))
	defer unlock()

	existing, err := e.items.GetItem(ctx, item.Tenant, item.Source, item.SourceURL)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("lookup existing item: %w", err)
	}
	if existing == nil && item.ExternalURL != "" {
		existing, err = e.items.GetItemByExternalURL(ctx, item.Tenant, item.ExternalURL)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return false, fmt.Errorf("lookup existing item by external url: %w", err)
		}
		if existing != nil {
			// the resolved record lives under another identity key; take that
			// lock too and re-read so a writer that just updated the row is
			// not clobbered with a stale copy
			unlockOther := e.itemLocks.lock(identityKey(existing))
			defer unlockOther()
			existing, err = e.items.GetItem(ctx, existing.Tenant, existing.Source, existing.SourceURL)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return false, fmt.Errorf("reload existing item: %w", err)
			}
		}
	}

	toStore := item
	if existing != nil {
		toStore = e.merger.Merge(existing, item)
		mergedWithExisting = true
	}

	if err := e.items.UpsertItem(ctx, toStore); err != nil {
		return false, fmt.Errorf("upsert item %s/%s: %w", toStore.Source, toStore.SourceURL, err)
	}
	return mergedWithExisting, nil
}

// Rank scores the given pool items for a tenant and returns them ordered by
// final score, best first. Quality and preference snapshots are read once per
// call; IDs with no persisted record are reported, not failed.
func (e *Engine) Rank(ctx context.Context, tenant string, itemIDs []int64) (*domain.RankResult, error) {
	result := &domain.RankResult{}
	if len(itemIDs) == 0 {
		return result, nil
	}

	items, err := e.items.ListItems(ctx, &domain.ItemFilter{Tenant: tenant, IDs: itemIDs})
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	byID := make(map[int64]*domain.ContentItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	qualities, err := e.quality.ListSourceQuality(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("load source quality: %w", err)
	}
	qualityBySource := make(map[string]*domain.SourceQualityScore, len(qualities))
	for _, q := range qualities {
		qualityBySource[q.Source] = q
	}

	prefs, err := e.prefs.GetPreferences(ctx, tenant)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	for _, id := range itemIDs {
		item, ok := byID[id]
		if !ok {
			result.Missing = append(result.Missing, id)
			continue
		}
		base := e.scorer.BaseScore(item)
		final := e.adjuster.Adjust(base, item, qualityBySource[item.Source], prefs)
		result.Ranked = append(result.Ranked, domain.RankedItem{ItemID: id, FinalScore: final})
	}

	sort.SliceStable(result.Ranked, func(i, j int) bool {
		return result.Ranked[i].FinalScore > result.Ranked[j].FinalScore
	})

	if len(result.Missing) > 0 {
		lgr.Printf("[DEBUG] rank for %s skipped %d unknown items", tenant, len(result.Missing))
	}
	return result, nil
}

// RecordFeedback records one human judgment on an item and synchronously
// updates the source quality aggregate it belongs to
func (e *Engine) RecordFeedback(ctx context.Context, tenant string, fb *domain.FeedbackItem) error {
	fb.Tenant = tenant
	return e.recorder.RecordItemFeedback(ctx, fb)
}

// UpdateFeedback replaces an existing feedback record and rebuilds the
// affected source aggregate
func (e *Engine) UpdateFeedback(ctx context.Context, tenant string, fb *domain.FeedbackItem) error {
	fb.Tenant = tenant
	return e.recorder.UpdateItemFeedback(ctx, fb)
}

// RecordDigestFeedback records one human judgment on a whole digest
func (e *Engine) RecordDigestFeedback(ctx context.Context, tenant string, fb *domain.DigestFeedback) error {
	fb.Tenant = tenant
	return e.recorder.RecordDigestFeedback(ctx, fb)
}

// ExtractPreferences recomputes and replaces the tenant's preference profile
// from the accumulated feedback. Meant for on-demand or periodic invocation,
// never triggered implicitly by the feedback write path.
func (e *Engine) ExtractPreferences(ctx context.Context, tenant string) (*domain.ContentPreferences, error) {
	return e.extractor.Extract(ctx, tenant)
}

// RecalculateSourceQuality rebuilds one source aggregate from its complete
// feedback history, for recovery and backfill
func (e *Engine) RecalculateSourceQuality(ctx context.Context, tenant, source string) (*domain.SourceQualityScore, error) {
	return e.tracker.Recalculate(ctx, tenant, source)
}
