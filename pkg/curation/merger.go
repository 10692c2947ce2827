package curation

import (
	"time"

	"github.com/umputun/digestpool/pkg/config"
	"github.com/umputun/digestpool/pkg/domain"
)

// Merger combines duplicate content items without losing information.
// Text fields keep the longer value, engagement keeps the maximum, tags are
// unioned and the losing side of any single-value conflict is archived into
// the merge history instead of being silently dropped.
//
// The "first non-null wins" fields (author, media links) are order-sensitive
// unless MergeConfig.PreferredSources pins a source precedence.
type Merger struct {
	precedence map[string]int
}

// NewMerger creates a merger with the given merge policy
func NewMerger(cfg config.MergeConfig) *Merger {
	precedence := make(map[string]int, len(cfg.PreferredSources))
	for i, s := range cfg.PreferredSources {
		precedence[s] = i
	}
	return &Merger{precedence: precedence}
}

// GroupAndMerge folds a batch of normalized items into one item per identity
// key, additionally collapsing cross-source duplicates that share an external
// URL. Returns the deduplicated items in first-seen order and the number of
// merge operations performed.
func (m *Merger) GroupAndMerge(items []*domain.ContentItem) (merged []*domain.ContentItem, mergeOps int) {
	byKey := make(map[string]*domain.ContentItem, len(items))
	byExt := make(map[string]*domain.ContentItem)

	for _, it := range items {
		key := identityKey(it)
		if dst, ok := byKey[key]; ok {
			m.Merge(dst, it)
			mergeOps++
			continue
		}

		if it.ExternalURL != "" {
			extKey := it.Tenant + "\x00" + it.ExternalURL
			if dst, ok := byExt[extKey]; ok {
				// same story seen through another source, fold into the
				// first-seen record and keep its identity key
				m.Merge(dst, it)
				mergeOps++
				byKey[key] = dst
				continue
			}
			byExt[extKey] = it
		}

		byKey[key] = it
		merged = append(merged, it)
	}
	return merged, mergeOps
}

// Merge folds src into dst in place and returns dst. Deterministic given the
// operand order; every conflict on a single-value field is recorded in the
// merge history.
func (m *Merger) Merge(dst, src *domain.ContentItem) *domain.ContentItem {
	conflicts := make(map[string]string)
	srcWins := m.rank(src.Source) < m.rank(dst.Source)

	dst.Title = pickLonger(dst.Title, src.Title)
	dst.Content = pickLonger(dst.Content, src.Content)
	dst.Summary = pickLonger(dst.Summary, src.Summary)

	dst.Author, dst.AuthorURL = m.pickFirst2(dst.Author, dst.AuthorURL, src.Author, src.AuthorURL, srcWins, "author", conflicts)
	dst.ImageURL = m.pickFirst(dst.ImageURL, src.ImageURL, srcWins, "image_url", conflicts)
	dst.VideoURL = m.pickFirst(dst.VideoURL, src.VideoURL, srcWins, "video_url", conflicts)

	if dst.ExternalURL == "" {
		dst.ExternalURL = src.ExternalURL
	}
	if dst.Category == "" {
		dst.Category = src.Category
	}
	if dst.PublishedAt.IsZero() || (!src.PublishedAt.IsZero() && src.PublishedAt.Before(dst.PublishedAt)) {
		// earliest known publish time is the original one
		if !src.PublishedAt.IsZero() {
			dst.PublishedAt = src.PublishedAt
		}
	}

	// engagement only grows or is re-measured more favorably, never shrinks
	dst.Engagement = domain.Engagement{
		Score:    max(dst.Engagement.Score, src.Engagement.Score),
		Comments: max(dst.Engagement.Comments, src.Engagement.Comments),
		Shares:   max(dst.Engagement.Shares, src.Engagement.Shares),
		Views:    max(dst.Engagement.Views, src.Engagement.Views),
	}

	dst.Tags = normalizeTags(append(dst.Tags, src.Tags...))

	// shallow-merge metadata, first-seen keys win
	if dst.Metadata == nil {
		dst.Metadata = make(map[string]any)
	}
	for k, v := range src.Metadata {
		if k == domain.MergeHistoryKey {
			continue
		}
		if _, ok := dst.Metadata[k]; !ok {
			dst.Metadata[k] = v
		}
	}

	m.appendHistory(dst, src, conflicts)
	return dst
}

// appendHistory records which source was merged in, when, and any values that
// lost a single-value conflict
func (m *Merger) appendHistory(dst, src *domain.ContentItem, conflicts map[string]string) {
	entry := map[string]any{
		"source":     src.Source,
		"source_url": src.SourceURL,
		"merged_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if len(conflicts) > 0 {
		entry["conflicts"] = conflicts
	}

	history, _ := dst.Metadata[domain.MergeHistoryKey].([]any)
	dst.Metadata[domain.MergeHistoryKey] = append(history, entry)
}

// pickFirst resolves a first-non-null field. The losing non-empty value is
// archived under the field name in conflicts.
func (m *Merger) pickFirst(dstVal, srcVal string, srcWins bool, field string, conflicts map[string]string) string {
	switch {
	case dstVal == "":
		return srcVal
	case srcVal == "" || srcVal == dstVal:
		return dstVal
	case srcWins:
		conflicts[field] = dstVal
		return srcVal
	default:
		conflicts[field] = srcVal
		return dstVal
	}
}

// pickFirst2 resolves author and author_url together so they stay consistent
func (m *Merger) pickFirst2(dstVal, dstURL, srcVal, srcURL string, srcWins bool, field string, conflicts map[string]string) (val, u string) {
	switch {
	case dstVal == "":
		return srcVal, srcURL
	case srcVal == "" || srcVal == dstVal:
		if dstURL == "" {
			dstURL = srcURL
		}
		return dstVal, dstURL
	case srcWins:
		conflicts[field] = dstVal
		return srcVal, srcURL
	default:
		conflicts[field] = srcVal
		return dstVal, dstURL
	}
}

// rank returns the precedence index of a source, lower wins; unlisted sources
// rank below any listed one
func (m *Merger) rank(source string) int {
	if r, ok := m.precedence[source]; ok {
		return r
	}
	return len(m.precedence)
}

// pickLonger keeps the longer non-empty string, ties keep the first-seen
func pickLonger(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}

// identityKey builds the dedup key for an item
func identityKey(it *domain.ContentItem) string {
	return it.Tenant + "\x00" + it.Source + "\x00" + it.SourceURL
}

// externalKey builds the cross-source dedup lock key. The double separator
// keeps it out of the identity key space, where source is never empty.
func externalKey(tenant, externalURL string) string {
	return tenant + "\x00\x00" + externalURL
}
