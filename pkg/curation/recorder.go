package curation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/umputun/digestpool/pkg/domain"
)

// Recorder persists human feedback and keeps the source quality aggregate in
// sync. Item feedback synchronously updates the one aggregate it touches and
// nothing else; preference extraction is a separate, explicitly-invoked
// operation so the write path stays cheap.
type Recorder struct {
	items    ItemStore
	feedback FeedbackStore
	tracker  *Tracker
}

// NewRecorder creates a recorder over the given stores and tracker
func NewRecorder(items ItemStore, feedback FeedbackStore, tracker *Tracker) *Recorder {
	return &Recorder{items: items, feedback: feedback, tracker: tracker}
}

// RecordItemFeedback validates the item reference, derives the edit distance
// from the summary pair, persists the feedback and applies it to the source
// aggregate. Returns domain.ErrNotFound when the referenced item does not exist.
func (r *Recorder) RecordItemFeedback(ctx context.Context, fb *domain.FeedbackItem) error {
	if !fb.Rating.Valid() {
		return fmt.Errorf("invalid rating %q", fb.Rating)
	}

	item, err := r.items.GetItemByID(ctx, fb.ItemID)
	if err != nil {
		return fmt.Errorf("resolve item %d: %w", fb.ItemID, err)
	}
	if item.Tenant != fb.Tenant {
		return fmt.Errorf("item %d: %w", fb.ItemID, domain.ErrNotFound)
	}
	fb.Source = item.Source

	// edit distance is derived once at creation and immutable afterwards
	// unless the feedback record itself is updated
	fb.EditDistance = deriveEditDistance(fb.OriginalSummary, fb.EditedSummary)

	if err := r.feedback.AppendFeedback(ctx, fb); err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}

	if err := r.tracker.Record(ctx, fb); err != nil {
		return fmt.Errorf("update source quality: %w", err)
	}
	return nil
}

// UpdateItemFeedback replaces an existing feedback record. The edit distance
// is re-derived and the source aggregate is rebuilt from history since
// counters cannot be patched incrementally after a mutation.
func (r *Recorder) UpdateItemFeedback(ctx context.Context, fb *domain.FeedbackItem) error {
	if !fb.Rating.Valid() {
		return fmt.Errorf("invalid rating %q", fb.Rating)
	}

	prev, err := r.feedback.GetFeedback(ctx, fb.ID)
	if err != nil {
		return fmt.Errorf("resolve feedback %d: %w", fb.ID, err)
	}

	fb.EditDistance = deriveEditDistance(fb.OriginalSummary, fb.EditedSummary)
	if err := r.feedback.UpdateFeedback(ctx, fb); err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}

	if _, err := r.tracker.Recalculate(ctx, prev.Tenant, prev.Source); err != nil {
		return fmt.Errorf("rebuild source quality: %w", err)
	}
	return nil
}

// RecordDigestFeedback derives the acceptance rate and persists the digest
// judgment. No aggregates are touched, digest feedback only feeds analytics.
func (r *Recorder) RecordDigestFeedback(ctx context.Context, fb *domain.DigestFeedback) error {
	if fb.OverallRating < 1 || fb.OverallRating > 5 {
		return fmt.Errorf("overall rating %d out of range [1,5]", fb.OverallRating)
	}
	if fb.DigestID == "" {
		fb.DigestID = uuid.NewString()
	}

	fb.AcceptanceRate = acceptanceRate(fb.OriginalItemCount, fb.ItemsAdded+fb.ItemsRemoved+fb.ItemsEdited)

	if err := r.feedback.AppendDigestFeedback(ctx, fb); err != nil {
		return fmt.Errorf("append digest feedback: %w", err)
	}
	return nil
}

// acceptanceRate is 1 - changes/originalCount clamped to [0,1]; a digest with
// no original items counts as fully rewritten
func acceptanceRate(originalCount, changes int) float64 {
	if originalCount <= 0 {
		return 0
	}
	rate := 1 - float64(changes)/float64(originalCount)
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}

// deriveEditDistance returns the normalized edit distance for a summary pair.
// Nil unless both sides are present, a missing summary means nothing was
// compared, not a total rewrite.
func deriveEditDistance(original, edited string) *float64 {
	if original == "" || edited == "" {
		return nil
	}
	d := normalizedEditDistance(original, edited)
	return &d
}

// normalizedEditDistance is the character-level Levenshtein distance divided
// by the length of the longer string, always in [0,1]
func normalizedEditDistance(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 0
	}
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return float64(levenshtein(ra, rb)) / float64(maxLen)
}

// levenshtein computes the edit distance with the two-row DP
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
