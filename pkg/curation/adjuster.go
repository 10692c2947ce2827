package curation

import (
	"github.com/umputun/digestpool/pkg/config"
	"github.com/umputun/digestpool/pkg/domain"
)

// Adjuster turns a base score into the final ranking score by applying the
// source quality multiplier and the learned preference multiplier. It is pure
// over the supplied snapshots - it never fetches or mutates state, callers
// are responsible for passing fresh data.
type Adjuster struct {
	cfg config.AdjusterConfig
}

// NewAdjuster creates an adjuster with the given multiplier settings
func NewAdjuster(cfg config.AdjusterConfig) *Adjuster {
	return &Adjuster{cfg: cfg}
}

// Adjust computes final = base * sourceQualityMultiplier * preferenceMultiplier.
// The multipliers are independent, an item can receive both a boost and a
// penalty. quality may be nil when the source has no feedback yet and prefs
// may be nil before the first extraction; both default to a 1.0 multiplier.
func (a *Adjuster) Adjust(base float64, item *domain.ContentItem, quality *domain.SourceQualityScore, prefs *domain.ContentPreferences) float64 {
	return base * a.SourceMultiplier(quality) * a.PreferenceMultiplier(item, prefs)
}

// SourceMultiplier maps the source quality score onto a multiplier:
// base + weight*qualityScore, so the defaults (0.5, 1.0) put a neutral 0.5
// quality source at exactly 1.0. Sources without feedback stay at 1.0.
func (a *Adjuster) SourceMultiplier(quality *domain.SourceQualityScore) float64 {
	if quality == nil || quality.TotalCount() == 0 {
		return 1.0
	}
	return a.cfg.SourceQualityBase + a.cfg.SourceQualityWeight*quality.QualityScore
}

// PreferenceMultiplier boosts items from preferred sources and penalizes
// items whose engagement score falls below the learned minimum. Both can
// apply to the same item.
func (a *Adjuster) PreferenceMultiplier(item *domain.ContentItem, prefs *domain.ContentPreferences) float64 {
	if prefs == nil {
		return 1.0
	}

	mult := 1.0
	if prefs.PrefersSource(item.Source) {
		mult *= a.cfg.PreferredSourceBoost
	}
	if prefs.MinScore > 0 && float64(item.Engagement.Score) < prefs.MinScore {
		mult *= a.cfg.BelowThresholdPenalty
	}
	return mult
}
