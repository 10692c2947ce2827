package curation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umputun/digestpool/pkg/config"
	"github.com/umputun/digestpool/pkg/domain"
)

func testAdjuster() *Adjuster {
	return NewAdjuster(config.AdjusterConfig{
		PreferredSourceBoost:  1.2,
		BelowThresholdPenalty: 0.7,
		SourceQualityBase:     0.5,
		SourceQualityWeight:   1.0,
	})
}

func TestAdjuster_SourceMultiplier(t *testing.T) {
	a := testAdjuster()

	t.Run("no feedback means neutral", func(t *testing.T) {
		assert.InDelta(t, 1.0, a.SourceMultiplier(nil), 0.0001)
		assert.InDelta(t, 1.0, a.SourceMultiplier(&domain.SourceQualityScore{}), 0.0001)
	})

	t.Run("maps quality onto base plus weight", func(t *testing.T) {
		tests := []struct {
			quality  float64
			expected float64
		}{
			{0.0, 0.5},
			{0.4, 0.9},
			{0.5, 1.0}, // neutral source stays neutral
			{0.8, 1.3},
			{1.0, 1.5},
		}
		for _, tt := range tests {
			q := &domain.SourceQualityScore{QualityScore: tt.quality, PositiveCount: 1}
			assert.InDelta(t, tt.expected, a.SourceMultiplier(q), 0.0001, "quality %.1f", tt.quality)
		}
	})
}

func TestAdjuster_PreferenceMultiplier(t *testing.T) {
	a := testAdjuster()
	item := &domain.ContentItem{Source: "hackernews", Engagement: domain.Engagement{Score: 30}}

	t.Run("nil prefs neutral", func(t *testing.T) {
		assert.InDelta(t, 1.0, a.PreferenceMultiplier(item, nil), 0.0001)
	})

	t.Run("preferred source boost", func(t *testing.T) {
		prefs := &domain.ContentPreferences{PreferredSources: []string{"hackernews"}}
		assert.InDelta(t, 1.2, a.PreferenceMultiplier(item, prefs), 0.0001)
	})

	t.Run("below threshold penalty", func(t *testing.T) {
		prefs := &domain.ContentPreferences{MinScore: 50}
		assert.InDelta(t, 0.7, a.PreferenceMultiplier(item, prefs), 0.0001)
	})

	t.Run("boost and penalty stack", func(t *testing.T) {
		prefs := &domain.ContentPreferences{PreferredSources: []string{"hackernews"}, MinScore: 50}
		assert.InDelta(t, 1.2*0.7, a.PreferenceMultiplier(item, prefs), 0.0001)
	})

	t.Run("above threshold no penalty", func(t *testing.T) {
		prefs := &domain.ContentPreferences{MinScore: 20}
		assert.InDelta(t, 1.0, a.PreferenceMultiplier(item, prefs), 0.0001)
	})
}

func TestAdjuster_Adjust(t *testing.T) {
	a := testAdjuster()

	// base 100, quality 0.4 source, preferred source: 100 * 0.9 * 1.2 = 108
	item := &domain.ContentItem{Source: "hackernews", Engagement: domain.Engagement{Score: 100}}
	quality := &domain.SourceQualityScore{QualityScore: 0.4, PositiveCount: 2, NegativeCount: 3}
	prefs := &domain.ContentPreferences{PreferredSources: []string{"hackernews"}}

	assert.InDelta(t, 108.0, a.Adjust(100, item, quality, prefs), 0.0001)

	// multipliers are independent of base scale
	assert.InDelta(t, 10.8, a.Adjust(10, item, quality, prefs), 0.0001)
}
