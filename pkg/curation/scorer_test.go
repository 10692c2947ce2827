package curation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umputun/digestpool/pkg/config"
	"github.com/umputun/digestpool/pkg/domain"
)

func TestScorer_BaseScore(t *testing.T) {
	s := NewScorer(config.ScoringConfig{CommentWeight: 1.0, ViewWeight: 0.1, ShareWeight: 2.0})

	tests := []struct {
		name       string
		engagement domain.Engagement
		expected   float64
	}{
		{"all zero", domain.Engagement{}, 0},
		{"score only", domain.Engagement{Score: 100}, 100},
		{"full bundle", domain.Engagement{Score: 100, Comments: 20, Views: 500, Shares: 5}, 180},
		{"views dominate with weight", domain.Engagement{Views: 100000}, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &domain.ContentItem{Engagement: tt.engagement}
			assert.InDelta(t, tt.expected, s.BaseScore(item), 0.0001)
		})
	}

	t.Run("custom weights", func(t *testing.T) {
		custom := NewScorer(config.ScoringConfig{CommentWeight: 0.5, ViewWeight: 0.01, ShareWeight: 3.0})
		item := &domain.ContentItem{Engagement: domain.Engagement{Score: 10, Comments: 4, Views: 200, Shares: 2}}
		assert.InDelta(t, 10+2+2+6, custom.BaseScore(item), 0.0001)
	})
}
