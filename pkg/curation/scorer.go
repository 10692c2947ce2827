package curation

import (
	"github.com/umputun/digestpool/pkg/config"
	"github.com/umputun/digestpool/pkg/domain"
)

// Scorer computes the base quality score from the engagement bundle.
// It is a pure function of the item and the configured weights, so results
// are fully reproducible.
type Scorer struct {
	cfg config.ScoringConfig
}

// NewScorer creates a scorer with the given weights
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// BaseScore returns score + comments*commentWeight + views*viewWeight + shares*shareWeight.
// Weights are configuration so source-type-specific scales can be tuned, e.g.
// video view counts dwarfing forum upvotes.
func (s *Scorer) BaseScore(item *domain.ContentItem) float64 {
	e := item.Engagement
	return float64(e.Score) +
		float64(e.Comments)*s.cfg.CommentWeight +
		float64(e.Views)*s.cfg.ViewWeight +
		float64(e.Shares)*s.cfg.ShareWeight
}
