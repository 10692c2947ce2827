package domain

import "time"

// SourceQualityScore is the per-(tenant, source) feedback aggregate.
// It is recomputed deterministically from the feedback history and never
// hand-edited.
type SourceQualityScore struct {
	Tenant          string
	Source          string
	QualityScore    float64 // positive feedback rate, [0,1]
	PositiveCount   int64
	NegativeCount   int64
	NeutralCount    int64
	IncludedCount   int64
	InclusionRate   float64
	EditCount       int64 // feedback rows with a defined edit distance
	AvgEditDistance float64
	TrendingScore   float64 // recency-weighted quality score
	UpdatedAt       time.Time
}

// TotalCount returns the total number of feedback signals behind the aggregate
func (s *SourceQualityScore) TotalCount() int64 {
	return s.PositiveCount + s.NegativeCount + s.NeutralCount
}

// Label returns the presentational quality label derived from the score.
// Labels are never stored, only computed at read time.
func (s *SourceQualityScore) Label() string {
	switch {
	case s.QualityScore >= 0.8:
		return "Excellent"
	case s.QualityScore >= 0.6:
		return "Good"
	case s.QualityScore >= 0.4:
		return "Fair"
	default:
		return "Poor"
	}
}
