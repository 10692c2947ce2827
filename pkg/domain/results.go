package domain

// rejection reason codes reported by ingestion
const (
	RejectMissingTenant   = "missing_tenant"
	RejectMissingSource   = "missing_source"
	RejectEmptyTitle      = "empty_title"
	RejectInvalidURL      = "invalid_url"
	RejectContentTooShort = "content_too_short"
)

// RejectedCandidate describes one candidate dropped during ingestion
type RejectedCandidate struct {
	Source    string
	SourceURL string
	Title     string
	Reason    string
}

// IngestResult summarizes one ingestion batch. Per-item failures never abort
// the batch; they are collected here instead.
type IngestResult struct {
	Accepted        int
	MergedCount     int
	Rejected        []RejectedCandidate
	RejectedReasons map[string]int
}

// RankedItem pairs an item with its final adjusted score
type RankedItem struct {
	ItemID     int64
	FinalScore float64
}

// RankResult holds the ranked pool plus the IDs that had no persisted record
type RankResult struct {
	Ranked  []RankedItem
	Missing []int64
}

// SourceRank is one entry of the per-source leaderboard in analytics
type SourceRank struct {
	Source       string
	QualityScore float64
	Label        string
	Feedback     int64
}

// AnalyticsSummary is the per-tenant feedback analytics snapshot
type AnalyticsSummary struct {
	TotalFeedback   int64
	PositiveRate    float64
	NegativeRate    float64
	InclusionRate   float64
	AvgEditDistance float64
	AvgDigestRating float64
	AvgAcceptance   float64
	TopSources      []SourceRank
	WorstSources    []SourceRank
	ConfidenceLevel float64
	Recommendations []string
}
