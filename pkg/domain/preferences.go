package domain

import "time"

// ContentPreferences is the learned per-tenant preference profile.
// A new extraction fully replaces the previous row; Confidence only grows
// with the amount of feedback behind it.
type ContentPreferences struct {
	Tenant           string
	PreferredSources []string
	PreferredTopics  []string
	AvoidedTopics    []string
	MinScore         float64
	MinComments      int64
	RecencyDays      int
	TotalFeedback    int64
	Confidence       float64 // [0,1], saturating in TotalFeedback
	UpdatedAt        time.Time
}

// PrefersSource reports whether the source is in the preferred set
func (p *ContentPreferences) PrefersSource(source string) bool {
	for _, s := range p.PreferredSources {
		if s == source {
			return true
		}
	}
	return false
}
