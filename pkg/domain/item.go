package domain

import "time"

// RawCandidate is an unvalidated item handed to the engine by an external
// fetcher, already tagged with the tenant and source it came from.
type RawCandidate struct {
	Tenant      string
	Source      string
	SourceURL   string
	ExternalURL string
	Title       string
	Content     string
	Summary     string
	Author      string
	AuthorURL   string
	ImageURL    string
	VideoURL    string
	Engagement  Engagement
	Tags        []string
	Category    string
	Metadata    map[string]any
	PublishedAt time.Time
}

// Engagement bundles the numeric engagement signals of an item.
// All fields default to zero and never go negative.
type Engagement struct {
	Score    int64
	Comments int64
	Shares   int64
	Views    int64
}

// ContentItem is a single piece of curated content in the per-tenant pool.
// The (Tenant, Source, SourceURL) tuple is the identity key; at most one
// record exists per key, duplicates are merged into it.
type ContentItem struct {
	ID          int64
	Tenant      string
	Source      string
	SourceURL   string
	ExternalURL string
	Title       string
	Content     string
	Summary     string
	Author      string
	AuthorURL   string
	ImageURL    string
	VideoURL    string
	Engagement  Engagement
	Tags        []string
	Category    string
	Metadata    map[string]any
	PublishedAt time.Time
	IngestedAt  time.Time
	UpdatedAt   time.Time
}

// MergeHistoryKey is the metadata entry holding the record's merge log,
// present once the item has absorbed at least one duplicate.
const MergeHistoryKey = "merge_history"

// ItemFilter represents filtering criteria for pool listings
type ItemFilter struct {
	Tenant   string
	Source   string
	Category string
	Tag      string
	IDs      []int64
	Since    time.Time
	Limit    int
}
