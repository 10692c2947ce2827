package curation

import (
	"html"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/digestpool/pkg/config"
	"github.com/umputun/digestpool/pkg/domain"
)

// Normalizer validates and cleans raw candidates into canonical ContentItem
// values. Rejections are reported as reason codes, never as errors - a bad
// candidate must not abort the batch it arrived in.
type Normalizer struct {
	cfg       config.ValidationConfig
	sanitizer *bluemonday.Policy
}

// NewNormalizer creates a normalizer with the given validation rules
func NewNormalizer(cfg config.ValidationConfig) *Normalizer {
	return &Normalizer{
		cfg:       cfg,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Normalize converts a raw candidate into a canonical item. The returned
// reason is empty on success and one of the domain.Reject* codes otherwise.
func (n *Normalizer) Normalize(c *domain.RawCandidate) (item *domain.ContentItem, reason string) {
	if strings.TrimSpace(c.Tenant) == "" {
		return nil, domain.RejectMissingTenant
	}
	if strings.TrimSpace(c.Source) == "" {
		return nil, domain.RejectMissingSource
	}

	title := n.cleanText(c.Title)
	if title == "" {
		return nil, domain.RejectEmptyTitle
	}
	title = truncateRunes(title, n.cfg.MaxTitleLength)

	if !validURL(c.SourceURL) {
		return nil, domain.RejectInvalidURL
	}
	if c.ExternalURL != "" && !validURL(c.ExternalURL) {
		return nil, domain.RejectInvalidURL
	}

	content := n.cleanText(c.Content)
	if utf8.RuneCountInString(content) < n.cfg.MinContentLength {
		return nil, domain.RejectContentTooShort
	}

	item = &domain.ContentItem{
		Tenant:      strings.TrimSpace(c.Tenant),
		Source:      strings.TrimSpace(c.Source),
		SourceURL:   c.SourceURL,
		ExternalURL: c.ExternalURL,
		Title:       title,
		Content:     content,
		Summary:     n.cleanText(c.Summary),
		Author:      strings.TrimSpace(c.Author),
		AuthorURL:   c.AuthorURL,
		ImageURL:    c.ImageURL,
		VideoURL:    c.VideoURL,
		Engagement:  clampEngagement(c.Engagement),
		Tags:        normalizeTags(c.Tags),
		Category:    strings.TrimSpace(c.Category),
		Metadata:    cloneMetadata(c.Metadata),
		PublishedAt: c.PublishedAt,
		IngestedAt:  time.Now(),
	}
	return item, ""
}

// Revalidate re-applies the acceptance rules to an already merged item.
// A merge combining two sub-threshold fragments into a valid record passes;
// one that still fails is dropped.
func (n *Normalizer) Revalidate(item *domain.ContentItem) (reason string) {
	if item.Title == "" {
		return domain.RejectEmptyTitle
	}
	if !validURL(item.SourceURL) {
		return domain.RejectInvalidURL
	}
	if utf8.RuneCountInString(item.Content) < n.cfg.MinContentLength {
		return domain.RejectContentTooShort
	}
	return ""
}

// cleanText strips markup and collapses whitespace
func (n *Normalizer) cleanText(s string) string {
	s = n.sanitizer.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes caps s at limit characters, cutting on a rune boundary
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// validURL checks for an absolute http(s) URL
func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// clampEngagement zeroes negative engagement signals
func clampEngagement(e domain.Engagement) domain.Engagement {
	return domain.Engagement{
		Score:    max(e.Score, 0),
		Comments: max(e.Comments, 0),
		Shares:   max(e.Shares, 0),
		Views:    max(e.Views, 0),
	}
}

// normalizeTags trims, lowercases, dedupes and sorts tags
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// cloneMetadata shallow-copies the metadata map, never returning nil
func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
