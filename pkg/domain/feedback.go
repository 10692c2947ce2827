package domain

import "time"

// Rating represents a human judgment on a single content item
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
	RatingNeutral  Rating = "neutral"
)

// Valid reports whether the rating is one of the known values
func (r Rating) Valid() bool {
	return r == RatingPositive || r == RatingNegative || r == RatingNeutral
}

// FeedbackItem is one human judgment about one ContentItem.
// EditDistance is derived once at creation time from the summary pair and
// stays nil unless both summaries were provided.
type FeedbackItem struct {
	ID              int64
	Tenant          string
	ItemID          int64
	Source          string
	Rating          Rating
	IncludedInFinal bool
	DigestID        string
	OriginalSummary string
	EditedSummary   string
	EditDistance    *float64
	Note            string
	CreatedAt       time.Time
}

// DigestFeedback is one human judgment about an entire assembled digest.
// AcceptanceRate is derived: 1 - changes/original_item_count, clamped to [0,1].
type DigestFeedback struct {
	ID                int64
	Tenant            string
	DigestID          string
	OverallRating     int
	TimeToFinalize    int
	OriginalItemCount int
	ItemsAdded        int
	ItemsRemoved      int
	ItemsEdited       int
	AcceptanceRate    float64
	WouldRecommend    bool
	Note              string
	CreatedAt         time.Time
}

// FeedbackFilter represents filtering criteria for feedback listings
type FeedbackFilter struct {
	Tenant string
	Source string
	ItemID int64
	Rating Rating
	Limit  int
}
