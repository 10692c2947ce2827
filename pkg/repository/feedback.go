package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/digestpool/pkg/domain"
)

// FeedbackRepository handles feedback-related database operations
type FeedbackRepository struct {
	db *sqlx.DB
}

// feedbackSQL represents an item feedback row for SQL operations
type feedbackSQL struct {
	ID              int64     `db:"id"`
	Tenant          string    `db:"tenant"`
	ItemID          int64     `db:"item_id"`
	Source          string    `db:"source"`
	Rating          string    `db:"rating"`
	IncludedInFinal bool      `db:"included_in_final"`
	DigestID        string    `db:"digest_id"`
	OriginalSummary string    `db:"original_summary"`
	EditedSummary   string    `db:"edited_summary"`
	EditDistance    *float64  `db:"edit_distance"`
	Note            string    `db:"note"`
	CreatedAt       time.Time `db:"created_at"`
}

// digestFeedbackSQL represents a digest feedback row for SQL operations
type digestFeedbackSQL struct {
	ID                int64     `db:"id"`
	Tenant            string    `db:"tenant"`
	DigestID          string    `db:"digest_id"`
	OverallRating     int       `db:"overall_rating"`
	TimeToFinalize    int       `db:"time_to_finalize"`
	OriginalItemCount int       `db:"original_item_count"`
	ItemsAdded        int       `db:"items_added"`
	ItemsRemoved      int       `db:"items_removed"`
	ItemsEdited       int       `db:"items_edited"`
	AcceptanceRate    float64   `db:"acceptance_rate"`
	WouldRecommend    bool      `db:"would_recommend"`
	Note              string    `db:"note"`
	CreatedAt         time.Time `db:"created_at"`
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(database *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: database}
}

// AppendFeedback inserts a new feedback record and populates its ID
func (r *FeedbackRepository) AppendFeedback(ctx context.Context, fb *domain.FeedbackItem) error {
	sqlFb := &feedbackSQL{
		Tenant:          fb.Tenant,
		ItemID:          fb.ItemID,
		Source:          fb.Source,
		Rating:          string(fb.Rating),
		IncludedInFinal: fb.IncludedInFinal,
		DigestID:        fb.DigestID,
		OriginalSummary: fb.OriginalSummary,
		EditedSummary:   fb.EditedSummary,
		EditDistance:    fb.EditDistance,
		Note:            fb.Note,
	}

	query := `
		INSERT INTO feedback (
			tenant, item_id, source, rating, included_in_final, digest_id,
			original_summary, edited_summary, edit_distance, note
		) VALUES (
			:tenant, :item_id, :source, :rating, :included_in_final, :digest_id,
			:original_summary, :edited_summary, :edit_distance, :note
		)
	`
	result, err := r.db.NamedExecContext(ctx, query, sqlFb)
	if err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	fb.ID = id
	return nil
}

// UpdateFeedback replaces the mutable fields of an existing feedback record
func (r *FeedbackRepository) UpdateFeedback(ctx context.Context, fb *domain.FeedbackItem) error {
	query := `
		UPDATE feedback
		SET rating = ?, included_in_final = ?, original_summary = ?,
		    edited_summary = ?, edit_distance = ?, note = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		string(fb.Rating), fb.IncludedInFinal, fb.OriginalSummary,
		fb.EditedSummary, fb.EditDistance, fb.Note, fb.ID)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetFeedback retrieves a feedback record by ID. Returns ErrNotFound when missing.
func (r *FeedbackRepository) GetFeedback(ctx context.Context, id int64) (*domain.FeedbackItem, error) {
	var sqlFb feedbackSQL
	err := r.db.GetContext(ctx, &sqlFb, "SELECT * FROM feedback WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return r.toDomainFeedback(&sqlFb), nil
}

// ListFeedback retrieves feedback records matching the filter, newest first
func (r *FeedbackRepository) ListFeedback(ctx context.Context, filter *domain.FeedbackFilter) ([]*domain.FeedbackItem, error) {
	builder := sq.Select("*").From("feedback").
		Where(sq.Eq{"tenant": filter.Tenant}).
		OrderBy("created_at DESC, id DESC")

	if filter.Source != "" {
		builder = builder.Where(sq.Eq{"source": filter.Source})
	}
	if filter.ItemID != 0 {
		builder = builder.Where(sq.Eq{"item_id": filter.ItemID})
	}
	if filter.Rating != "" {
		builder = builder.Where(sq.Eq{"rating": string(filter.Rating)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)) //nolint:gosec // limit is a small positive int
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feedback query: %w", err)
	}

	var sqlFbs []feedbackSQL
	if err := r.db.SelectContext(ctx, &sqlFbs, query, args...); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	fbs := make([]*domain.FeedbackItem, len(sqlFbs))
	for i := range sqlFbs {
		fbs[i] = r.toDomainFeedback(&sqlFbs[i])
	}
	return fbs, nil
}

// CountFeedback returns the total number of feedback records for a tenant
func (r *FeedbackRepository) CountFeedback(ctx context.Context, tenant string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM feedback WHERE tenant = ?", tenant)
	if err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return count, nil
}

// GetRatingCounts returns per-rating feedback counts for a tenant
func (r *FeedbackRepository) GetRatingCounts(ctx context.Context, tenant string) (map[domain.Rating]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT rating, COUNT(*) FROM feedback WHERE tenant = ? GROUP BY rating", tenant)
	if err != nil {
		return nil, fmt.Errorf("query rating counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Rating]int64)
	for rows.Next() {
		var rating string
		var count int64
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, fmt.Errorf("scan rating count: %w", err)
		}
		counts[domain.Rating(rating)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating counts: %w", err)
	}
	return counts, nil
}

// AppendDigestFeedback inserts a new digest feedback record and populates its ID
func (r *FeedbackRepository) AppendDigestFeedback(ctx context.Context, fb *domain.DigestFeedback) error {
	sqlFb := &digestFeedbackSQL{
		Tenant:            fb.Tenant,
		DigestID:          fb.DigestID,
		OverallRating:     fb.OverallRating,
		TimeToFinalize:    fb.TimeToFinalize,
		OriginalItemCount: fb.OriginalItemCount,
		ItemsAdded:        fb.ItemsAdded,
		ItemsRemoved:      fb.ItemsRemoved,
		ItemsEdited:       fb.ItemsEdited,
		AcceptanceRate:    fb.AcceptanceRate,
		WouldRecommend:    fb.WouldRecommend,
		Note:              fb.Note,
	}

	query := `
		INSERT INTO digest_feedback (
			tenant, digest_id, overall_rating, time_to_finalize, original_item_count,
			items_added, items_removed, items_edited, acceptance_rate, would_recommend, note
		) VALUES (
			:tenant, :digest_id, :overall_rating, :time_to_finalize, :original_item_count,
			:items_added, :items_removed, :items_edited, :acceptance_rate, :would_recommend, :note
		)
	`
	result, err := r.db.NamedExecContext(ctx, query, sqlFb)
	if err != nil {
		return fmt.Errorf("append digest feedback: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	fb.ID = id
	return nil
}

// ListDigestFeedback retrieves digest feedback for a tenant, newest first
func (r *FeedbackRepository) ListDigestFeedback(ctx context.Context, tenant string, limit int) ([]*domain.DigestFeedback, error) {
	query := "SELECT * FROM digest_feedback WHERE tenant = ? ORDER BY created_at DESC, id DESC"
	args := []interface{}{tenant}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var sqlFbs []digestFeedbackSQL
	if err := r.db.SelectContext(ctx, &sqlFbs, query, args...); err != nil {
		return nil, fmt.Errorf("list digest feedback: %w", err)
	}

	fbs := make([]*domain.DigestFeedback, len(sqlFbs))
	for i := range sqlFbs {
		fbs[i] = r.toDomainDigestFeedback(&sqlFbs[i])
	}
	return fbs, nil
}

// GetDigestStats returns digest feedback aggregates for a tenant
func (r *FeedbackRepository) GetDigestStats(ctx context.Context, tenant string) (count int64, avgRating, avgAcceptance float64, err error) {
	var stats struct {
		Count         int64   `db:"cnt"`
		AvgRating     float64 `db:"avg_rating"`
		AvgAcceptance float64 `db:"avg_acceptance"`
	}
	query := `
		SELECT COUNT(*) as cnt,
		       COALESCE(AVG(overall_rating), 0) as avg_rating,
		       COALESCE(AVG(acceptance_rate), 0) as avg_acceptance
		FROM digest_feedback WHERE tenant = ?
	`
	if err := r.db.GetContext(ctx, &stats, query, tenant); err != nil {
		return 0, 0, 0, fmt.Errorf("get digest stats: %w", err)
	}
	return stats.Count, stats.AvgRating, stats.AvgAcceptance, nil
}

// toDomainFeedback converts feedbackSQL to domain.FeedbackItem
func (r *FeedbackRepository) toDomainFeedback(sqlFb *feedbackSQL) *domain.FeedbackItem {
	return &domain.FeedbackItem{
		ID:              sqlFb.ID,
		Tenant:          sqlFb.Tenant,
		ItemID:          sqlFb.ItemID,
		Source:          sqlFb.Source,
		Rating:          domain.Rating(sqlFb.Rating),
		IncludedInFinal: sqlFb.IncludedInFinal,
		DigestID:        sqlFb.DigestID,
		OriginalSummary: sqlFb.OriginalSummary,
		EditedSummary:   sqlFb.EditedSummary,
		EditDistance:    sqlFb.EditDistance,
		Note:            sqlFb.Note,
		CreatedAt:       sqlFb.CreatedAt,
	}
}

// toDomainDigestFeedback converts digestFeedbackSQL to domain.DigestFeedback
func (r *FeedbackRepository) toDomainDigestFeedback(sqlFb *digestFeedbackSQL) *domain.DigestFeedback {
	return &domain.DigestFeedback{
		ID:                sqlFb.ID,
		Tenant:            sqlFb.Tenant,
		DigestID:          sqlFb.DigestID,
		OverallRating:     sqlFb.OverallRating,
		TimeToFinalize:    sqlFb.TimeToFinalize,
		OriginalItemCount: sqlFb.OriginalItemCount,
		ItemsAdded:        sqlFb.ItemsAdded,
		ItemsRemoved:      sqlFb.ItemsRemoved,
		ItemsEdited:       sqlFb.ItemsEdited,
		AcceptanceRate:    sqlFb.AcceptanceRate,
		WouldRecommend:    sqlFb.WouldRecommend,
		Note:              sqlFb.Note,
		CreatedAt:         sqlFb.CreatedAt,
	}
}
