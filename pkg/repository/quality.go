package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/digestpool/pkg/domain"
)

// SourceQualityRepository handles source quality aggregate operations
type SourceQualityRepository struct {
	db *sqlx.DB
}

// sourceQualitySQL represents a source quality row for SQL operations
type sourceQualitySQL struct {
	Tenant          string    `db:"tenant"`
	Source          string    `db:"source"`
	QualityScore    float64   `db:"quality_score"`
	PositiveCount   int64     `db:"positive_count"`
	NegativeCount   int64     `db:"negative_count"`
	NeutralCount    int64     `db:"neutral_count"`
	IncludedCount   int64     `db:"included_count"`
	InclusionRate   float64   `db:"inclusion_rate"`
	EditCount       int64     `db:"edit_count"`
	AvgEditDistance float64   `db:"avg_edit_distance"`
	TrendingScore   float64   `db:"trending_score"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// NewSourceQualityRepository creates a new source quality repository
func NewSourceQualityRepository(database *sqlx.DB) *SourceQualityRepository {
	return &SourceQualityRepository{db: database}
}

// GetSourceQuality retrieves the aggregate for a (tenant, source) pair.
// Returns ErrNotFound when no feedback has been recorded for the source yet.
func (r *SourceQualityRepository) GetSourceQuality(ctx context.Context, tenant, source string) (*domain.SourceQualityScore, error) {
	var row sourceQualitySQL
	err := r.db.GetContext(ctx, &row,
		"SELECT * FROM source_quality WHERE tenant = ? AND source = ?", tenant, source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get source quality: %w", err)
	}
	return r.toDomainQuality(&row), nil
}

// ListSourceQuality retrieves all source aggregates for a tenant
func (r *SourceQualityRepository) ListSourceQuality(ctx context.Context, tenant string) ([]*domain.SourceQualityScore, error) {
	var rows []sourceQualitySQL
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM source_quality WHERE tenant = ? ORDER BY quality_score DESC, source", tenant)
	if err != nil {
		return nil, fmt.Errorf("list source quality: %w", err)
	}

	scores := make([]*domain.SourceQualityScore, len(rows))
	for i := range rows {
		scores[i] = r.toDomainQuality(&rows[i])
	}
	return scores, nil
}

// UpsertSourceQuality replaces the aggregate row in one atomic statement,
// the recompute-and-swap contract required for safe concurrent recalculation
func (r *SourceQualityRepository) UpsertSourceQuality(ctx context.Context, score *domain.SourceQualityScore) error {
	row := &sourceQualitySQL{
		Tenant:          score.Tenant,
		Source:          score.Source,
		QualityScore:    score.QualityScore,
		PositiveCount:   score.PositiveCount,
		NegativeCount:   score.NegativeCount,
		NeutralCount:    score.NeutralCount,
		IncludedCount:   score.IncludedCount,
		InclusionRate:   score.InclusionRate,
		EditCount:       score.EditCount,
		AvgEditDistance: score.AvgEditDistance,
		TrendingScore:   score.TrendingScore,
	}

	query := `
		INSERT OR REPLACE INTO source_quality (
			tenant, source, quality_score, positive_count, negative_count, neutral_count,
			included_count, inclusion_rate, edit_count, avg_edit_distance, trending_score, updated_at
		) VALUES (
			:tenant, :source, :quality_score, :positive_count, :negative_count, :neutral_count,
			:included_count, :inclusion_rate, :edit_count, :avg_edit_distance, :trending_score, CURRENT_TIMESTAMP
		)
	`

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("upsert source quality: %w", err)}
		}
		return nil
	})
}

// toDomainQuality converts sourceQualitySQL to domain.SourceQualityScore
func (r *SourceQualityRepository) toDomainQuality(row *sourceQualitySQL) *domain.SourceQualityScore {
	return &domain.SourceQualityScore{
		Tenant:          row.Tenant,
		Source:          row.Source,
		QualityScore:    row.QualityScore,
		PositiveCount:   row.PositiveCount,
		NegativeCount:   row.NegativeCount,
		NeutralCount:    row.NeutralCount,
		IncludedCount:   row.IncludedCount,
		InclusionRate:   row.InclusionRate,
		EditCount:       row.EditCount,
		AvgEditDistance: row.AvgEditDistance,
		TrendingScore:   row.TrendingScore,
		UpdatedAt:       row.UpdatedAt,
	}
}
