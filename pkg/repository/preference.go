package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/digestpool/pkg/domain"
)

// PreferenceRepository handles learned preference profile operations
type PreferenceRepository struct {
	db *sqlx.DB
}

// preferencesSQL represents a preference profile row for SQL operations
type preferencesSQL struct {
	Tenant           string    `db:"tenant"`
	PreferredSources tagsSQL   `db:"preferred_sources"`
	PreferredTopics  tagsSQL   `db:"preferred_topics"`
	AvoidedTopics    tagsSQL   `db:"avoided_topics"`
	MinScore         float64   `db:"min_score"`
	MinComments      int64     `db:"min_comments"`
	RecencyDays      int       `db:"recency_days"`
	TotalFeedback    int64     `db:"total_feedback"`
	Confidence       float64   `db:"confidence"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(database *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: database}
}

// GetPreferences retrieves the preference profile for a tenant.
// Returns ErrNotFound before the first extraction.
func (r *PreferenceRepository) GetPreferences(ctx context.Context, tenant string) (*domain.ContentPreferences, error) {
	var row preferencesSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM preferences WHERE tenant = ?", tenant)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	return &domain.ContentPreferences{
		Tenant:           row.Tenant,
		PreferredSources: []string(row.PreferredSources),
		PreferredTopics:  []string(row.PreferredTopics),
		AvoidedTopics:    []string(row.AvoidedTopics),
		MinScore:         row.MinScore,
		MinComments:      row.MinComments,
		RecencyDays:      row.RecencyDays,
		TotalFeedback:    row.TotalFeedback,
		Confidence:       row.Confidence,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

// UpsertPreferences fully replaces the tenant's preference profile
func (r *PreferenceRepository) UpsertPreferences(ctx context.Context, prefs *domain.ContentPreferences) error {
	row := &preferencesSQL{
		Tenant:           prefs.Tenant,
		PreferredSources: tagsSQL(prefs.PreferredSources),
		PreferredTopics:  tagsSQL(prefs.PreferredTopics),
		AvoidedTopics:    tagsSQL(prefs.AvoidedTopics),
		MinScore:         prefs.MinScore,
		MinComments:      prefs.MinComments,
		RecencyDays:      prefs.RecencyDays,
		TotalFeedback:    prefs.TotalFeedback,
		Confidence:       prefs.Confidence,
	}

	query := `
		INSERT OR REPLACE INTO preferences (
			tenant, preferred_sources, preferred_topics, avoided_topics,
			min_score, min_comments, recency_days, total_feedback, confidence, updated_at
		) VALUES (
			:tenant, :preferred_sources, :preferred_topics, :avoided_topics,
			:min_score, :min_comments, :recency_days, :total_feedback, :confidence, CURRENT_TIMESTAMP
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}
