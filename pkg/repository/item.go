package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/digestpool/pkg/domain"
)

// ItemRepository handles content pool database operations
type ItemRepository struct {
	db *sqlx.DB
}

// itemSQL represents a content item for SQL operations
type itemSQL struct {
	ID          int64       `db:"id"`
	Tenant      string      `db:"tenant"`
	Source      string      `db:"source"`
	SourceURL   string      `db:"source_url"`
	ExternalURL string      `db:"external_url"`
	Title       string      `db:"title"`
	Content     string      `db:"content"`
	Summary     string      `db:"summary"`
	Author      string      `db:"author"`
	AuthorURL   string      `db:"author_url"`
	ImageURL    string      `db:"image_url"`
	VideoURL    string      `db:"video_url"`
	Score       int64       `db:"score"`
	Comments    int64       `db:"comment_count"`
	Shares      int64       `db:"share_count"`
	Views       int64       `db:"view_count"`
	Tags        tagsSQL     `db:"tags"`
	Category    string      `db:"category"`
	Metadata    metadataSQL `db:"metadata"`
	PublishedAt *time.Time  `db:"published_at"`
	IngestedAt  time.Time   `db:"ingested_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

// tagsSQL is a JSON array of tag strings for SQL operations
type tagsSQL []string

// Value implements driver.Valuer for database storage
func (t tagsSQL) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for database retrieval
func (t *tagsSQL) Scan(value interface{}) error {
	if value == nil {
		*t = tagsSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return json.Unmarshal([]byte("[]"), t)
	}

	return json.Unmarshal(data, t)
}

// metadataSQL is a JSON object for the free-form metadata column
type metadataSQL map[string]any

// Value implements driver.Valuer for database storage
func (m metadataSQL) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval
func (m *metadataSQL) Scan(value interface{}) error {
	if value == nil {
		*m = metadataSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return json.Unmarshal([]byte("{}"), m)
	}

	return json.Unmarshal(data, m)
}

// NewItemRepository creates a new item repository
func NewItemRepository(database *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: database}
}

// GetItem retrieves an item by its identity key (tenant, source, source_url).
// Returns ErrNotFound when no row exists.
func (r *ItemRepository) GetItem(ctx context.Context, tenant, source, sourceURL string) (*domain.ContentItem, error) {
	var sqlItem itemSQL
	err := r.db.GetContext(ctx, &sqlItem,
		"SELECT * FROM items WHERE tenant = ? AND source = ? AND source_url = ?",
		tenant, source, sourceURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return r.toDomainItem(&sqlItem), nil
}

// GetItemByID retrieves an item by its row ID. Returns ErrNotFound when missing.
func (r *ItemRepository) GetItemByID(ctx context.Context, id int64) (*domain.ContentItem, error) {
	var sqlItem itemSQL
	err := r.db.GetContext(ctx, &sqlItem, "SELECT * FROM items WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item by id: %w", err)
	}
	return r.toDomainItem(&sqlItem), nil
}

// GetItemByExternalURL retrieves an item by its external URL regardless of
// source, used for cross-source duplicate detection. Returns ErrNotFound when
// missing or when externalURL is empty.
func (r *ItemRepository) GetItemByExternalURL(ctx context.Context, tenant, externalURL string) (*domain.ContentItem, error) {
	if externalURL == "" {
		return nil, ErrNotFound
	}
	var sqlItem itemSQL
	err := r.db.GetContext(ctx, &sqlItem,
		"SELECT * FROM items WHERE tenant = ? AND external_url = ? ORDER BY id LIMIT 1",
		tenant, externalURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item by external url: %w", err)
	}
	return r.toDomainItem(&sqlItem), nil
}

// UpsertItem inserts the item or, when the identity key already exists,
// replaces the stored fields with the supplied (already merged) values.
// The item's ID is populated on return.
func (r *ItemRepository) UpsertItem(ctx context.Context, item *domain.ContentItem) error {
	sqlItem := r.fromDomainItem(item)

	query := `
		INSERT INTO items (
			tenant, source, source_url, external_url, title, content, summary,
			author, author_url, image_url, video_url,
			score, comment_count, share_count, view_count,
			tags, category, metadata, published_at
		) VALUES (
			:tenant, :source, :source_url, :external_url, :title, :content, :summary,
			:author, :author_url, :image_url, :video_url,
			:score, :comment_count, :share_count, :view_count,
			:tags, :category, :metadata, :published_at
		)
		ON CONFLICT (tenant, source, source_url) DO UPDATE SET
			external_url = excluded.external_url,
			title = excluded.title,
			content = excluded.content,
			summary = excluded.summary,
			author = excluded.author,
			author_url = excluded.author_url,
			image_url = excluded.image_url,
			video_url = excluded.video_url,
			score = excluded.score,
			comment_count = excluded.comment_count,
			share_count = excluded.share_count,
			view_count = excluded.view_count,
			tags = excluded.tags,
			category = excluded.category,
			metadata = excluded.metadata,
			published_at = excluded.published_at,
			updated_at = CURRENT_TIMESTAMP
	`

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		if _, err := r.db.NamedExecContext(ctx, query, sqlItem); err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("upsert item: %w", err)}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// resolve the row id through the identity key, LastInsertId is not
	// meaningful on the conflict-update path
	var id int64
	if err := r.db.GetContext(ctx, &id,
		"SELECT id FROM items WHERE tenant = ? AND source = ? AND source_url = ?",
		item.Tenant, item.Source, item.SourceURL); err != nil {
		return fmt.Errorf("resolve upserted item id: %w", err)
	}
	item.ID = id
	return nil
}

// ListItems retrieves items matching the filter, most recently published first
func (r *ItemRepository) ListItems(ctx context.Context, filter *domain.ItemFilter) ([]*domain.ContentItem, error) {
	builder := sq.Select("*").From("items").
		Where(sq.Eq{"tenant": filter.Tenant}).
		OrderBy("published_at DESC, id DESC")

	if filter.Source != "" {
		builder = builder.Where(sq.Eq{"source": filter.Source})
	}
	if filter.Category != "" {
		builder = builder.Where(sq.Eq{"category": filter.Category})
	}
	if filter.Tag != "" {
		builder = builder.Where("EXISTS (SELECT 1 FROM json_each(items.tags) WHERE json_each.value = ?)", filter.Tag)
	}
	if len(filter.IDs) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.IDs})
	}
	if !filter.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"published_at": filter.Since})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)) //nolint:gosec // limit is a small positive int
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var sqlItems []itemSQL
	if err := r.db.SelectContext(ctx, &sqlItems, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]*domain.ContentItem, len(sqlItems))
	for i := range sqlItems {
		items[i] = r.toDomainItem(&sqlItems[i])
	}
	return items, nil
}

// toDomainItem converts itemSQL to domain.ContentItem
func (r *ItemRepository) toDomainItem(sqlItem *itemSQL) *domain.ContentItem {
	item := &domain.ContentItem{
		ID:          sqlItem.ID,
		Tenant:      sqlItem.Tenant,
		Source:      sqlItem.Source,
		SourceURL:   sqlItem.SourceURL,
		ExternalURL: sqlItem.ExternalURL,
		Title:       sqlItem.Title,
		Content:     sqlItem.Content,
		Summary:     sqlItem.Summary,
		Author:      sqlItem.Author,
		AuthorURL:   sqlItem.AuthorURL,
		ImageURL:    sqlItem.ImageURL,
		VideoURL:    sqlItem.VideoURL,
		Engagement: domain.Engagement{
			Score:    sqlItem.Score,
			Comments: sqlItem.Comments,
			Shares:   sqlItem.Shares,
			Views:    sqlItem.Views,
		},
		Tags:       []string(sqlItem.Tags),
		Category:   sqlItem.Category,
		Metadata:   map[string]any(sqlItem.Metadata),
		IngestedAt: sqlItem.IngestedAt,
		UpdatedAt:  sqlItem.UpdatedAt,
	}
	if sqlItem.PublishedAt != nil {
		item.PublishedAt = *sqlItem.PublishedAt
	}
	return item
}

// fromDomainItem converts domain.ContentItem to itemSQL
func (r *ItemRepository) fromDomainItem(item *domain.ContentItem) *itemSQL {
	sqlItem := &itemSQL{
		ID:          item.ID,
		Tenant:      item.Tenant,
		Source:      item.Source,
		SourceURL:   item.SourceURL,
		ExternalURL: item.ExternalURL,
		Title:       item.Title,
		Content:     item.Content,
		Summary:     item.Summary,
		Author:      item.Author,
		AuthorURL:   item.AuthorURL,
		ImageURL:    item.ImageURL,
		VideoURL:    item.VideoURL,
		Score:       item.Engagement.Score,
		Comments:    item.Engagement.Comments,
		Shares:      item.Engagement.Shares,
		Views:       item.Engagement.Views,
		Tags:        tagsSQL(item.Tags),
		Category:    item.Category,
		Metadata:    metadataSQL(item.Metadata),
	}
	if !item.PublishedAt.IsZero() {
		published := item.PublishedAt
		sqlItem.PublishedAt = &published
	}
	return sqlItem
}
