package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/digestpool/pkg/domain"
)

func testItem(tenant, source, sourceURL string) *domain.ContentItem {
	return &domain.ContentItem{
		Tenant:      tenant,
		Source:      source,
		SourceURL:   sourceURL,
		Title:       "Test Item",
		Content:     strings.Repeat("content ", 20),
		Summary:     "short summary",
		Engagement:  domain.Engagement{Score: 10, Comments: 2, Shares: 1, Views: 100},
		Tags:        []string{"go", "testing"},
		Category:    "tech",
		Metadata:    map[string]any{"lang": "en"},
		PublishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestItemRepository_UpsertAndGet(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	t.Run("insert populates id", func(t *testing.T) {
		item := testItem("t1", "hackernews", "https://news.example.com/1")
		require.NoError(t, repos.Item.UpsertItem(ctx, item))
		assert.Positive(t, item.ID)
	})

	t.Run("get by identity key", func(t *testing.T) {
		item := testItem("t1", "hackernews", "https://news.example.com/2")
		item.ExternalURL = "https://blog.example.com/post"
		require.NoError(t, repos.Item.UpsertItem(ctx, item))

		got, err := repos.Item.GetItem(ctx, "t1", "hackernews", "https://news.example.com/2")
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.ID)
		assert.Equal(t, "Test Item", got.Title)
		assert.Equal(t, []string{"go", "testing"}, got.Tags)
		assert.Equal(t, "en", got.Metadata["lang"])
		assert.Equal(t, int64(10), got.Engagement.Score)
		assert.Equal(t, item.PublishedAt.Unix(), got.PublishedAt.Unix())
	})

	t.Run("get by id", func(t *testing.T) {
		item := testItem("t1", "hackernews", "https://news.example.com/3")
		require.NoError(t, repos.Item.UpsertItem(ctx, item))

		got, err := repos.Item.GetItemByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.SourceURL, got.SourceURL)
	})

	t.Run("get by external url", func(t *testing.T) {
		item := testItem("t1", "reddit", "https://reddit.example.com/r/go/1")
		item.ExternalURL = "https://blog.example.com/shared"
		require.NoError(t, repos.Item.UpsertItem(ctx, item))

		got, err := repos.Item.GetItemByExternalURL(ctx, "t1", "https://blog.example.com/shared")
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.ID)
	})

	t.Run("not found cases", func(t *testing.T) {
		_, err := repos.Item.GetItem(ctx, "t1", "nope", "https://none.example.com")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repos.Item.GetItemByID(ctx, 999999)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repos.Item.GetItemByExternalURL(ctx, "t1", "https://none.example.com")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repos.Item.GetItemByExternalURL(ctx, "t1", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("conflict on identity key keeps row id", func(t *testing.T) {
		item := testItem("t1", "hackernews", "https://news.example.com/conflict")
		require.NoError(t, repos.Item.UpsertItem(ctx, item))
		firstID := item.ID

		updated := testItem("t1", "hackernews", "https://news.example.com/conflict")
		updated.Title = "Updated Title"
		updated.Engagement.Score = 42
		require.NoError(t, repos.Item.UpsertItem(ctx, updated))

		assert.Equal(t, firstID, updated.ID)
		got, err := repos.Item.GetItemByID(ctx, firstID)
		require.NoError(t, err)
		assert.Equal(t, "Updated Title", got.Title)
		assert.Equal(t, int64(42), got.Engagement.Score)
	})

	t.Run("tenants are isolated", func(t *testing.T) {
		item := testItem("t2", "hackernews", "https://news.example.com/1")
		require.NoError(t, repos.Item.UpsertItem(ctx, item))

		_, err := repos.Item.GetItem(ctx, "t3", "hackernews", "https://news.example.com/1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestItemRepository_ListItems(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		item := testItem("t1", "hackernews", fmt.Sprintf("https://news.example.com/%d", i))
		item.PublishedAt = base.Add(time.Duration(i) * time.Hour)
		if i%2 == 0 {
			item.Tags = []string{"go"}
			item.Category = "tech"
		} else {
			item.Tags = []string{"rust"}
			item.Category = "other"
		}
		require.NoError(t, repos.Item.UpsertItem(ctx, item))
	}
	other := testItem("t1", "reddit", "https://reddit.example.com/1")
	other.PublishedAt = base.Add(10 * time.Hour)
	require.NoError(t, repos.Item.UpsertItem(ctx, other))

	t.Run("all for tenant, newest first", func(t *testing.T) {
		items, err := repos.Item.ListItems(ctx, &domain.ItemFilter{Tenant: "t1"})
		require.NoError(t, err)
		require.Len(t, items, 6)
		assert.Equal(t, "reddit", items[0].Source)
		for i := 1; i < len(items); i++ {
			assert.False(t, items[i].PublishedAt.After(items[i-1].PublishedAt))
		}
	})

	t.Run("filter by source", func(t *testing.T) {
		items, err := repos.Item.ListItems(ctx, &domain.ItemFilter{Tenant: "t1", Source: "reddit"})
		require.NoError(t, err)
		require.Len(t, items, 1)
	})

	t.Run("filter by category", func(t *testing.T) {
		items, err := repos.Item.ListItems(ctx, &domain.ItemFilter{Tenant: "t1", Category: "other"})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("filter by tag", func(t *testing.T) {
		items, err := repos.Item.ListItems(ctx, &domain.ItemFilter{Tenant: "t1", Tag: "rust"})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("filter by ids", func(t *testing.T) {
		all, err := repos.Item.ListItems(ctx, &domain.ItemFilter{Tenant: "t1"})
		require.NoError(t, err)
		ids := []int64{all[0].ID, all[1].ID}

		items, err := repos.Item.ListItems(ctx, &domain.ItemFilter{Tenant: "t1", IDs: ids})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("filter by since", func(t *testing.T) {
		items, err := repos.Item.ListItems(ctx, &domain.ItemFilter{Tenant: "t1", Since: base.Add(3 * time.Hour)})
		require.NoError(t, err)
		assert.Len(t, items, 3) // hours 3, 4 and the reddit item at hour 10
	})

	t.Run("limit", func(t *testing.T) {
		items, err := repos.Item.ListItems(ctx, &domain.ItemFilter{Tenant: "t1", Limit: 2})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("unknown tenant returns empty", func(t *testing.T) {
		items, err := repos.Item.ListItems(ctx, &domain.ItemFilter{Tenant: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}
