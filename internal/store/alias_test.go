package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillapp/quill-server/internal/domain"
)

func TestCreateAlias(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.CreateTag(ctx, newTopicTag("tag-1", "Science Fiction", "science-fiction")))

	alias, err := store.CreateAlias(ctx, "tag-1", "Sci Fi", "sci-fi", "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, alias.ID)
	assert.Equal(t, "tag-1", alias.TagID)
	assert.Equal(t, "sci-fi", alias.AliasSlug)
	assert.False(t, alias.CreatedAt.IsZero())
}

func TestCreateAlias_MissingTag(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.CreateAlias(context.Background(), "tag-nope", "Sci Fi", "sci-fi", "user-1")
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestCreateAlias_DuplicateSlugPerTag(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.CreateTag(ctx, newTopicTag("tag-1", "Science Fiction", "science-fiction")))
	require.NoError(t, store.CreateTag(ctx, newTopicTag("tag-2", "Space Opera", "space-opera")))

	_, err := store.CreateAlias(ctx, "tag-1", "Sci Fi", "sci-fi", "user-1")
	require.NoError(t, err)

	_, err = store.CreateAlias(ctx, "tag-1", "Sci-Fi", "sci-fi", "user-1")
	assert.ErrorIs(t, err, ErrAliasExists)

	// Same slug on a different tag is fine.
	_, err = store.CreateAlias(ctx, "tag-2", "Sci Fi", "sci-fi", "user-1")
	assert.NoError(t, err)
}

func TestListAliasesForTag(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.CreateTag(ctx, newTopicTag("tag-1", "Science Fiction", "science-fiction")))
	_, err := store.CreateAlias(ctx, "tag-1", "Sci Fi", "sci-fi", "user-1")
	require.NoError(t, err)
	_, err = store.CreateAlias(ctx, "tag-1", "SF", "sf", "user-1")
	require.NoError(t, err)

	aliases, err := store.ListAliasesForTag(ctx, "tag-1")
	require.NoError(t, err)
	assert.Len(t, aliases, 2)
}

func TestFindTagsByAlias(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.CreateTag(ctx, newTopicTag("tag-1", "Science Fiction", "science-fiction")))
	_, err := store.CreateAlias(ctx, "tag-1", "Sci Fi", "sci-fi", "user-1")
	require.NoError(t, err)

	tags, err := store.FindTagsByAlias(ctx, "sci", nil, 10)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "tag-1", tags[0].ID)

	tags, err = store.FindTagsByAlias(ctx, "romance", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestFindTagsByAlias_DedupesTag(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.CreateTag(ctx, newTopicTag("tag-1", "Science Fiction", "science-fiction")))
	_, err := store.CreateAlias(ctx, "tag-1", "Sci Fi", "sci-fi", "user-1")
	require.NoError(t, err)
	_, err = store.CreateAlias(ctx, "tag-1", "SciFi Books", "scifi-books", "user-1")
	require.NoError(t, err)

	tags, err := store.FindTagsByAlias(ctx, "sci", nil, 10)
	require.NoError(t, err)
	assert.Len(t, tags, 1, "a tag with multiple matching aliases appears once")
}

func TestFindTagsByAlias_SkipsInactiveTags(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	hidden := newTopicTag("tag-1", "Science Fiction", "science-fiction")
	hidden.Status = domain.TagStatusHidden
	require.NoError(t, store.CreateTag(ctx, hidden))
	_, err := store.CreateAlias(ctx, "tag-1", "Sci Fi", "sci-fi", "user-1")
	require.NoError(t, err)

	tags, err := store.FindTagsByAlias(ctx, "sci", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestDeleteAliasesForTag(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.CreateTag(ctx, newTopicTag("tag-1", "Science Fiction", "science-fiction")))
	_, err := store.CreateAlias(ctx, "tag-1", "Sci Fi", "sci-fi", "user-1")
	require.NoError(t, err)

	require.NoError(t, store.DeleteAliasesForTag(ctx, "tag-1"))

	aliases, err := store.ListAliasesForTag(ctx, "tag-1")
	require.NoError(t, err)
	assert.Empty(t, aliases)

	// Unique index was cleaned up, so the slug can be re-added.
	_, err = store.CreateAlias(ctx, "tag-1", "Sci Fi", "sci-fi", "user-1")
	assert.NoError(t, err)
}
