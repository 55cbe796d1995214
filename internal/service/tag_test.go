package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/errors"
	"github.com/quillapp/quill-server/internal/store"
	"github.com/quillapp/quill-server/internal/util"
)

// recordingIndex records index sync calls without a real Bleve index.
type recordingIndex struct {
	indexed  []string
	deleted  []string
	rebuilds int
}

func (r *recordingIndex) IndexTag(t *domain.Tag, _ []*domain.TagAlias) error {
	r.indexed = append(r.indexed, t.ID)
	return nil
}

func (r *recordingIndex) DeleteTag(tagID string) error {
	r.deleted = append(r.deleted, tagID)
	return nil
}

func (r *recordingIndex) Rebuild() error {
	r.rebuilds++
	return nil
}

// fixedLimiter allows or denies everything.
type fixedLimiter struct {
	allow bool
	calls int
}

func (l *fixedLimiter) AllowN(_ string, _ int) bool {
	l.calls++
	return l.allow
}

// countingInvalidator records cache invalidations.
type countingInvalidator struct {
	count int
}

func (c *countingInvalidator) InvalidateSearchCache() {
	c.count++
}

type tagServiceFixture struct {
	svc        *TagService
	store      *store.Store
	index      *recordingIndex
	limiter    *fixedLimiter
	invalidate *countingInvalidator
}

func newTagServiceFixture(t *testing.T) *tagServiceFixture {
	t.Helper()

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	index := &recordingIndex{}
	limiter := &fixedLimiter{allow: true}
	invalidate := &countingInvalidator{}
	logger := slog.New(slog.DiscardHandler)

	return &tagServiceFixture{
		svc:        NewTagService(st, index, limiter, invalidate, util.NormalizeTagSlug, logger),
		store:      st,
		index:      index,
		limiter:    limiter,
		invalidate: invalidate,
	}
}

func TestFindOrCreate_CreatesThenReuses(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Slow Burn", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "slow-burn", created.Slug)
	assert.Equal(t, "Slow Burn", created.Name)

	again, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "slow_burn", "user-2")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID, "normalized variants resolve to one tag")

	assert.Equal(t, []string{created.ID}, f.index.indexed, "only the creation indexes")
	assert.Equal(t, 1, f.invalidate.count)
}

func TestFindOrCreate_RefreshesUserName(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.FindOrCreate(ctx, domain.TagTypeUser, "alice.smith", "system")
	require.NoError(t, err)
	assert.Equal(t, "alice.smith", created.Slug)

	// Same handle, new display form: the stored tag is refreshed in place.
	renamed, err := f.svc.FindOrCreate(ctx, domain.TagTypeUser, "Alice.Smith", "system")
	require.NoError(t, err)
	assert.Equal(t, created.ID, renamed.ID)
	assert.Equal(t, "Alice.Smith", renamed.Name)

	got, err := f.svc.GetBySlugAnyType(ctx, "alice.smith")
	require.NoError(t, err)
	assert.Equal(t, "Alice.Smith", got.Name)

	assert.Equal(t, []string{created.ID, created.ID}, f.index.indexed, "rename reindexes")
	assert.Equal(t, 2, f.invalidate.count)
}

func TestEnsureEntityTag(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.EnsureEntityTag(ctx, "user", "user-1", "Alice Smith", "alice.smith")
	require.NoError(t, err)
	assert.Equal(t, domain.TagTypeUser, created.Type)
	assert.Equal(t, "alice.smith", created.Slug)
	require.NotNil(t, created.Ref)
	assert.Equal(t, "user", created.Ref.EntityType)
	assert.Equal(t, "user-1", created.Ref.EntityID)

	// Same projection again is a no-op: no reindex, no invalidation.
	indexCalls := len(f.index.indexed)
	invalidations := f.invalidate.count
	same, err := f.svc.EnsureEntityTag(ctx, "user", "user-1", "Alice Smith", "alice.smith")
	require.NoError(t, err)
	assert.Equal(t, created.ID, same.ID)
	assert.Len(t, f.index.indexed, indexCalls)
	assert.Equal(t, invalidations, f.invalidate.count)

	// A rename refreshes the stored tag and reindexes.
	renamed, err := f.svc.EnsureEntityTag(ctx, "user", "user-1", "Alice S.", "alice.smith")
	require.NoError(t, err)
	assert.Equal(t, created.ID, renamed.ID)
	assert.Equal(t, "Alice S.", renamed.Name)
	assert.Len(t, f.index.indexed, indexCalls+1)
	assert.Equal(t, invalidations+1, f.invalidate.count)

	book, err := f.svc.EnsureEntityTag(ctx, "book", "book-1", "The Dispossessed", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TagTypeEntity, book.Type)
	assert.Equal(t, "the-dispossessed", book.Slug)
	require.NotNil(t, book.Ref)
	assert.Equal(t, "book", book.Ref.EntityType)

	_, err = f.svc.EnsureEntityTag(ctx, "planet", "planet-1", "Anarres", "")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.svc.EnsureEntityTag(ctx, "user", "user-2", "No Handle", "")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestFindOrCreate_RejectsBadInput(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "!!!", "user-1")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.svc.FindOrCreate(ctx, domain.TagType("bogus"), "dragons", "user-1")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestGetBySlug(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Found Family", "user-1")
	require.NoError(t, err)

	// Raw input is normalized before lookup.
	got, err := f.svc.GetBySlug(ctx, domain.TagTypeTopic, "Found Family")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.svc.GetBySlug(ctx, domain.TagTypeTopic, "nope")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestAddAlias(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Science Fiction", "user-1")
	require.NoError(t, err)

	alias, err := f.svc.AddAlias(ctx, created.ID, "Sci Fi", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "sci-fi", alias.AliasSlug)

	_, err = f.svc.AddAlias(ctx, created.ID, "sci_fi", "user-2")
	assert.ErrorIs(t, err, errors.ErrAlreadyExists, "same normalized alias")

	_, err = f.svc.AddAlias(ctx, "tag-missing", "whatever", "user-1")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// Creation plus the alias-triggered reindex.
	assert.Len(t, f.index.indexed, 2)
}

func TestCreateTaggings(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Dragons", "user-1")
	require.NoError(t, err)

	taggings, err := f.svc.CreateTaggings(ctx, "user-1", []TaggingInput{
		{TagID: created.ID, EntityType: "post", EntityID: "post-1", Context: domain.ContextPost},
		{TagID: created.ID, EntityType: "post", EntityID: "post-2", Context: domain.ContextPost},
	})
	require.NoError(t, err)
	require.Len(t, taggings, 2)
	assert.NotEmpty(t, taggings[0].ID)

	got, err := f.svc.GetBySlug(ctx, domain.TagTypeTopic, "dragons")
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)

	// Creation, then one reindex for the touched tag.
	assert.Equal(t, []string{created.ID, created.ID}, f.index.indexed)
	assert.Equal(t, 2, f.invalidate.count)
}

func TestCreateTaggings_RateLimited(t *testing.T) {
	f := newTagServiceFixture(t)
	f.limiter.allow = false
	ctx := context.Background()

	created, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Dragons", "user-1")
	require.NoError(t, err)

	_, err = f.svc.CreateTaggings(ctx, "user-1", []TaggingInput{
		{TagID: created.ID, EntityType: "post", EntityID: "post-1", Context: domain.ContextPost},
	})
	assert.ErrorIs(t, err, errors.ErrRateLimited)
}

func TestCreateTaggings_Validation(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTaggings(ctx, "user-1", []TaggingInput{
		{TagID: "tag-x", EntityType: "post", EntityID: "post-1", Context: domain.TagContext("bogus")},
	})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.svc.CreateTaggings(ctx, "user-1", []TaggingInput{
		{TagID: "", EntityType: "post", EntityID: "post-1", Context: domain.ContextPost},
	})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.svc.CreateTaggings(ctx, "user-1", []TaggingInput{
		{TagID: "tag-missing", EntityType: "post", EntityID: "post-1", Context: domain.ContextPost},
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	got, err := f.svc.CreateTaggings(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Nil(t, got, "empty batch is a no-op")
}

func TestTagContent(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	alice, err := f.svc.FindOrCreate(ctx, domain.TagTypeUser, "alice.smith", "system")
	require.NoError(t, err)
	assert.Equal(t, "alice.smith", alice.Slug)

	taggings, err := f.svc.TagContent(ctx, "user-2", "post", "post-1", domain.ContextPost,
		"hey @alice.smith check out #fantasy, also @nobody")
	require.NoError(t, err)
	require.Len(t, taggings, 2, "unknown mention is skipped")

	assert.Equal(t, alice.ID, taggings[0].TagID)
	require.NotNil(t, taggings[0].Position)
	assert.Equal(t, 4, taggings[0].Position.Start)

	topic, err := f.svc.GetBySlug(ctx, domain.TagTypeTopic, "fantasy")
	require.NoError(t, err)
	assert.Equal(t, topic.ID, taggings[1].TagID)
	assert.Equal(t, 1, topic.UsageCount)
}

func TestTagContent_NoTokens(t *testing.T) {
	f := newTagServiceFixture(t)

	taggings, err := f.svc.TagContent(context.Background(), "user-1", "post", "post-1",
		domain.ContextPost, "plain text with no markup")
	require.NoError(t, err)
	assert.Nil(t, taggings)
}

func TestTagContent_RateLimited(t *testing.T) {
	f := newTagServiceFixture(t)
	f.limiter.allow = false

	_, err := f.svc.TagContent(context.Background(), "user-1", "post", "post-1",
		domain.ContextPost, "#fantasy")
	assert.ErrorIs(t, err, errors.ErrRateLimited)
}

func TestTagContent_Validation(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.TagContent(ctx, "user-1", "post", "post-1", domain.TagContext("bogus"), "#x")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.svc.TagContent(ctx, "user-1", "", "post-1", domain.ContextPost, "#x")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestListEntityTags(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	dragons, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Dragons", "user-1")
	require.NoError(t, err)
	cozy, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Cozy Mystery", "user-1")
	require.NoError(t, err)

	_, err = f.svc.CreateTaggings(ctx, "user-1", []TaggingInput{
		{TagID: dragons.ID, EntityType: "post", EntityID: "post-1", Context: domain.ContextPost},
		{TagID: cozy.ID, EntityType: "post", EntityID: "post-1", Context: domain.ContextPost},
	})
	require.NoError(t, err)

	entityTags, err := f.svc.ListEntityTags(ctx, "post", "post-1")
	require.NoError(t, err)
	require.Len(t, entityTags, 2)
	assert.Equal(t, dragons.ID, entityTags[0].Tag.ID)
	assert.Equal(t, cozy.ID, entityTags[1].Tag.ID)
}

func TestRemoveEntityTaggings(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Dragons", "user-1")
	require.NoError(t, err)

	_, err = f.svc.CreateTaggings(ctx, "user-1", []TaggingInput{
		{TagID: created.ID, EntityType: "post", EntityID: "post-1", Context: domain.ContextPost},
	})
	require.NoError(t, err)

	removed, err := f.svc.RemoveEntityTaggings(ctx, "post", "post-1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := f.svc.GetBySlug(ctx, domain.TagTypeTopic, "dragons")
	require.NoError(t, err)
	assert.Zero(t, got.UsageCount)

	removed, err = f.svc.RemoveEntityTaggings(ctx, "post", "post-1")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSoftDelete(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Dragons", "user-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.SoftDelete(ctx, created.ID))
	assert.Equal(t, []string{created.ID}, f.index.deleted)

	_, err = f.svc.GetBySlug(ctx, domain.TagTypeTopic, "dragons")
	assert.ErrorIs(t, err, errors.ErrNotFound, "hidden tags resolve as missing")

	require.NoError(t, f.svc.SoftDelete(ctx, created.ID), "idempotent")

	err = f.svc.SoftDelete(ctx, "tag-missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRebuildIndex(t *testing.T) {
	f := newTagServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Dragons", "user-1")
	require.NoError(t, err)
	deleted, err := f.svc.FindOrCreate(ctx, domain.TagTypeTopic, "Retired", "user-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.SoftDelete(ctx, deleted.ID))

	f.index.indexed = nil
	indexed, err := f.svc.RebuildIndex(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, f.index.rebuilds)
	assert.Equal(t, 1, indexed, "only active tags are reindexed")
	assert.Len(t, f.index.indexed, 1)
}
