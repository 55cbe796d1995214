package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/errors"
	"github.com/quillapp/quill-server/internal/store"
	"github.com/quillapp/quill-server/internal/util"
)

func newAnalyticsFixture(t *testing.T) (*AnalyticsService, *TagService) {
	t.Helper()

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	logger := slog.New(slog.DiscardHandler)
	tags := NewTagService(st, nil, nil, &countingInvalidator{}, util.NormalizeTagSlug, logger)
	return NewAnalyticsService(st, logger), tags
}

func TestTagAnalytics(t *testing.T) {
	analytics, tags := newAnalyticsFixture(t)
	ctx := context.Background()

	created, err := tags.FindOrCreate(ctx, domain.TagTypeTopic, "Dragons", "user-1")
	require.NoError(t, err)
	_, err = tags.AddAlias(ctx, created.ID, "wyverns", "user-1")
	require.NoError(t, err)

	_, err = tags.CreateTaggings(ctx, "user-1", []TaggingInput{
		{TagID: created.ID, EntityType: "post", EntityID: "post-1", Context: domain.ContextPost},
		{TagID: created.ID, EntityType: "post", EntityID: "post-2", Context: domain.ContextPost},
		{TagID: created.ID, EntityType: "comment", EntityID: "comment-1", Context: domain.ContextComment},
	})
	require.NoError(t, err)

	got, err := analytics.TagAnalytics(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.ID, got.TagID)
	assert.Equal(t, "dragons", got.Slug)
	assert.Equal(t, 3, got.TotalTaggings)
	assert.Equal(t, 3, got.UsageCount)
	assert.Equal(t, 2, got.ContextBreakdown[domain.ContextPost])
	assert.Equal(t, 1, got.ContextBreakdown[domain.ContextComment])
	assert.Equal(t, 3, got.RecentTaggings, "all taggings just happened")
	assert.Equal(t, 1, got.AliasCount)
	require.NotNil(t, got.LastUsedAt)

	assert.Equal(t, 3, got.Lifecycle.WeeklyUsage[lifecycleWeeks-1].Count)
	assert.Equal(t, 1, got.Lifecycle.UniqueTaggers)
}

func TestTagAnalytics_UnusedTag(t *testing.T) {
	analytics, tags := newAnalyticsFixture(t)
	ctx := context.Background()

	created, err := tags.FindOrCreate(ctx, domain.TagTypeTopic, "Dusty", "user-1")
	require.NoError(t, err)

	got, err := analytics.TagAnalytics(ctx, created.ID)
	require.NoError(t, err)

	assert.Zero(t, got.TotalTaggings)
	assert.Zero(t, got.RecentTaggings)
	assert.Empty(t, got.ContextBreakdown)
	assert.Nil(t, got.LastUsedAt)
}

func TestBuildLifecycle(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mk := func(daysAgo int, by string) *domain.Tagging {
		return &domain.Tagging{TaggedBy: by, CreatedAt: now.AddDate(0, 0, -daysAgo)}
	}

	lc := buildLifecycle([]*domain.Tagging{
		mk(1, "u1"), mk(2, "u1"), mk(3, "u2"), // current week
		mk(8, "u1"), mk(9, "u3"), // previous week
		mk(70, "u4"), // outside the bucketed window
	}, now)

	require.Len(t, lc.WeeklyUsage, lifecycleWeeks)
	assert.Equal(t, 3, lc.WeeklyUsage[lifecycleWeeks-1].Count)
	assert.Equal(t, 2, lc.WeeklyUsage[lifecycleWeeks-2].Count)
	assert.Zero(t, lc.WeeklyUsage[0].Count)

	assert.InDelta(t, 0.5, lc.GrowthRate, 1e-9)
	assert.Equal(t, 3, lc.PeakWeekCount)
	require.NotNil(t, lc.PeakWeekStart)

	// u1 tagged three times; u2, u3, u4 once each.
	assert.Equal(t, 4, lc.UniqueTaggers)
	assert.InDelta(t, 0.25, lc.RepeatTaggerRatio, 1e-9)
}

func TestBuildLifecycle_Empty(t *testing.T) {
	lc := buildLifecycle(nil, time.Now())

	assert.Zero(t, lc.GrowthRate)
	assert.Zero(t, lc.PeakWeekCount)
	assert.Nil(t, lc.PeakWeekStart)
	assert.Zero(t, lc.RepeatTaggerRatio)
}

func TestTagAnalytics_MissingTag(t *testing.T) {
	analytics, _ := newAnalyticsFixture(t)

	_, err := analytics.TagAnalytics(context.Background(), "tag-missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
