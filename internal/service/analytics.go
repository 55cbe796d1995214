package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/errors"
	"github.com/quillapp/quill-server/internal/store"
)

// analyticsSampleSize caps how many recent taggings feed the context
// breakdown. Totals come from the index count, so the cap only bounds the
// breakdown's sample, not the reported volume.
const analyticsSampleSize = 500

// recentWindow is the lookback for the recent-activity counter.
const recentWindow = 7 * 24 * time.Hour

// AnalyticsStore is the slice of the store analytics reads from.
type AnalyticsStore interface {
	GetTagByID(ctx context.Context, tagID string) (*domain.Tag, error)
	CountTaggingsForTag(ctx context.Context, tagID string) (int, error)
	ListTaggingsForTag(ctx context.Context, tagID string, limit int) ([]*domain.Tagging, error)
	ListAliasesForTag(ctx context.Context, tagID string) ([]*domain.TagAlias, error)
}

// TagAnalytics summarizes how a tag is being used.
type TagAnalytics struct {
	TagID      string           `json:"tag_id"`
	Name       string           `json:"name"`
	Slug       string           `json:"slug"`
	Type       domain.TagType   `json:"type"`
	Status     domain.TagStatus `json:"status"`
	UsageCount int              `json:"usage_count"`

	TotalTaggings    int                       `json:"total_taggings"`
	ContextBreakdown map[domain.TagContext]int `json:"context_breakdown"`
	RecentTaggings   int                       `json:"recent_taggings"` // Within the last 7 days
	LastUsedAt       *time.Time                `json:"last_used_at,omitempty"`

	AliasCount int       `json:"alias_count"`
	CreatedAt  time.Time `json:"created_at"`
	AgeDays    float64   `json:"age_days"`

	Lifecycle TagLifecycle `json:"lifecycle"`
}

// lifecycleWeeks is how many weekly buckets the lifecycle summary covers.
const lifecycleWeeks = 8

// WeeklyUsage is one week's tagging volume.
type WeeklyUsage struct {
	WeekStart time.Time `json:"week_start"`
	Count     int       `json:"count"`
}

// TagLifecycle summarizes how a tag's usage develops over time, based on
// the sampled taggings.
type TagLifecycle struct {
	WeeklyUsage []WeeklyUsage `json:"weekly_usage"` // Oldest week first
	// GrowthRate compares the current week against the one before:
	// 0.5 means 50% more taggings, -0.5 means half as many.
	GrowthRate    float64    `json:"growth_rate"`
	PeakWeekStart *time.Time `json:"peak_week_start,omitempty"`
	PeakWeekCount int        `json:"peak_week_count"`
	// RepeatTaggerRatio is the share of taggers who used the tag more
	// than once, a rough retention signal.
	RepeatTaggerRatio float64 `json:"repeat_tagger_ratio"`
	UniqueTaggers     int     `json:"unique_taggers"`
}

// AnalyticsService reports usage metrics for individual tags.
type AnalyticsService struct {
	store  AnalyticsStore
	logger *slog.Logger
	now    func() time.Time
}

// NewAnalyticsService creates an analytics service.
func NewAnalyticsService(st AnalyticsStore, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// TagAnalytics computes the usage summary for one tag.
func (s *AnalyticsService) TagAnalytics(ctx context.Context, tagID string) (*TagAnalytics, error) {
	t, err := s.store.GetTagByID(ctx, tagID)
	if err != nil {
		if errors.Is(err, store.ErrTagNotFound) {
			return nil, errors.NotFoundf("tag %q not found", tagID)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get tag")
	}

	total, err := s.store.CountTaggingsForTag(ctx, tagID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "count taggings")
	}

	taggings, err := s.store.ListTaggingsForTag(ctx, tagID, analyticsSampleSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list taggings")
	}

	now := s.now()
	cutoff := now.Add(-recentWindow)

	breakdown := make(map[domain.TagContext]int)
	recent := 0
	var lastUsed *time.Time
	for _, tg := range taggings {
		breakdown[tg.Context]++
		if tg.CreatedAt.After(cutoff) {
			recent++
		}
		if lastUsed == nil || tg.CreatedAt.After(*lastUsed) {
			created := tg.CreatedAt
			lastUsed = &created
		}
	}

	aliases, err := s.store.ListAliasesForTag(ctx, tagID)
	if err != nil {
		s.logger.Warn("failed to count aliases for analytics", "tag_id", tagID, "error", err)
		aliases = nil
	}

	return &TagAnalytics{
		TagID:            t.ID,
		Name:             t.Name,
		Slug:             t.Slug,
		Type:             t.Type,
		Status:           t.Status,
		UsageCount:       t.UsageCount,
		TotalTaggings:    total,
		ContextBreakdown: breakdown,
		RecentTaggings:   recent,
		LastUsedAt:       lastUsed,
		AliasCount:       len(aliases),
		CreatedAt:        t.CreatedAt,
		AgeDays:          t.AgeDays(now),
		Lifecycle:        buildLifecycle(taggings, now),
	}, nil
}

// buildLifecycle buckets the sampled taggings into weeks ending at now and
// derives growth, peak, and retention figures.
func buildLifecycle(taggings []*domain.Tagging, now time.Time) TagLifecycle {
	const week = 7 * 24 * time.Hour

	counts := make([]int, lifecycleWeeks)
	taggers := make(map[string]int)

	for _, tg := range taggings {
		if tg.TaggedBy != "" {
			taggers[tg.TaggedBy]++
		}

		age := now.Sub(tg.CreatedAt)
		if age < 0 || age >= lifecycleWeeks*week {
			continue
		}
		weeksAgo := int(age / week)
		// Index 0 is the oldest bucket so the series reads left to right.
		counts[lifecycleWeeks-1-weeksAgo]++
	}

	lc := TagLifecycle{
		WeeklyUsage:   make([]WeeklyUsage, lifecycleWeeks),
		UniqueTaggers: len(taggers),
	}

	for i := range counts {
		weeksAgo := lifecycleWeeks - 1 - i
		weekStart := now.Add(-time.Duration(weeksAgo+1) * week)
		lc.WeeklyUsage[i] = WeeklyUsage{WeekStart: weekStart, Count: counts[i]}

		if counts[i] > lc.PeakWeekCount {
			lc.PeakWeekCount = counts[i]
			start := weekStart
			lc.PeakWeekStart = &start
		}
	}

	current := counts[lifecycleWeeks-1]
	previous := counts[lifecycleWeeks-2]
	switch {
	case previous > 0:
		lc.GrowthRate = float64(current-previous) / float64(previous)
	case current > 0:
		lc.GrowthRate = 1
	}

	repeat := 0
	for _, n := range taggers {
		if n > 1 {
			repeat++
		}
	}
	if len(taggers) > 0 {
		lc.RepeatTaggerRatio = float64(repeat) / float64(len(taggers))
	}

	return lc
}

var _ AnalyticsStore = (*store.Store)(nil)
