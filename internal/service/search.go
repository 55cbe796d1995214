package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/quillapp/quill-server/internal/cache"
	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/search"
	"github.com/quillapp/quill-server/internal/store"
)

// ResultCache caches ranked search result lists.
type ResultCache = cache.Cache[[]domain.SearchResult]

// SearchStore is the slice of the store the search service reads from.
type SearchStore interface {
	FindTags(ctx context.Context, query string, types []domain.TagType, limit int) ([]*domain.Tag, error)
	FindTagsByAlias(ctx context.Context, query string, types []domain.TagType, limit int) ([]*domain.Tag, error)
	GetTagByID(ctx context.Context, tagID string) (*domain.Tag, error)
	ListTopTags(ctx context.Context, types []domain.TagType, limit int) ([]*domain.Tag, error)
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	GetAuthor(ctx context.Context, authorID string) (*domain.Author, error)
	GetBook(ctx context.Context, bookID string) (*domain.Book, error)
	GetGroup(ctx context.Context, groupID string) (*domain.Group, error)
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
}

// FuzzyIndex is the typo-tolerant candidate source backed by Bleve.
type FuzzyIndex interface {
	FuzzyCandidates(ctx context.Context, params search.FuzzyParams) ([]search.Candidate, error)
}

// SearchConfig holds the search tuning knobs.
type SearchConfig struct {
	CacheTTL         time.Duration
	DefaultLimit     int
	FuzzyMinQueryLen int
	FuzzyThreshold   float64
}

// DefaultSearchConfig returns the standard knob values.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		CacheTTL:         5 * time.Minute,
		DefaultLimit:     20,
		FuzzyMinQueryLen: 3,
		FuzzyThreshold:   0.2,
	}
}

// candidateSource is one strategy for gathering tags matching a query.
// The orchestrator runs every source and merges whatever succeeded, so the
// fuzzy-then-substring policy is a visible list rather than buried branching.
type candidateSource struct {
	name  string
	fetch func(ctx context.Context, query string, types []domain.TagType, limit int) ([]*domain.Tag, error)
}

// SearchService ranks tags against free-text queries.
//
// Failure policy: search powers a typeahead, so no error crosses SearchTags.
// A failing candidate source is logged and contributes nothing; if every
// source fails the result is an empty list.
type SearchService struct {
	store   SearchStore
	cache   ResultCache
	cfg     SearchConfig
	logger  *slog.Logger
	now     func() time.Time
	sources []candidateSource
}

// NewSearchService creates a search service. index may be nil, which
// disables the fuzzy candidate source.
func NewSearchService(st SearchStore, index FuzzyIndex, resultCache ResultCache, cfg SearchConfig, logger *slog.Logger) *SearchService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultSearchConfig().DefaultLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultSearchConfig().CacheTTL
	}

	s := &SearchService{
		store:  st,
		cache:  resultCache,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}

	s.sources = []candidateSource{
		{name: "fuzzy", fetch: s.fuzzyCandidates(index)},
		{name: "direct", fetch: st.FindTags},
		{name: "alias", fetch: st.FindTagsByAlias},
	}

	return s
}

// fuzzyCandidates adapts the Bleve index into a candidate source. Queries
// shorter than the configured minimum skip it entirely — token-level fuzzy
// matching on one or two characters is all noise.
func (s *SearchService) fuzzyCandidates(index FuzzyIndex) func(context.Context, string, []domain.TagType, int) ([]*domain.Tag, error) {
	return func(ctx context.Context, query string, types []domain.TagType, limit int) ([]*domain.Tag, error) {
		if index == nil || len([]rune(query)) < s.cfg.FuzzyMinQueryLen {
			return nil, nil
		}

		candidates, err := index.FuzzyCandidates(ctx, search.FuzzyParams{
			Query:     query,
			Types:     typeStrings(types),
			Limit:     limit,
			Threshold: s.cfg.FuzzyThreshold,
		})
		if err != nil {
			return nil, err
		}

		tags := make([]*domain.Tag, 0, len(candidates))
		for _, c := range candidates {
			t, err := s.store.GetTagByID(ctx, c.TagID)
			if err != nil {
				// Index can lag behind the store; a missing tag is stale, not fatal.
				continue
			}
			if !t.IsActive() {
				continue
			}
			tags = append(tags, t)
		}
		return tags, nil
	}
}

// SearchTags returns a ranked list of tags matching the query, optionally
// restricted to the given types. A non-positive limit uses the default.
// An empty or whitespace query returns an empty list without touching the
// cache.
func (s *SearchService) SearchTags(ctx context.Context, query string, types []domain.TagType, limit int) []domain.SearchResult {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return []domain.SearchResult{}
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	key := cache.SearchKey(normalized, typeStrings(types), limit)
	if cached, ok := s.cache.Get(key); ok {
		return cached
	}

	merged := s.gatherCandidates(ctx, normalized, types, limit)

	// Score and rank. The sort is stable so merge order breaks ties.
	now := s.now()
	scores := make(map[string]float64, len(merged))
	for _, t := range merged {
		scores[t.ID] = RelevanceScore(t, normalized, now)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return scores[merged[i].ID] > scores[merged[j].ID]
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	results := make([]domain.SearchResult, 0, len(merged))
	for _, t := range merged {
		results = append(results, s.buildResult(ctx, t))
	}

	s.cache.Set(key, results, s.cfg.CacheTTL)
	return results
}

// gatherCandidates runs every candidate source and merges the hits,
// deduplicated by tag ID with first occurrence kept.
func (s *SearchService) gatherCandidates(ctx context.Context, normalized string, types []domain.TagType, limit int) []*domain.Tag {
	var merged []*domain.Tag
	seen := make(map[string]bool)

	for _, src := range s.sources {
		tags, err := src.fetch(ctx, normalized, types, limit)
		if err != nil {
			s.logger.Warn("tag candidate source failed", "source", src.name, "query", normalized, "error", err)
			continue
		}
		for _, t := range tags {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			merged = append(merged, t)
		}
	}

	return merged
}

// TopTags returns the most used tags, enriched like search results and
// cached under their own key.
func (s *SearchService) TopTags(ctx context.Context, types []domain.TagType, limit int) []domain.SearchResult {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	key := cache.TopTagsKey(typeStrings(types), limit)
	if cached, ok := s.cache.Get(key); ok {
		return cached
	}

	tags, err := s.store.ListTopTags(ctx, types, limit)
	if err != nil {
		s.logger.Warn("top tags lookup failed", "error", err)
		return []domain.SearchResult{}
	}

	results := make([]domain.SearchResult, 0, len(tags))
	for _, t := range tags {
		results = append(results, s.buildResult(ctx, t))
	}

	s.cache.Set(key, results, s.cfg.CacheTTL)
	return results
}

// InvalidateSearchCache drops every cached search result list. Called after
// writes that change what a search would return.
func (s *SearchService) InvalidateSearchCache() {
	s.cache.Clear("")
}

// buildResult converts a tag to a SearchResult, resolving display fields
// from the referenced entity where one exists. A missing referenced row
// degrades to the tag's own stored name and slug.
func (s *SearchService) buildResult(ctx context.Context, t *domain.Tag) domain.SearchResult {
	result := domain.SearchResult{
		ID:         t.ID,
		Name:       t.Name,
		Slug:       t.Slug,
		Type:       t.Type,
		Ref:        t.Ref,
		UsageCount: t.UsageCount,
	}

	if t.Ref == nil {
		return result
	}

	switch t.Ref.EntityType {
	case "user":
		profile, err := s.store.GetUserProfile(ctx, t.Ref.EntityID)
		if err != nil {
			s.enrichMiss(t, err)
			return result
		}
		result.Name = profile.Name
		result.Sublabel = "@" + profile.Handle
		result.AvatarURL = profile.AvatarURL
	case "author":
		author, err := s.store.GetAuthor(ctx, t.Ref.EntityID)
		if err != nil {
			s.enrichMiss(t, err)
			return result
		}
		result.Name = author.Name
		result.Sublabel = "Author"
	case "book":
		book, err := s.store.GetBook(ctx, t.Ref.EntityID)
		if err != nil {
			s.enrichMiss(t, err)
			return result
		}
		result.Name = book.Title
		result.Sublabel = "Book"
	case "group":
		group, err := s.store.GetGroup(ctx, t.Ref.EntityID)
		if err != nil {
			s.enrichMiss(t, err)
			return result
		}
		result.Name = group.Name
		result.Sublabel = "Group"
	case "event":
		event, err := s.store.GetEvent(ctx, t.Ref.EntityID)
		if err != nil {
			s.enrichMiss(t, err)
			return result
		}
		result.Name = event.Title
		result.Sublabel = "Event"
	default:
		s.logger.Debug("tag references unknown entity type", "tag_id", t.ID, "entity_type", t.Ref.EntityType)
	}

	return result
}

func (s *SearchService) enrichMiss(t *domain.Tag, err error) {
	s.logger.Debug("tag enrichment fell back to stored name",
		"tag_id", t.ID,
		"entity_type", t.Ref.EntityType,
		"entity_id", t.Ref.EntityID,
		"error", err,
	)
}

func typeStrings(types []domain.TagType) []string {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// Compile-time check that the concrete store satisfies the read surface.
var _ SearchStore = (*store.Store)(nil)
