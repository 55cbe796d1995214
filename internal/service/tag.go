package service

import (
	"context"
	"log/slog"

	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/errors"
	"github.com/quillapp/quill-server/internal/store"
	"github.com/quillapp/quill-server/internal/tagparse"
	"github.com/quillapp/quill-server/internal/util"
)

// TagStore is the slice of the store the tag service writes through.
type TagStore interface {
	FindOrCreateTagBySlug(ctx context.Context, tagType domain.TagType, name, slug, createdBy string) (*domain.Tag, bool, error)
	GetTagByID(ctx context.Context, tagID string) (*domain.Tag, error)
	GetTagBySlug(ctx context.Context, tagType domain.TagType, slug string) (*domain.Tag, error)
	FindTagBySlugAnyType(ctx context.Context, slug string) (*domain.Tag, error)
	UpdateTag(ctx context.Context, t *domain.Tag) error
	SoftDeleteTag(ctx context.Context, tagID string) error
	ListActiveTags(ctx context.Context) ([]*domain.Tag, error)
	CreateAlias(ctx context.Context, tagID, alias, aliasSlug, createdBy string) (*domain.TagAlias, error)
	ListAliasesForTag(ctx context.Context, tagID string) ([]*domain.TagAlias, error)
	CreateTaggings(ctx context.Context, taggings []*domain.Tagging) error
	ListTaggingsForEntity(ctx context.Context, entityType, entityID string) ([]*domain.Tagging, error)
	DeleteTaggingsForEntity(ctx context.Context, entityType, entityID string) (int, error)
}

// TagIndexWriter is the index surface the tag service keeps in sync with
// the store.
type TagIndexWriter interface {
	IndexTag(t *domain.Tag, aliases []*domain.TagAlias) error
	DeleteTag(tagID string) error
	Rebuild() error
}

// RateLimiter gates write operations per actor.
type RateLimiter interface {
	AllowN(key string, n int) bool
}

// SlugNormalizer converts raw text to a canonical slug.
type SlugNormalizer func(string) string

// SearchInvalidator drops cached search results after a write.
type SearchInvalidator interface {
	InvalidateSearchCache()
}

// TagService owns the tag write path: creation, aliasing, tagging content,
// and moderation. Every mutation keeps the Bleve index and the search cache
// consistent with the store.
type TagService struct {
	store      TagStore
	index      TagIndexWriter
	limiter    RateLimiter
	invalidate SearchInvalidator
	normalize  SlugNormalizer
	logger     *slog.Logger
}

// NewTagService creates a tag service. index and limiter may be nil, which
// disables index sync and rate limiting respectively.
func NewTagService(st TagStore, index TagIndexWriter, limiter RateLimiter, invalidate SearchInvalidator, normalize SlugNormalizer, logger *slog.Logger) *TagService {
	return &TagService{
		store:      st,
		index:      index,
		limiter:    limiter,
		invalidate: invalidate,
		normalize:  normalize,
		logger:     logger,
	}
}

// FindOrCreate resolves name to an existing tag of the given type or
// creates one. Name is slug-normalized first; input that normalizes to an
// empty slug is rejected.
func (s *TagService) FindOrCreate(ctx context.Context, tagType domain.TagType, name, createdBy string) (*domain.Tag, error) {
	if !domain.ValidTagType(tagType) {
		return nil, errors.Validationf("unknown tag type %q", tagType)
	}

	// User tag slugs keep dots so handles like "j.r.reader" survive.
	slug := ""
	if tagType == domain.TagTypeUser {
		slug = util.NormalizeUserSlug(name)
	} else {
		slug = s.normalize(name)
	}
	if slug == "" {
		return nil, errors.Validationf("tag name %q normalizes to an empty slug", name)
	}

	t, created, err := s.store.FindOrCreateTagBySlug(ctx, tagType, name, slug, createdBy)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "find or create tag")
	}

	if created {
		s.logger.Info("tag created", "tag_id", t.ID, "type", t.Type, "slug", t.Slug)
		s.syncIndex(ctx, t)
		s.invalidate.InvalidateSearchCache()
		return t, nil
	}

	// Same handle but a drifted display name, e.g. a user renamed their
	// profile. Refresh so search shows the current name. Only user tags:
	// topic names vary by casing per mention and should keep the first form.
	if tagType == domain.TagTypeUser && name != "" && t.Name != name {
		t.Name = name
		if err := s.store.UpdateTag(ctx, t); err != nil {
			s.logger.Warn("tag name refresh failed", "tag_id", t.ID, "error", err)
			return t, nil
		}
		s.syncIndex(ctx, t)
		s.invalidate.InvalidateSearchCache()
	}

	return t, nil
}

// EnsureEntityTag creates or refreshes the tag that makes a display entity
// searchable. Users get a user tag slugged by handle; authors, books,
// groups, and events get an entity tag slugged by name. The tag's Ref ties
// search enrichment back to the projection row.
func (s *TagService) EnsureEntityTag(ctx context.Context, entityType, entityID, name, handle string) (*domain.Tag, error) {
	var tagType domain.TagType
	var slug string
	switch entityType {
	case "user":
		tagType = domain.TagTypeUser
		slug = util.NormalizeUserSlug(handle)
	case "author", "book", "group", "event":
		tagType = domain.TagTypeEntity
		slug = s.normalize(name)
	default:
		return nil, errors.Validationf("unknown entity type %q", entityType)
	}
	if slug == "" {
		return nil, errors.Validation("entity normalizes to an empty slug")
	}

	t, created, err := s.store.FindOrCreateTagBySlug(ctx, tagType, name, slug, "system")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "find or create entity tag")
	}

	ref := domain.EntityRef{EntityType: entityType, EntityID: entityID}
	changed := created
	if name != "" && t.Name != name {
		t.Name = name
		changed = true
	}
	if t.Ref == nil || *t.Ref != ref {
		t.Ref = &ref
		changed = true
	}
	if !changed {
		return t, nil
	}

	if err := s.store.UpdateTag(ctx, t); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "update entity tag")
	}
	if created {
		s.logger.Info("entity tag created", "tag_id", t.ID, "entity_type", entityType, "entity_id", entityID)
	}
	s.syncIndex(ctx, t)
	s.invalidate.InvalidateSearchCache()

	return t, nil
}

// GetBySlug returns the tag with the given type and slug.
func (s *TagService) GetBySlug(ctx context.Context, tagType domain.TagType, slug string) (*domain.Tag, error) {
	t, err := s.store.GetTagBySlug(ctx, tagType, s.normalize(slug))
	if err != nil {
		if errors.Is(err, store.ErrTagNotFound) {
			return nil, errors.NotFoundf("tag %q not found", slug)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get tag by slug")
	}
	return t, nil
}

// GetBySlugAnyType returns the first tag matching slug across all types.
func (s *TagService) GetBySlugAnyType(ctx context.Context, slug string) (*domain.Tag, error) {
	t, err := s.store.FindTagBySlugAnyType(ctx, s.normalize(slug))
	if err != nil {
		if errors.Is(err, store.ErrTagNotFound) {
			return nil, errors.NotFoundf("tag %q not found", slug)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get tag by slug")
	}
	return t, nil
}

// AddAlias attaches an alternate spelling to an existing tag. Future
// searches for the alias surface the tag.
func (s *TagService) AddAlias(ctx context.Context, tagID, alias, createdBy string) (*domain.TagAlias, error) {
	aliasSlug := s.normalize(alias)
	if aliasSlug == "" {
		return nil, errors.Validationf("alias %q normalizes to an empty slug", alias)
	}

	a, err := s.store.CreateAlias(ctx, tagID, alias, aliasSlug, createdBy)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTagNotFound):
			return nil, errors.NotFoundf("tag %q not found", tagID)
		case errors.Is(err, store.ErrAliasExists):
			return nil, errors.AlreadyExistsf("alias %q already exists for tag %q", alias, tagID)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "create alias")
	}

	if t, err := s.store.GetTagByID(ctx, tagID); err == nil {
		s.syncIndex(ctx, t)
	}
	s.invalidate.InvalidateSearchCache()

	return a, nil
}

// TaggingInput is one requested tag application.
type TaggingInput struct {
	TagID      string
	EntityType string
	EntityID   string
	Context    domain.TagContext
	Position   *domain.Position
	TaggedBy   string
}

// CreateTaggings applies a batch of tags to content on behalf of one actor.
// The batch is atomic: one invalid entry or missing tag fails the whole
// call. Rate limiting charges one token per tagging.
func (s *TagService) CreateTaggings(ctx context.Context, taggedBy string, inputs []TaggingInput) ([]*domain.Tagging, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	if s.limiter != nil && !s.limiter.AllowN("user:"+taggedBy, len(inputs)) {
		return nil, errors.RateLimited("tagging rate limit exceeded")
	}

	taggings := make([]*domain.Tagging, 0, len(inputs))
	for i, in := range inputs {
		if !domain.ValidTagContext(in.Context) {
			return nil, errors.Validationf("tagging %d: unknown context %q", i, in.Context)
		}
		if in.TagID == "" || in.EntityType == "" || in.EntityID == "" {
			return nil, errors.Validationf("tagging %d: tag_id, entity_type, and entity_id are required", i)
		}
		taggings = append(taggings, &domain.Tagging{
			TagID:      in.TagID,
			EntityType: in.EntityType,
			EntityID:   in.EntityID,
			Context:    in.Context,
			Position:   in.Position,
			TaggedBy:   taggedBy,
		})
	}

	if err := s.store.CreateTaggings(ctx, taggings); err != nil {
		if errors.Is(err, store.ErrTagNotFound) {
			return nil, errors.NotFound("tagging references a missing tag")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "create taggings")
	}

	// Usage counts feed ranking, so reindex each touched tag once.
	s.reindexTags(ctx, taggingTagIDs(taggings))
	s.invalidate.InvalidateSearchCache()

	s.logger.Info("taggings created", "count", len(taggings), "tagged_by", taggedBy)
	return taggings, nil
}

// TagContent parses free text for @mentions and #hashtags and applies the
// resulting tags to the given content. Mentions resolve against existing
// user tags; unknown handles are skipped. Hashtags create topic tags on
// demand. Mentions and hashtags are rate limited separately so a hashtag
// storm cannot starve mention notifications.
func (s *TagService) TagContent(ctx context.Context, taggedBy, entityType, entityID string, tagContext domain.TagContext, content string) ([]*domain.Tagging, error) {
	if !domain.ValidTagContext(tagContext) {
		return nil, errors.Validationf("unknown context %q", tagContext)
	}
	if entityType == "" || entityID == "" {
		return nil, errors.Validation("entity_type and entity_id are required")
	}

	ex := tagparse.Parse(content)
	if len(ex.Mentions) == 0 && len(ex.Hashtags) == 0 {
		return nil, nil
	}

	if s.limiter != nil {
		if len(ex.Mentions) > 0 && !s.limiter.AllowN("user:"+taggedBy+":mention", len(ex.Mentions)) {
			return nil, errors.RateLimited("mention rate limit exceeded")
		}
		if len(ex.Hashtags) > 0 && !s.limiter.AllowN("user:"+taggedBy+":topic", len(ex.Hashtags)) {
			return nil, errors.RateLimited("hashtag rate limit exceeded")
		}
	}

	var taggings []*domain.Tagging

	for _, m := range ex.Mentions {
		slug := util.NormalizeUserSlug(m.Handle)
		if slug == "" {
			continue
		}
		t, err := s.store.GetTagBySlug(ctx, domain.TagTypeUser, slug)
		if err != nil {
			s.logger.Debug("mention does not resolve to a user tag", "handle", m.Handle)
			continue
		}
		position := m.Position
		taggings = append(taggings, &domain.Tagging{
			TagID:      t.ID,
			EntityType: entityType,
			EntityID:   entityID,
			Context:    tagContext,
			Position:   &position,
			TaggedBy:   taggedBy,
		})
	}

	for _, h := range ex.Hashtags {
		t, err := s.FindOrCreate(ctx, domain.TagTypeTopic, h.Text, taggedBy)
		if err != nil {
			s.logger.Warn("failed to resolve hashtag", "hashtag", h.Text, "error", err)
			continue
		}
		position := h.Position
		taggings = append(taggings, &domain.Tagging{
			TagID:      t.ID,
			EntityType: entityType,
			EntityID:   entityID,
			Context:    tagContext,
			Position:   &position,
			TaggedBy:   taggedBy,
		})
	}

	if len(taggings) == 0 {
		return nil, nil
	}

	if err := s.store.CreateTaggings(ctx, taggings); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "create taggings")
	}

	s.reindexTags(ctx, taggingTagIDs(taggings))
	s.invalidate.InvalidateSearchCache()

	s.logger.Info("content taggings created",
		"count", len(taggings),
		"mentions", len(ex.Mentions),
		"hashtags", len(ex.Hashtags),
		"tagged_by", taggedBy,
	)
	return taggings, nil
}

// ListEntityTags returns the taggings on a piece of content together with
// their resolved tags, oldest first. Taggings whose tag has gone missing
// are skipped.
func (s *TagService) ListEntityTags(ctx context.Context, entityType, entityID string) ([]*domain.EntityTag, error) {
	taggings, err := s.store.ListTaggingsForEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list taggings")
	}

	out := make([]*domain.EntityTag, 0, len(taggings))
	for _, tg := range taggings {
		t, err := s.store.GetTagByID(ctx, tg.TagID)
		if err != nil {
			s.logger.Warn("tagging references missing tag", "tagging_id", tg.ID, "tag_id", tg.TagID)
			continue
		}
		out = append(out, &domain.EntityTag{Tagging: tg, Tag: t})
	}
	return out, nil
}

// RemoveEntityTaggings removes every tagging on a piece of content,
// returning how many were removed. Called when content is deleted.
func (s *TagService) RemoveEntityTaggings(ctx context.Context, entityType, entityID string) (int, error) {
	taggings, err := s.store.ListTaggingsForEntity(ctx, entityType, entityID)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "list taggings")
	}

	removed, err := s.store.DeleteTaggingsForEntity(ctx, entityType, entityID)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "delete taggings")
	}

	if removed > 0 {
		s.reindexTags(ctx, taggingTagIDs(taggings))
		s.invalidate.InvalidateSearchCache()
	}
	return removed, nil
}

// SoftDelete hides a tag from search while preserving its taggings.
// Idempotent.
func (s *TagService) SoftDelete(ctx context.Context, tagID string) error {
	if err := s.store.SoftDeleteTag(ctx, tagID); err != nil {
		if errors.Is(err, store.ErrTagNotFound) {
			return errors.NotFoundf("tag %q not found", tagID)
		}
		return errors.Wrap(err, errors.CodeInternal, "soft delete tag")
	}

	if s.index != nil {
		if err := s.index.DeleteTag(tagID); err != nil {
			s.logger.Warn("failed to remove tag from index", "tag_id", tagID, "error", err)
		}
	}
	s.invalidate.InvalidateSearchCache()

	s.logger.Info("tag soft deleted", "tag_id", tagID)
	return nil
}

// RebuildIndex drops and repopulates the Bleve index from every active tag
// in the store. Returns the number of tags indexed.
func (s *TagService) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, errors.Internal("search index not configured")
	}

	if err := s.index.Rebuild(); err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "rebuild index")
	}

	tags, err := s.store.ListActiveTags(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "list active tags")
	}

	indexed := 0
	for _, t := range tags {
		s.syncIndex(ctx, t)
		indexed++
	}

	s.invalidate.InvalidateSearchCache()
	s.logger.Info("search index rebuilt", "tags", indexed)
	return indexed, nil
}

// syncIndex writes one tag and its aliases into the index. Index write
// failures are logged, not returned: the store stays the source of truth
// and a rebuild repairs drift.
func (s *TagService) syncIndex(ctx context.Context, t *domain.Tag) {
	if s.index == nil {
		return
	}

	aliases, err := s.store.ListAliasesForTag(ctx, t.ID)
	if err != nil {
		s.logger.Warn("failed to load aliases for indexing", "tag_id", t.ID, "error", err)
		aliases = nil
	}

	if err := s.index.IndexTag(t, aliases); err != nil {
		s.logger.Warn("failed to index tag", "tag_id", t.ID, "error", err)
	}
}

func (s *TagService) reindexTags(ctx context.Context, tagIDs []string) {
	for _, tagID := range tagIDs {
		t, err := s.store.GetTagByID(ctx, tagID)
		if err != nil {
			continue
		}
		s.syncIndex(ctx, t)
	}
}

func taggingTagIDs(taggings []*domain.Tagging) []string {
	seen := make(map[string]bool, len(taggings))
	var ids []string
	for _, tg := range taggings {
		if seen[tg.TagID] {
			continue
		}
		seen[tg.TagID] = true
		ids = append(ids, tg.TagID)
	}
	return ids
}

var _ TagStore = (*store.Store)(nil)
