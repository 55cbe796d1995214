package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/id"
)

// Key prefixes for tag storage.
// Tags are community-wide — no user ownership.
const (
	tagPrefix       = "tag:"           // tag:{id} → Tag JSON
	tagBySlugPrefix = "idx:tags:slug:" // idx:tags:slug:{type}:{slug} → tagID
)

func tagSlugKey(tagType domain.TagType, slug string) []byte {
	return []byte(tagBySlugPrefix + string(tagType) + ":" + slug)
}

// CreateTag creates a new tag. The slug must be unique within its type.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		// Check if slug already exists for this type.
		slugKey := tagSlugKey(t.Type, t.Slug)
		if _, err := txn.Get(slugKey); err == nil {
			return ErrTagExists
		}

		// Store tag.
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		key := []byte(tagPrefix + t.ID)
		if err := txn.Set(key, data); err != nil {
			return err
		}

		// Slug index.
		return txn.Set(slugKey, []byte(t.ID))
	})
}

// GetTagByID retrieves a tag by ID.
func (s *Store) GetTagByID(ctx context.Context, tagID string) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var t domain.Tag
	key := []byte(tagPrefix + tagID)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTagNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})

	if err != nil {
		return nil, err
	}

	return &t, nil
}

// GetTagBySlug retrieves a tag by its type and normalized slug.
func (s *Store) GetTagBySlug(ctx context.Context, tagType domain.TagType, slug string) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tagID string
	slugKey := tagSlugKey(tagType, slug)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(slugKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTagNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			tagID = string(val)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return s.GetTagByID(ctx, tagID)
}

// FindTagBySlugAnyType retrieves a tag by slug across all types, preferring
// the order of domain.AllTagTypes.
func (s *Store) FindTagBySlugAnyType(ctx context.Context, slug string) (*domain.Tag, error) {
	for _, tagType := range domain.AllTagTypes {
		t, err := s.GetTagBySlug(ctx, tagType, slug)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrTagNotFound) {
			return nil, err
		}
	}
	return nil, ErrTagNotFound
}

// FindOrCreateTagBySlug atomically finds an existing tag by (type, slug) or
// creates a new one. Returns (tag, created, error) where created is true if
// a new tag was made.
func (s *Store) FindOrCreateTagBySlug(ctx context.Context, tagType domain.TagType, name, slug, createdBy string) (*domain.Tag, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	// Try to find existing tag first (optimistic read).
	existing, err := s.GetTagBySlug(ctx, tagType, slug)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrTagNotFound) {
		return nil, false, err
	}

	// Tag doesn't exist, create it.
	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	t := &domain.Tag{
		ID:         tagID,
		Name:       name,
		Slug:       slug,
		Type:       tagType,
		Status:     domain.TagStatusActive,
		UsageCount: 0,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.CreateTag(ctx, t); err != nil {
		if errors.Is(err, ErrTagExists) {
			// Race condition: another goroutine created it.
			existing, err := s.GetTagBySlug(ctx, tagType, slug)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	return t, true, nil
}

// UpdateTag persists changes to an existing tag, reindexing the slug if it
// changed.
func (s *Store) UpdateTag(ctx context.Context, t *domain.Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(tagPrefix + t.ID)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTagNotFound
		}
		if err != nil {
			return err
		}

		var old domain.Tag
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &old)
		}); err != nil {
			return err
		}

		if old.Slug != t.Slug || old.Type != t.Type {
			if err := txn.Delete(tagSlugKey(old.Type, old.Slug)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(tagSlugKey(t.Type, t.Slug), []byte(t.ID)); err != nil {
				return err
			}
		}

		t.Touch()
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// SoftDeleteTag marks a tag as deleted, frees its slug, and removes its
// aliases within the same transaction. The tag record is kept so existing
// taggings still resolve.
func (s *Store) SoftDeleteTag(ctx context.Context, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(tagPrefix + tagID)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTagNotFound
		}
		if err != nil {
			return err
		}

		var t domain.Tag
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		}); err != nil {
			return err
		}

		if t.DeletedAt != nil {
			// Already deleted, idempotent success.
			return nil
		}

		now := time.Now()
		t.DeletedAt = &now
		t.Status = domain.TagStatusHidden
		t.Touch()

		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}

		// Free the slug for reuse.
		if err := txn.Delete(tagSlugKey(t.Type, t.Slug)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		// Cascade alias removal.
		return s.deleteAliasesForTagInTxn(txn, tagID)
	})
}

// IncrementTagUsage adjusts a tag's usage count by delta, clamped at zero.
func (s *Store) IncrementTagUsage(ctx context.Context, tagID string, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return s.updateTagUsageInTxn(txn, tagID, delta)
	})
}

// updateTagUsageInTxn updates the tag's usage count within an existing transaction.
func (s *Store) updateTagUsageInTxn(txn *badger.Txn, tagID string, delta int) error {
	key := []byte(tagPrefix + tagID)

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrTagNotFound
	}
	if err != nil {
		return err
	}

	var t domain.Tag
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &t)
	}); err != nil {
		return err
	}

	t.UsageCount += delta
	if t.UsageCount < 0 {
		t.UsageCount = 0 // Safety guard.
	}
	t.Touch()

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	return txn.Set(key, data)
}

// FindTags returns active tags whose name or slug contains the query,
// case-insensitively. An empty type list matches all types. Results are
// ordered by usage count descending with slug as tiebreaker.
func (s *Store) FindTags(ctx context.Context, query string, types []domain.TagType, limit int) ([]*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	wanted := typeSet(types)

	var tags []*domain.Tag
	err := s.scanTags(func(t *domain.Tag) {
		if !t.IsActive() {
			return
		}
		if wanted != nil && !wanted[t.Type] {
			return
		}
		if !strings.Contains(strings.ToLower(t.Name), query) && !strings.Contains(t.Slug, query) {
			return
		}
		tags = append(tags, t)
	})
	if err != nil {
		return nil, err
	}

	sortTagsByUsage(tags)
	return truncateTags(tags, limit), nil
}

// ListTopTags returns the most used active tags, optionally filtered by type.
func (s *Store) ListTopTags(ctx context.Context, types []domain.TagType, limit int) ([]*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := typeSet(types)

	var tags []*domain.Tag
	err := s.scanTags(func(t *domain.Tag) {
		if !t.IsActive() {
			return
		}
		if wanted != nil && !wanted[t.Type] {
			return
		}
		tags = append(tags, t)
	})
	if err != nil {
		return nil, err
	}

	sortTagsByUsage(tags)
	return truncateTags(tags, limit), nil
}

// ListActiveTags returns every active tag. Used for search index rebuilds.
func (s *Store) ListActiveTags(ctx context.Context) ([]*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tags []*domain.Tag
	err := s.scanTags(func(t *domain.Tag) {
		if t.IsActive() {
			tags = append(tags, t)
		}
	})
	if err != nil {
		return nil, err
	}

	return tags, nil
}

// scanTags iterates every stored tag, invoking fn for each record that
// unmarshals cleanly.
func (s *Store) scanTags(fn func(*domain.Tag)) error {
	prefix := []byte(tagPrefix)

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchSize = 100

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var t domain.Tag
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			})
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("skipping unreadable tag record", "key", string(item.Key()), "error", err)
				}
				continue
			}
			fn(&t)
		}
		return nil
	})
}

// typeSet converts a type filter to a lookup set; nil means no filter.
func typeSet(types []domain.TagType) map[domain.TagType]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[domain.TagType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// sortTagsByUsage orders by usage count descending, then by slug for stability.
func sortTagsByUsage(tags []*domain.Tag) {
	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].UsageCount != tags[j].UsageCount {
			return tags[i].UsageCount > tags[j].UsageCount
		}
		return tags[i].Slug < tags[j].Slug
	})
}

func truncateTags(tags []*domain.Tag, limit int) []*domain.Tag {
	if limit > 0 && len(tags) > limit {
		return tags[:limit]
	}
	return tags
}

// RecalculateTagUsage recalculates a tag's usage count from its taggings.
// Use for data repair or verification.
func (s *Store) RecalculateTagUsage(ctx context.Context, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := []byte(fmt.Sprintf("%s%s:", taggingsByTagPrefix, tagID))
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(tagPrefix + tagID)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTagNotFound
		}
		if err != nil {
			return err
		}

		var t domain.Tag
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		}); err != nil {
			return err
		}

		t.UsageCount = count
		t.Touch()

		data, err := json.Marshal(t)
		if err != nil {
			return err
		}

		return txn.Set(key, data)
	})
}
