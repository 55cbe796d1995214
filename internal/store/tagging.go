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

// Key prefixes for tagging storage.
const (
	taggingPrefix          = "tagging:"             // tagging:{id} → Tagging JSON
	taggingsByEntityPrefix = "idx:taggings:entity:" // idx:taggings:entity:{entityType}:{entityID}:{taggingID} → empty
	taggingsByTagPrefix    = "idx:taggings:tag:"    // idx:taggings:tag:{tagID}:{taggingID} → empty
)

func taggingEntityKey(entityType, entityID, taggingID string) []byte {
	return []byte(taggingsByEntityPrefix + entityType + ":" + entityID + ":" + taggingID)
}

// CreateTaggings persists a batch of taggings in a single transaction,
// incrementing each referenced tag's usage count. Missing IDs and creation
// times are filled in.
func (s *Store) CreateTaggings(ctx context.Context, taggings []*domain.Tagging) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(taggings) == 0 {
		return nil
	}

	now := time.Now()
	for i, tg := range taggings {
		if tg.ID == "" {
			taggingID, err := id.Generate(id.PrefixTagging)
			if err != nil {
				return err
			}
			tg.ID = taggingID
		}
		if tg.CreatedAt.IsZero() {
			// Distinct timestamps within a batch keep the oldest-first
			// sort stable in submission order.
			tg.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, tg := range taggings {
			// Referenced tag must exist.
			if _, err := txn.Get([]byte(tagPrefix + tg.TagID)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return ErrTagNotFound
				}
				return err
			}

			data, err := json.Marshal(tg)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(taggingPrefix+tg.ID), data); err != nil {
				return err
			}
			if err := txn.Set(taggingEntityKey(tg.EntityType, tg.EntityID, tg.ID), []byte{}); err != nil {
				return err
			}
			if err := txn.Set([]byte(taggingsByTagPrefix+tg.TagID+":"+tg.ID), []byte{}); err != nil {
				return err
			}
			if err := s.updateTagUsageInTxn(txn, tg.TagID, 1); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListTaggingsForEntity returns all taggings on an entity, oldest first.
func (s *Store) ListTaggingsForEntity(ctx context.Context, entityType, entityID string) ([]*domain.Tagging, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("%s%s:%s:", taggingsByEntityPrefix, entityType, entityID)
	taggingIDs, err := s.collectSuffixes(prefix)
	if err != nil {
		return nil, err
	}

	taggings := make([]*domain.Tagging, 0, len(taggingIDs))
	for _, taggingID := range taggingIDs {
		var tg domain.Tagging
		if err := s.get([]byte(taggingPrefix+taggingID), &tg); err != nil {
			continue
		}
		taggings = append(taggings, &tg)
	}

	sort.SliceStable(taggings, func(i, j int) bool {
		return taggings[i].CreatedAt.Before(taggings[j].CreatedAt)
	})

	return taggings, nil
}

// ListTaggingsForTag returns taggings referencing a tag, newest first.
// A non-positive limit returns everything.
func (s *Store) ListTaggingsForTag(ctx context.Context, tagID string, limit int) ([]*domain.Tagging, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("%s%s:", taggingsByTagPrefix, tagID)
	taggingIDs, err := s.collectSuffixes(prefix)
	if err != nil {
		return nil, err
	}

	taggings := make([]*domain.Tagging, 0, len(taggingIDs))
	for _, taggingID := range taggingIDs {
		var tg domain.Tagging
		if err := s.get([]byte(taggingPrefix+taggingID), &tg); err != nil {
			continue
		}
		taggings = append(taggings, &tg)
	}

	sort.SliceStable(taggings, func(i, j int) bool {
		return taggings[i].CreatedAt.After(taggings[j].CreatedAt)
	})

	if limit > 0 && len(taggings) > limit {
		taggings = taggings[:limit]
	}
	return taggings, nil
}

// CountTaggingsForTag counts taggings referencing a tag.
func (s *Store) CountTaggingsForTag(ctx context.Context, tagID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
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

	return count, err
}

// DeleteTaggingsForEntity removes all taggings on an entity, decrementing
// usage counts on the referenced tags. Returns the number removed.
func (s *Store) DeleteTaggingsForEntity(ctx context.Context, entityType, entityID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("%s%s:%s:", taggingsByEntityPrefix, entityType, entityID))

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		var taggingIDs []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			taggingIDs = append(taggingIDs, strings.TrimPrefix(key, string(prefix)))
		}
		it.Close()

		for _, taggingID := range taggingIDs {
			item, err := txn.Get([]byte(taggingPrefix + taggingID))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			var tg domain.Tagging
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &tg)
			}); err != nil {
				continue
			}

			if err := txn.Delete([]byte(taggingPrefix + taggingID)); err != nil {
				return err
			}
			if err := txn.Delete(taggingEntityKey(tg.EntityType, tg.EntityID, tg.ID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Delete([]byte(taggingsByTagPrefix + tg.TagID + ":" + tg.ID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := s.updateTagUsageInTxn(txn, tg.TagID, -1); err != nil && !errors.Is(err, ErrTagNotFound) {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// collectSuffixes gathers the trailing segment of every key under prefix.
func (s *Store) collectSuffixes(prefix string) ([]string, error) {
	var suffixes []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			key := string(it.Item().Key())
			suffixes = append(suffixes, strings.TrimPrefix(key, prefix))
		}
		return nil
	})

	return suffixes, err
}
