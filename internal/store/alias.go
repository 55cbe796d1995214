package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/id"
)

// Key prefixes for alias storage.
const (
	aliasPrefix       = "alias:"            // alias:{id} → TagAlias JSON
	aliasByTagPrefix  = "idx:aliases:tag:"  // idx:aliases:tag:{tagID}:{aliasID} → empty
	aliasUniquePrefix = "idx:aliases:slug:" // idx:aliases:slug:{tagID}:{aliasSlug} → aliasID
)

func aliasUniqueKey(tagID, aliasSlug string) []byte {
	return []byte(aliasUniquePrefix + tagID + ":" + aliasSlug)
}

// CreateAlias adds an alternate searchable name to a tag. The alias slug
// must be unique within the tag.
func (s *Store) CreateAlias(ctx context.Context, tagID, alias, aliasSlug, createdBy string) (*domain.TagAlias, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aliasID, err := id.Generate(id.PrefixAlias)
	if err != nil {
		return nil, err
	}

	a := &domain.TagAlias{
		ID:        aliasID,
		TagID:     tagID,
		Alias:     alias,
		AliasSlug: aliasSlug,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		// Owning tag must exist.
		if _, err := txn.Get([]byte(tagPrefix + tagID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrTagNotFound
			}
			return err
		}

		uniqueKey := aliasUniqueKey(tagID, aliasSlug)
		if _, err := txn.Get(uniqueKey); err == nil {
			return ErrAliasExists
		}

		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(aliasPrefix+aliasID), data); err != nil {
			return err
		}
		if err := txn.Set(uniqueKey, []byte(aliasID)); err != nil {
			return err
		}
		return txn.Set([]byte(aliasByTagPrefix+tagID+":"+aliasID), []byte{})
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

// ListAliasesForTag returns all aliases attached to a tag.
func (s *Store) ListAliasesForTag(ctx context.Context, tagID string) ([]*domain.TagAlias, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("%s%s:", aliasByTagPrefix, tagID)
	var aliasIDs []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			key := string(it.Item().Key())
			aliasIDs = append(aliasIDs, strings.TrimPrefix(key, prefix))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	aliases := make([]*domain.TagAlias, 0, len(aliasIDs))
	for _, aliasID := range aliasIDs {
		var a domain.TagAlias
		if err := s.get([]byte(aliasPrefix+aliasID), &a); err != nil {
			continue // Skip missing aliases.
		}
		aliases = append(aliases, &a)
	}

	return aliases, nil
}

// FindTagsByAlias returns active tags reachable through an alias whose text
// or slug contains the query, case-insensitively. Each tag appears once.
func (s *Store) FindTagsByAlias(ctx context.Context, query string, types []domain.TagType, limit int) ([]*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	wanted := typeSet(types)

	var tagIDs []string
	seen := make(map[string]bool)

	prefix := []byte(aliasPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchSize = 100

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var a domain.TagAlias
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			})
			if err != nil {
				continue
			}
			if !strings.Contains(strings.ToLower(a.Alias), query) && !strings.Contains(a.AliasSlug, query) {
				continue
			}
			if !seen[a.TagID] {
				seen[a.TagID] = true
				tagIDs = append(tagIDs, a.TagID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tags := make([]*domain.Tag, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		t, err := s.GetTagByID(ctx, tagID)
		if err != nil {
			continue // Skip dangling aliases.
		}
		if !t.IsActive() {
			continue
		}
		if wanted != nil && !wanted[t.Type] {
			continue
		}
		tags = append(tags, t)
	}

	sortTagsByUsage(tags)
	return truncateTags(tags, limit), nil
}

// deleteAliasesForTagInTxn removes all alias records and indexes for a tag
// within an existing transaction.
func (s *Store) deleteAliasesForTagInTxn(txn *badger.Txn, tagID string) error {
	prefix := []byte(fmt.Sprintf("%s%s:", aliasByTagPrefix, tagID))

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var keysToDelete [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keyCopy := make([]byte, len(it.Item().Key()))
		copy(keyCopy, it.Item().Key())
		keysToDelete = append(keysToDelete, keyCopy)

		aliasID := strings.TrimPrefix(string(keyCopy), string(prefix))
		keysToDelete = append(keysToDelete, []byte(aliasPrefix+aliasID))

		// The unique index needs the alias slug, which lives on the record.
		item, err := txn.Get([]byte(aliasPrefix + aliasID))
		if err != nil {
			continue
		}
		var a domain.TagAlias
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		}); err != nil {
			continue
		}
		keysToDelete = append(keysToDelete, aliasUniqueKey(tagID, a.AliasSlug))
	}

	for _, k := range keysToDelete {
		if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
	}

	return nil
}

// DeleteAliasesForTag removes all aliases for a tag.
func (s *Store) DeleteAliasesForTag(ctx context.Context, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return s.deleteAliasesForTagInTxn(txn, tagID)
	})
}
