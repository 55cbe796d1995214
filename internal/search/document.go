// Package search provides fuzzy tag lookup using Bleve. It is the
// typo-tolerant candidate source for tag search; exact and substring
// matching happen against the store.
package search

import (
	"github.com/quillapp/quill-server/internal/domain"
)

// TagDocument is the Bleve document for one searchable tag.
type TagDocument struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	Type       string   `json:"type"`
	Aliases    []string `json:"aliases,omitempty"` // Alias texts and slugs, flattened
	UsageCount int      `json:"usage_count"`
	UpdatedAt  int64    `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *TagDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":          d.ID,
		"name":        d.Name,
		"slug":        d.Slug,
		"type":        d.Type,
		"usage_count": d.UsageCount,
		"updated_at":  d.UpdatedAt,
	}
	if len(d.Aliases) > 0 {
		m["aliases"] = d.Aliases
	}
	return m
}

// TagToDocument converts a domain Tag and its aliases to a TagDocument.
// The alias list is provided by the caller, as the search package shouldn't
// depend on store.
func TagToDocument(t *domain.Tag, aliases []*domain.TagAlias) *TagDocument {
	doc := &TagDocument{
		ID:         t.ID,
		Name:       t.Name,
		Slug:       t.Slug,
		Type:       string(t.Type),
		UsageCount: t.UsageCount,
		UpdatedAt:  t.UpdatedAt.UnixMilli(),
	}
	for _, a := range aliases {
		doc.Aliases = append(doc.Aliases, a.Alias)
		if a.AliasSlug != a.Alias {
			doc.Aliases = append(doc.Aliases, a.AliasSlug)
		}
	}
	return doc
}
