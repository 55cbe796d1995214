// Package domain defines the core types for the Quill tagging system.
package domain

import "time"

// TagType classifies what a tag points at.
type TagType string

// Tag types.
const (
	TagTypeUser         TagType = "user"         // A member of the site
	TagTypeEntity       TagType = "entity"       // An author, book, group, or event
	TagTypeTopic        TagType = "topic"        // A free-form hashtag
	TagTypeCollaborator TagType = "collaborator" // A credited collaborator on shared content
	TagTypeLocation     TagType = "location"     // A place
	TagTypeTaxonomy     TagType = "taxonomy"     // A curated vocabulary term
)

// AllTagTypes lists every valid tag type.
//
//nolint:gochecknoglobals // Static vocabulary used for validation and cache keys
var AllTagTypes = []TagType{
	TagTypeUser, TagTypeEntity, TagTypeTopic,
	TagTypeCollaborator, TagTypeLocation, TagTypeTaxonomy,
}

// ValidTagType reports whether t is a known tag type.
func ValidTagType(t TagType) bool {
	for _, known := range AllTagTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TagStatus is the moderation lifecycle state of a tag.
type TagStatus string

// Tag statuses.
const (
	TagStatusActive  TagStatus = "active"
	TagStatusHidden  TagStatus = "hidden" // Moderated out of search, taggings preserved
	TagStatusPending TagStatus = "pending"
)

// EntityRef points a tag at the record it represents.
// Only user and entity tags carry a reference; topic, location, and
// taxonomy tags stand alone.
type EntityRef struct {
	EntityType string `json:"entity_type"` // "user", "author", "book", "group", "event"
	EntityID   string `json:"entity_id"`
}

// Tag is a searchable label: a user mention target, a linked entity, a
// hashtag topic, a location, or a taxonomy term.
// Slug is unique per type among non-deleted tags.
type Tag struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Slug   string    `json:"slug"`
	Type   TagType   `json:"type"`
	Status TagStatus `json:"status"`

	// Ref links user/entity tags to the row they represent; nil otherwise.
	Ref *EntityRef `json:"ref,omitempty"`
	// Permalink is the canonical URL path segment, kept for user tags whose
	// handles may contain characters the slug normalizer strips.
	Permalink string `json:"permalink,omitempty"`

	UsageCount int    `json:"usage_count"`
	CreatedBy  string `json:"created_by,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsActive reports whether the tag may appear in search results.
func (t *Tag) IsActive() bool {
	return t.Status == TagStatusActive && t.DeletedAt == nil
}

// Touch updates the UpdatedAt timestamp.
func (t *Tag) Touch() {
	t.UpdatedAt = time.Now()
}

// AgeDays returns the tag's age in fractional days at the given instant.
// Used by the relevance scorer's recency bonus.
func (t *Tag) AgeDays(now time.Time) float64 {
	return now.Sub(t.CreatedAt).Hours() / 24
}
