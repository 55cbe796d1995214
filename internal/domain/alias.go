package domain

import "time"

// TagAlias maps an alternate spelling or former name to an existing tag.
// Example: "sci fi" -> the "science-fiction" topic tag.
// Multiple aliases may point at one tag; an alias never outlives its tag.
type TagAlias struct {
	ID        string    `json:"id"`
	TagID     string    `json:"tag_id"`
	Alias     string    `json:"alias"`      // Original alternate text
	AliasSlug string    `json:"alias_slug"` // Slugified form, matched alongside Alias
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
