package domain

import "time"

// TagContext identifies the kind of content a tagging was made in.
type TagContext string

// Tagging contexts.
const (
	ContextPost     TagContext = "post"
	ContextComment  TagContext = "comment"
	ContextProfile  TagContext = "profile"
	ContextMessage  TagContext = "message"
	ContextPhoto    TagContext = "photo"
	ContextActivity TagContext = "activity"
)

// ValidTagContext reports whether c is a known tagging context.
func ValidTagContext(c TagContext) bool {
	switch c {
	case ContextPost, ContextComment, ContextProfile, ContextMessage, ContextPhoto, ContextActivity:
		return true
	}
	return false
}

// Position is a half-open character range [Start, End) locating an inline
// mention or hashtag within its source text.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Tagging associates a tag with a piece of content.
// Many taggings may reference one tag. The owning content item is managed
// elsewhere; callers delete an entity's taggings when the content goes away.
type Tagging struct {
	ID         string     `json:"id"`
	TagID      string     `json:"tag_id"`
	EntityType string     `json:"entity_type"` // Kind of content tagged, e.g. "post"
	EntityID   string     `json:"entity_id"`
	Context    TagContext `json:"context"`
	Position   *Position  `json:"position,omitempty"` // Inline offset, when parsed from text
	TaggedBy   string     `json:"tagged_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// EntityTag pairs a tagging with its resolved tag, the shape callers want
// when listing what a piece of content is tagged with.
type EntityTag struct {
	Tagging *Tagging `json:"tagging"`
	Tag     *Tag     `json:"tag"`
}
