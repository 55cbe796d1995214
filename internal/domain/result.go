package domain

// SearchResult is one ranked hit from tag search, enriched with display
// fields resolved from the referenced entity where one exists.
type SearchResult struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Slug       string     `json:"slug"`
	Type       TagType    `json:"type"`
	AvatarURL  string     `json:"avatar_url,omitempty"`
	Sublabel   string     `json:"sublabel,omitempty"` // "@handle", "Author", "Book", ...
	Ref        *EntityRef `json:"ref,omitempty"`
	UsageCount int        `json:"usage_count"`
}
