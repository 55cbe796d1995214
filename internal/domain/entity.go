package domain

import "time"

// Display records for the rows tags can reference. Search enrichment reads
// these to replace a tag's stored name with the live display name of the
// thing it points at. They are denormalized projections — the systems of
// record for users, authors, books, groups, and events live elsewhere.

// UserProfile is the display projection of a site member.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Handle    string    `json:"handle"` // Shown as @handle in suggestions
	AvatarURL string    `json:"avatar_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Author is the display projection of an author page.
type Author struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Permalink string    `json:"permalink,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Book is the display projection of a book page.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Permalink string    `json:"permalink,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Group is the display projection of a reading group.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Permalink string    `json:"permalink,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is the display projection of a community event.
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Permalink string    `json:"permalink,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
