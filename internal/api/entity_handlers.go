package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/errors"
)

func (s *Server) registerEntityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "upsertEntity",
		Method:      http.MethodPut,
		Path:        "/api/v1/entities/{type}/{id}",
		Summary:     "Upsert display entity",
		Description: "Stores the display projection of a user, author, book, group, or event and keeps its tag searchable",
		Tags:        []string{"Entities"},
	}, s.handleUpsertEntity)
}

// === DTOs ===

// UpsertEntityInput contains the entity projection to store.
type UpsertEntityInput struct {
	Type string `path:"type" doc:"Entity type (user, author, book, group, event)"`
	ID   string `path:"id" doc:"Entity ID in the system of record"`
	Body UpsertEntityRequest
}

// UpsertEntityRequest is the display projection payload.
type UpsertEntityRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=200" doc:"Display name, or title for books and events"`
	Handle    string `json:"handle,omitempty" validate:"omitempty,max=64" doc:"User handle; required for user entities"`
	Permalink string `json:"permalink,omitempty" validate:"omitempty,max=200" doc:"Canonical page path"`
	AvatarURL string `json:"avatar_url,omitempty" validate:"omitempty,max=500" doc:"Avatar image URL (users only)"`
}

// UpsertEntityResponse echoes what was stored.
type UpsertEntityResponse struct {
	EntityType string `json:"entity_type" doc:"Entity type"`
	EntityID   string `json:"entity_id" doc:"Entity ID"`
	TagID      string `json:"tag_id" doc:"Tag that resolves to this entity in search"`
}

// UpsertEntityOutput wraps the upsert response for Huma.
type UpsertEntityOutput struct {
	Body UpsertEntityResponse
}

// === Handlers ===

func (s *Server) handleUpsertEntity(ctx context.Context, input *UpsertEntityInput) (*UpsertEntityOutput, error) {
	if err := s.validate.Validate(input.Body); err != nil {
		return nil, err
	}

	now := time.Now()
	var err error
	switch input.Type {
	case "user":
		if input.Body.Handle == "" {
			return nil, errors.Validation("handle is required for user entities")
		}
		err = s.store.PutUserProfile(ctx, &domain.UserProfile{
			UserID:    input.ID,
			Name:      input.Body.Name,
			Handle:    input.Body.Handle,
			AvatarURL: input.Body.AvatarURL,
			UpdatedAt: now,
		})
	case "author":
		err = s.store.PutAuthor(ctx, &domain.Author{
			ID:        input.ID,
			Name:      input.Body.Name,
			Permalink: input.Body.Permalink,
			UpdatedAt: now,
		})
	case "book":
		err = s.store.PutBook(ctx, &domain.Book{
			ID:        input.ID,
			Title:     input.Body.Name,
			Permalink: input.Body.Permalink,
			UpdatedAt: now,
		})
	case "group":
		err = s.store.PutGroup(ctx, &domain.Group{
			ID:        input.ID,
			Name:      input.Body.Name,
			Permalink: input.Body.Permalink,
			UpdatedAt: now,
		})
	case "event":
		err = s.store.PutEvent(ctx, &domain.Event{
			ID:        input.ID,
			Title:     input.Body.Name,
			Permalink: input.Body.Permalink,
			UpdatedAt: now,
		})
	default:
		return nil, huma.Error400BadRequest("unknown entity type: " + input.Type)
	}
	if err != nil {
		return nil, err
	}

	t, err := s.services.Tag.EnsureEntityTag(ctx, input.Type, input.ID, input.Body.Name, input.Body.Handle)
	if err != nil {
		return nil, err
	}

	// Cached results may hold the entity's old display name.
	s.services.Search.InvalidateSearchCache()

	return &UpsertEntityOutput{
		Body: UpsertEntityResponse{
			EntityType: input.Type,
			EntityID:   input.ID,
			TagID:      t.ID,
		},
	}, nil
}
