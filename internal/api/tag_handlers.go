package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/service"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags",
		Summary:     "Create tag",
		Description: "Finds or creates a tag with the given type and name",
		Tags:        []string{"Tags"},
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{slug}",
		Summary:     "Get tag",
		Description: "Returns a tag by slug, searching across types",
		Tags:        []string{"Tags"},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Delete tag",
		Description: "Soft-deletes a tag, hiding it from search while preserving taggings",
		Tags:        []string{"Tags"},
	}, s.handleDeleteTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "addTagAlias",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags/{id}/aliases",
		Summary:     "Add tag alias",
		Description: "Attaches an alternate spelling to a tag",
		Tags:        []string{"Tags"},
	}, s.handleAddAlias)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagAnalytics",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{slug}/analytics",
		Summary:     "Tag analytics",
		Description: "Usage metrics and lifecycle data for a tag",
		Tags:        []string{"Tags"},
	}, s.handleGetTagAnalytics)

	huma.Register(s.api, huma.Operation{
		OperationID: "rebuildSearchIndex",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/search/rebuild",
		Summary:     "Rebuild search index",
		Description: "Drops and repopulates the fuzzy search index from the store",
		Tags:        []string{"Admin"},
	}, s.handleRebuildIndex)
}

// === DTOs ===

// TagResponse contains tag data in API responses.
type TagResponse struct {
	ID         string    `json:"id" doc:"Tag ID"`
	Name       string    `json:"name" doc:"Display name"`
	Slug       string    `json:"slug" doc:"URL-safe slug, unique per type"`
	Type       string    `json:"type" doc:"Tag type"`
	Status     string    `json:"status" doc:"Lifecycle status"`
	UsageCount int       `json:"usage_count" doc:"Number of taggings"`
	CreatedAt  time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt  time.Time `json:"updated_at" doc:"Last update time"`
}

func toTagResponse(t *domain.Tag) TagResponse {
	return TagResponse{
		ID:         t.ID,
		Name:       t.Name,
		Slug:       t.Slug,
		Type:       string(t.Type),
		Status:     string(t.Status),
		UsageCount: t.UsageCount,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Type      string `json:"type" validate:"required,oneof=user entity topic collaborator location taxonomy" doc:"Tag type"`
	Name      string `json:"name" validate:"required,min=1,max=100" doc:"Tag name; the slug is derived from it"`
	CreatedBy string `json:"created_by,omitempty" validate:"omitempty,max=64" doc:"Acting user ID"`
}

// CreateTagInput wraps the create tag request for Huma.
type CreateTagInput struct {
	Body CreateTagRequest
}

// TagOutput wraps the tag response for Huma.
type TagOutput struct {
	Body TagResponse
}

// GetTagInput contains parameters for getting a tag.
type GetTagInput struct {
	Slug string `path:"slug" doc:"Tag slug"`
}

// DeleteTagInput contains parameters for deleting a tag.
type DeleteTagInput struct {
	ID string `path:"id" doc:"Tag ID"`
}

// AddAliasRequest is the request body for adding an alias.
type AddAliasRequest struct {
	Alias     string `json:"alias" validate:"required,min=1,max=100" doc:"Alternate spelling"`
	CreatedBy string `json:"created_by,omitempty" validate:"omitempty,max=64" doc:"Acting user ID"`
}

// AddAliasInput wraps the add alias request for Huma.
type AddAliasInput struct {
	ID   string `path:"id" doc:"Tag ID"`
	Body AddAliasRequest
}

// AliasResponse contains alias data in API responses.
type AliasResponse struct {
	ID        string    `json:"id" doc:"Alias ID"`
	TagID     string    `json:"tag_id" doc:"Owning tag ID"`
	Alias     string    `json:"alias" doc:"Alternate spelling"`
	AliasSlug string    `json:"alias_slug" doc:"Slugified form"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
}

// AliasOutput wraps the alias response for Huma.
type AliasOutput struct {
	Body AliasResponse
}

// GetTagAnalyticsInput contains parameters for tag analytics.
type GetTagAnalyticsInput struct {
	Slug string `path:"slug" doc:"Tag slug"`
}

// TagAnalyticsOutput wraps the analytics response for Huma.
type TagAnalyticsOutput struct {
	Body service.TagAnalytics
}

// RebuildIndexResponse reports an index rebuild.
type RebuildIndexResponse struct {
	Indexed int `json:"indexed" doc:"Number of tags reindexed"`
}

// RebuildIndexOutput wraps the rebuild response for Huma.
type RebuildIndexOutput struct {
	Body RebuildIndexResponse
}

// MessageResponse is a simple confirmation message.
type MessageResponse struct {
	Message string `json:"message" doc:"Confirmation message"`
}

// MessageOutput wraps a message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	if err := s.validate.Validate(input.Body); err != nil {
		return nil, err
	}

	t, err := s.services.Tag.FindOrCreate(ctx, domain.TagType(input.Body.Type), input.Body.Name, input.Body.CreatedBy)
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: toTagResponse(t)}, nil
}

func (s *Server) handleGetTag(ctx context.Context, input *GetTagInput) (*TagOutput, error) {
	t, err := s.services.Tag.GetBySlugAnyType(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	return &TagOutput{Body: toTagResponse(t)}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *DeleteTagInput) (*MessageOutput, error) {
	if err := s.services.Tag.SoftDelete(ctx, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Tag deleted"}}, nil
}

func (s *Server) handleAddAlias(ctx context.Context, input *AddAliasInput) (*AliasOutput, error) {
	if err := s.validate.Validate(input.Body); err != nil {
		return nil, err
	}

	a, err := s.services.Tag.AddAlias(ctx, input.ID, input.Body.Alias, input.Body.CreatedBy)
	if err != nil {
		return nil, err
	}

	return &AliasOutput{
		Body: AliasResponse{
			ID:        a.ID,
			TagID:     a.TagID,
			Alias:     a.Alias,
			AliasSlug: a.AliasSlug,
			CreatedAt: a.CreatedAt,
		},
	}, nil
}

func (s *Server) handleGetTagAnalytics(ctx context.Context, input *GetTagAnalyticsInput) (*TagAnalyticsOutput, error) {
	t, err := s.services.Tag.GetBySlugAnyType(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	analytics, err := s.services.Analytics.TagAnalytics(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	return &TagAnalyticsOutput{Body: *analytics}, nil
}

func (s *Server) handleRebuildIndex(ctx context.Context, _ *struct{}) (*RebuildIndexOutput, error) {
	indexed, err := s.services.Tag.RebuildIndex(ctx)
	if err != nil {
		return nil, err
	}

	return &RebuildIndexOutput{Body: RebuildIndexResponse{Indexed: indexed}}, nil
}
