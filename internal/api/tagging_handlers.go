package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/service"
)

func (s *Server) registerTaggingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createTaggings",
		Method:      http.MethodPost,
		Path:        "/api/v1/taggings",
		Summary:     "Create taggings",
		Description: "Applies tags to content, from explicit tag IDs and/or parsed @mentions and #hashtags",
		Tags:        []string{"Taggings"},
	}, s.handleCreateTaggings)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTaggings",
		Method:      http.MethodGet,
		Path:        "/api/v1/taggings",
		Summary:     "List taggings",
		Description: "Returns the tags applied to a piece of content",
		Tags:        []string{"Taggings"},
	}, s.handleListTaggings)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTaggings",
		Method:      http.MethodDelete,
		Path:        "/api/v1/taggings",
		Summary:     "Delete taggings",
		Description: "Removes every tagging on a piece of content",
		Tags:        []string{"Taggings"},
	}, s.handleDeleteTaggings)
}

// === DTOs ===

// ExplicitTag is one pre-resolved tag to apply.
type ExplicitTag struct {
	TagID string `json:"tag_id" validate:"required" doc:"Tag ID"`
	Start *int   `json:"start,omitempty" doc:"Inline start offset in runes"`
	End   *int   `json:"end,omitempty" doc:"Inline end offset in runes"`
}

// CreateTaggingsRequest is the request body for creating taggings.
type CreateTaggingsRequest struct {
	EntityType string        `json:"entity_type" validate:"required,min=1,max=32" doc:"Kind of content being tagged"`
	EntityID   string        `json:"entity_id" validate:"required,min=1,max=64" doc:"Content ID"`
	Context    string        `json:"context" validate:"required,oneof=post comment profile message photo activity" doc:"Where the tagging happened"`
	TaggedBy   string        `json:"tagged_by" validate:"required,min=1,max=64" doc:"Acting user ID"`
	Content    string        `json:"content,omitempty" validate:"omitempty,max=10000" doc:"Free text to parse for @mentions and #hashtags"`
	Tags       []ExplicitTag `json:"tags,omitempty" validate:"omitempty,max=50,dive" doc:"Explicit tags to apply"`
}

// CreateTaggingsInput wraps the create taggings request for Huma.
type CreateTaggingsInput struct {
	Body CreateTaggingsRequest
}

// CreateTaggingsResponse reports how many taggings were created.
type CreateTaggingsResponse struct {
	Created int `json:"created" doc:"Number of taggings created"`
}

// CreateTaggingsOutput wraps the create taggings response for Huma.
type CreateTaggingsOutput struct {
	Body CreateTaggingsResponse
}

// ListTaggingsInput contains parameters for listing taggings.
type ListTaggingsInput struct {
	EntityType string `query:"entity_type" required:"true" doc:"Kind of content"`
	EntityID   string `query:"entity_id" required:"true" doc:"Content ID"`
	Context    string `query:"context" doc:"Only taggings from this context"`
}

// TaggingResponse contains one tagging with its resolved tag.
type TaggingResponse struct {
	ID        string           `json:"id" doc:"Tagging ID"`
	Context   string           `json:"context" doc:"Where the tagging happened"`
	Position  *domain.Position `json:"position,omitempty" doc:"Inline offset, when parsed from text"`
	TaggedBy  string           `json:"tagged_by,omitempty" doc:"Acting user ID"`
	CreatedAt time.Time        `json:"created_at" doc:"Creation time"`
	Tag       TagResponse      `json:"tag" doc:"The applied tag"`
}

// ListTaggingsResponse contains a content item's taggings.
type ListTaggingsResponse struct {
	Taggings []TaggingResponse `json:"taggings" doc:"Taggings, oldest first"`
}

// ListTaggingsOutput wraps the list taggings response for Huma.
type ListTaggingsOutput struct {
	Body ListTaggingsResponse
}

// DeleteTaggingsInput contains parameters for deleting taggings.
type DeleteTaggingsInput struct {
	EntityType string `query:"entity_type" required:"true" doc:"Kind of content"`
	EntityID   string `query:"entity_id" required:"true" doc:"Content ID"`
}

// DeleteTaggingsResponse reports how many taggings were removed.
type DeleteTaggingsResponse struct {
	Removed int `json:"removed" doc:"Number of taggings removed"`
}

// DeleteTaggingsOutput wraps the delete taggings response for Huma.
type DeleteTaggingsOutput struct {
	Body DeleteTaggingsResponse
}

// === Handlers ===

func (s *Server) handleCreateTaggings(ctx context.Context, input *CreateTaggingsInput) (*CreateTaggingsOutput, error) {
	if err := s.validate.Validate(input.Body); err != nil {
		return nil, err
	}

	req := input.Body
	tagContext := domain.TagContext(req.Context)
	created := 0

	if len(req.Tags) > 0 {
		inputs := make([]service.TaggingInput, 0, len(req.Tags))
		for _, et := range req.Tags {
			in := service.TaggingInput{
				TagID:      et.TagID,
				EntityType: req.EntityType,
				EntityID:   req.EntityID,
				Context:    tagContext,
			}
			if et.Start != nil && et.End != nil {
				in.Position = &domain.Position{Start: *et.Start, End: *et.End}
			}
			inputs = append(inputs, in)
		}

		taggings, err := s.services.Tag.CreateTaggings(ctx, req.TaggedBy, inputs)
		if err != nil {
			return nil, err
		}
		created += len(taggings)
	}

	if req.Content != "" {
		taggings, err := s.services.Tag.TagContent(ctx, req.TaggedBy, req.EntityType, req.EntityID, tagContext, req.Content)
		if err != nil {
			return nil, err
		}
		created += len(taggings)
	}

	return &CreateTaggingsOutput{Body: CreateTaggingsResponse{Created: created}}, nil
}

func (s *Server) handleListTaggings(ctx context.Context, input *ListTaggingsInput) (*ListTaggingsOutput, error) {
	entityTags, err := s.services.Tag.ListEntityTags(ctx, input.EntityType, input.EntityID)
	if err != nil {
		return nil, err
	}

	resp := make([]TaggingResponse, 0, len(entityTags))
	for _, et := range entityTags {
		if input.Context != "" && string(et.Tagging.Context) != input.Context {
			continue
		}
		resp = append(resp, TaggingResponse{
			ID:        et.Tagging.ID,
			Context:   string(et.Tagging.Context),
			Position:  et.Tagging.Position,
			TaggedBy:  et.Tagging.TaggedBy,
			CreatedAt: et.Tagging.CreatedAt,
			Tag:       toTagResponse(et.Tag),
		})
	}

	return &ListTaggingsOutput{Body: ListTaggingsResponse{Taggings: resp}}, nil
}

func (s *Server) handleDeleteTaggings(ctx context.Context, input *DeleteTaggingsInput) (*DeleteTaggingsOutput, error) {
	removed, err := s.services.Tag.RemoveEntityTaggings(ctx, input.EntityType, input.EntityID)
	if err != nil {
		return nil, err
	}

	return &DeleteTaggingsOutput{Body: DeleteTaggingsResponse{Removed: removed}}, nil
}
