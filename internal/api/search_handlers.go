package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillapp/quill-server/internal/domain"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/search",
		Summary:     "Search tags",
		Description: "Ranked tag suggestions for a free-text query, suitable for typeahead",
		Tags:        []string{"Search"},
	}, s.handleSearchTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "topTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/top",
		Summary:     "Top tags",
		Description: "Most used tags, optionally filtered by type",
		Tags:        []string{"Search"},
	}, s.handleTopTags)
}

// === DTOs ===

// SearchTagsInput contains parameters for tag search.
type SearchTagsInput struct {
	Query string `query:"q" doc:"Search query"`
	Types string `query:"types" doc:"Comma-separated tag types to include (user,entity,topic,collaborator,location,taxonomy). Omit for all."`
	Limit int    `query:"limit" doc:"Maximum results (default 20)"`
}

// SearchTagsResponse contains ranked tag results.
type SearchTagsResponse struct {
	Query   string                `json:"query" doc:"Normalized query"`
	Results []domain.SearchResult `json:"results" doc:"Ranked results"`
}

// SearchTagsOutput wraps the search response for Huma.
type SearchTagsOutput struct {
	Body SearchTagsResponse
}

// TopTagsInput contains parameters for the top tags listing.
type TopTagsInput struct {
	Types string `query:"types" doc:"Comma-separated tag types to include. Omit for all."`
	Limit int    `query:"limit" doc:"Maximum results (default 20)"`
}

// TopTagsResponse contains the most used tags.
type TopTagsResponse struct {
	Results []domain.SearchResult `json:"results" doc:"Tags ordered by usage"`
}

// TopTagsOutput wraps the top tags response for Huma.
type TopTagsOutput struct {
	Body TopTagsResponse
}

// === Handlers ===

func (s *Server) handleSearchTags(ctx context.Context, input *SearchTagsInput) (*SearchTagsOutput, error) {
	types, err := parseTagTypes(input.Types)
	if err != nil {
		return nil, err
	}

	results := s.services.Search.SearchTags(ctx, input.Query, types, input.Limit)

	return &SearchTagsOutput{
		Body: SearchTagsResponse{
			Query:   strings.ToLower(strings.TrimSpace(input.Query)),
			Results: results,
		},
	}, nil
}

func (s *Server) handleTopTags(ctx context.Context, input *TopTagsInput) (*TopTagsOutput, error) {
	types, err := parseTagTypes(input.Types)
	if err != nil {
		return nil, err
	}

	results := s.services.Search.TopTags(ctx, types, input.Limit)

	return &TopTagsOutput{Body: TopTagsResponse{Results: results}}, nil
}

// parseTagTypes converts a comma-separated type list to tag types,
// rejecting unknown values.
func parseTagTypes(raw string) ([]domain.TagType, error) {
	if raw == "" {
		return nil, nil
	}

	var types []domain.TagType
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t := domain.TagType(part)
		if !domain.ValidTagType(t) {
			return nil, huma.Error400BadRequest("unknown tag type: " + part)
		}
		types = append(types, t)
	}
	return types, nil
}
