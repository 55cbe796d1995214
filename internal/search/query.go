package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Candidate is one fuzzy match from the index, carrying the score
// normalized against the best hit of the same query.
type Candidate struct {
	TagID string
	Score float64 // 0..1, relative to the top hit
}

// FuzzyParams configures a fuzzy candidate lookup.
type FuzzyParams struct {
	Query     string
	Types     []string // Tag types to include (empty = all)
	Limit     int
	Threshold float64 // Minimum normalized score to keep a candidate
}

// FuzzyCandidates returns tag IDs whose name, slug, or aliases approximately
// match the query. Hits scoring below the threshold relative to the best hit
// are dropped.
func (s *TagIndex) FuzzyCandidates(ctx context.Context, params FuzzyParams) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildFuzzyQuery(params)

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	// Over-fetch so threshold filtering still leaves enough candidates.
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, limit*2, 0, false)
	searchRequest.Fields = []string{"id"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute fuzzy search: %w", err)
	}

	if len(searchResult.Hits) == 0 {
		return nil, nil
	}

	topScore := searchResult.Hits[0].Score
	if topScore <= 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		normalized := hit.Score / topScore
		if normalized < params.Threshold {
			continue
		}
		candidates = append(candidates, Candidate{TagID: hit.ID, Score: normalized})
		if len(candidates) >= limit {
			break
		}
	}

	return candidates, nil
}

// buildFuzzyQuery constructs the Bleve query for candidate lookup.
func buildFuzzyQuery(params FuzzyParams) query.Query {
	var queries []query.Query

	lowered := strings.ToLower(params.Query)
	textQueries := []query.Query{}

	// Exact-ish name match with highest boost
	nameMatch := bleve.NewMatchQuery(params.Query)
	nameMatch.SetField("name")
	nameMatch.SetBoost(3.0)
	textQueries = append(textQueries, nameMatch)

	// Alias match
	aliasMatch := bleve.NewMatchQuery(params.Query)
	aliasMatch.SetField("aliases")
	aliasMatch.SetBoost(1.5)
	textQueries = append(textQueries, aliasMatch)

	// Fuzzy matching for typo tolerance on name
	fuzzyQuery := bleve.NewFuzzyQuery(lowered)
	fuzzyQuery.SetFuzziness(1)
	fuzzyQuery.SetField("name")
	fuzzyQuery.SetBoost(0.8)
	textQueries = append(textQueries, fuzzyQuery)

	// Prefix queries for autocomplete
	namePrefix := bleve.NewPrefixQuery(lowered)
	namePrefix.SetField("name")
	namePrefix.SetBoost(0.5)
	textQueries = append(textQueries, namePrefix)

	slugPrefix := bleve.NewPrefixQuery(lowered)
	slugPrefix.SetField("slug")
	slugPrefix.SetBoost(0.5)
	textQueries = append(textQueries, slugPrefix)

	// Combine with OR (match any field)
	queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))

	// Type filter
	if len(params.Types) > 0 {
		typeQueries := make([]query.Query, len(params.Types))
		for i, t := range params.Types {
			tq := bleve.NewTermQuery(t)
			tq.SetField("type")
			typeQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(typeQueries...))
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}
