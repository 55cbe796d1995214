package service

import (
	"strings"
	"time"

	"github.com/quillapp/quill-server/internal/domain"
)

// Relevance scoring weights. The final score is an open-ended sum; each
// component is individually capped.
const (
	popularityWeight   = 40.0
	popularitySaturate = 100 // Usage count at which popularity maxes out

	exactMatchBonus     = 30.0
	prefixMatchBonus    = 20.0
	substringMatchBonus = 10.0

	recencyWeight   = 20.0
	recencyWindow   = 30 // Days during which a tag counts as fresh
	similarityScale = 10.0
)

// RelevanceScore ranks a tag against a normalized (trimmed, lower-cased)
// query. Higher is more relevant. Only the normalized form is taken: every
// component compares against lower-cased names and slugs, so the raw query
// would never influence the score.
func RelevanceScore(t *domain.Tag, normalizedQuery string, now time.Time) float64 {
	score := 0.0

	// Popularity, saturating at popularitySaturate uses.
	usage := float64(t.UsageCount) / popularitySaturate
	if usage > 1 {
		usage = 1
	}
	score += usage * popularityWeight

	// Match quality on name or slug; first match wins.
	nameLower := strings.ToLower(t.Name)
	switch {
	case nameLower == normalizedQuery || t.Slug == normalizedQuery:
		score += exactMatchBonus
	case strings.HasPrefix(nameLower, normalizedQuery) || strings.HasPrefix(t.Slug, normalizedQuery):
		score += prefixMatchBonus
	case strings.Contains(nameLower, normalizedQuery) || strings.Contains(t.Slug, normalizedQuery):
		score += substringMatchBonus
	}

	// Recency, fading linearly over the freshness window.
	if age := t.AgeDays(now); age < recencyWindow {
		score += (1 - age/recencyWindow) * recencyWeight
	}

	// Fuzzy nudge from whichever of name or slug is closer to the query.
	nameSim := Similarity(nameLower, normalizedQuery)
	slugSim := Similarity(t.Slug, normalizedQuery)
	if slugSim > nameSim {
		nameSim = slugSim
	}
	score += nameSim * similarityScale

	return score
}
