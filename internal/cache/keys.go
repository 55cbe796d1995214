package cache

import (
	"sort"
	"strconv"
	"strings"
)

// Key prefixes group cache entries so they can be invalidated together
// with Clear.
const (
	searchKeyPrefix  = "tag-search"
	topTagsKeyPrefix = "top-tags"
)

// SearchKey builds a deterministic cache key for a tag search. The type
// list is sorted so equivalent requests share an entry; an empty list
// means all types.
func SearchKey(query string, types []string, limit int) string {
	return searchKeyPrefix + ":" + query + ":" + typesSegment(types) + ":" + strconv.Itoa(limit)
}

// TopTagsKey builds a deterministic cache key for a top-tags listing.
func TopTagsKey(types []string, limit int) string {
	return topTagsKeyPrefix + ":" + typesSegment(types) + ":" + strconv.Itoa(limit)
}

func typesSegment(types []string) string {
	if len(types) == 0 {
		return "all"
	}
	sorted := make([]string, len(types))
	copy(sorted, types)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
