package service

import "strings"

// Similarity computes a cheap 0..1 overlap score between two strings.
// It is case-sensitive; callers lower-case first.
//
// The two inputs are ordered by length (ties keep input order). An empty
// longer string scores 1.0. When the shorter string appears verbatim inside
// the longer, the score is len(shorter)/len(longer). Otherwise it is the
// fraction of the shorter string's characters that appear anywhere in the
// longer one.
//
// This is deliberately not edit distance: it is order-insensitive and can
// overestimate similarity for anagram-like strings. It exists to cheaply
// nudge ranking, not to measure true string distance.
func Similarity(a, b string) float64 {
	longer, shorter := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}

	if len(longer) == 0 {
		return 1.0
	}

	if strings.Contains(string(longer), string(shorter)) {
		return float64(len(shorter)) / float64(len(longer))
	}

	present := make(map[rune]bool, len(longer))
	for _, r := range longer {
		present[r] = true
	}

	matched := 0
	for _, r := range shorter {
		if present[r] {
			matched++
		}
	}

	return float64(matched) / float64(len(shorter))
}
