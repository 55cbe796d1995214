// Package util provides common utility functions.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches spaces, underscores, and slashes (for replacement with dashes).
	wordSeparatorRe = regexp.MustCompile(`[\s_/]+`)
	// Matches non-alphanumeric characters (except dashes).
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9-]`)
	// Like nonAlphanumericRe but keeps dots, for user handles.
	nonHandleRe = regexp.MustCompile(`[^a-z0-9.-]`)
	// Matches multiple consecutive dashes.
	multipleDashRe = regexp.MustCompile(`-+`)
)

// NormalizeTagSlug converts user input to a canonical tag slug.
// The slug identifies a tag within its type.
//
// Normalization rules:
//  1. NFKD-decompose and drop non-ASCII runes ("café" → "cafe")
//  2. Trim whitespace and lowercase
//  3. Replace spaces, underscores, and slashes with dashes
//  4. Remove remaining non-alphanumeric characters (except dashes)
//  5. Collapse multiple dashes, trim leading/trailing dashes
//
// Examples:
//
//	"Slow Burn"    → "slow-burn"
//	"Sci-Fi/Fantasy" → "sci-fi-fantasy"
//	"🏷️ Tagged!"   → "tagged"
//	"  multi   word " → "multi-word"
func NormalizeTagSlug(input string) string {
	s := asciiFold(input)
	s = strings.ToLower(strings.TrimSpace(s))
	s = wordSeparatorRe.ReplaceAllString(s, "-")
	s = nonAlphanumericRe.ReplaceAllString(s, "")
	s = multipleDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeUserSlug is NormalizeTagSlug for user handles: dots survive
// because permalinks like "j.r.tolkien.fan" are legal handles.
func NormalizeUserSlug(input string) string {
	s := asciiFold(input)
	s = strings.ToLower(strings.TrimSpace(s))
	s = wordSeparatorRe.ReplaceAllString(s, "-")
	s = nonHandleRe.ReplaceAllString(s, "")
	s = multipleDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-.")
}

// asciiFold decomposes accented characters and drops anything left outside
// ASCII, so "Brontë" survives normalization as "bronte" instead of "bront".
func asciiFold(s string) string {
	s = norm.NFKD.String(s)
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
}
