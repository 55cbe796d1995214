// Package tagparse extracts inline @mentions and #hashtags from user text,
// recording where in the text each one sits so clients can decorate it.
package tagparse

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/quillapp/quill-server/internal/domain"
)

// Handles allow letters, digits, dots, underscores, and hyphens, but may not
// end with a dot. Hashtags allow unicode letters, digits, underscores, and
// hyphens.
var (
	mentionRe = regexp.MustCompile(`(^|[^\w@])@([a-zA-Z0-9][a-zA-Z0-9._-]*)`)
	hashtagRe = regexp.MustCompile(`(^|[^\w#&])#([\p{L}0-9][\p{L}0-9_-]*)`)
)

// Mention is one @handle reference found in text.
type Mention struct {
	Handle   string          // Without the @ sigil
	Position domain.Position // Rune offsets covering "@handle"
}

// Hashtag is one #topic reference found in text.
type Hashtag struct {
	Text     string          // Without the # sigil
	Position domain.Position // Rune offsets covering "#topic"
}

// Extraction holds everything parsed from one piece of text.
type Extraction struct {
	Mentions []Mention
	Hashtags []Hashtag
}

// Parse scans text for mentions and hashtags. Positions are rune offsets,
// half-open, covering the sigil and the token.
func Parse(text string) Extraction {
	var ex Extraction

	for _, m := range mentionRe.FindAllStringSubmatchIndex(text, -1) {
		// Group 2 is the handle; the sigil sits one byte before it.
		start, end := m[4], m[5]
		handle := strings.TrimRight(text[start:end], ".")
		if handle == "" {
			continue
		}
		end = start + len(handle)
		ex.Mentions = append(ex.Mentions, Mention{
			Handle: handle,
			Position: domain.Position{
				Start: runeOffset(text, start-1),
				End:   runeOffset(text, end),
			},
		})
	}

	for _, m := range hashtagRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[4], m[5]
		tag := text[start:end]
		if isAllDigits(tag) {
			continue
		}
		ex.Hashtags = append(ex.Hashtags, Hashtag{
			Text: tag,
			Position: domain.Position{
				Start: runeOffset(text, start-1),
				End:   runeOffset(text, end),
			},
		})
	}

	return ex
}

// runeOffset converts a byte offset into a rune offset.
func runeOffset(text string, byteOffset int) int {
	return utf8.RuneCountInString(text[:byteOffset])
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
