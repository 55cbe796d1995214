package tagparse

import (
	"testing"

	"github.com/quillapp/quill-server/internal/domain"
)

func TestParse_Mentions(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		handles []string
	}{
		{"single mention", "thanks @alice.smith for the rec", []string{"alice.smith"}},
		{"mention at start", "@bob check this out", []string{"bob"}},
		{"multiple mentions", "@alice and @bob both read it", []string{"alice", "bob"}},
		{"trailing dot stripped", "ask @alice.", []string{"alice"}},
		{"email not a mention", "write to alice@example.com", nil},
		{"double at ignored", "weird @@alice", nil},
		{"no mentions", "just plain text", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Parse(tt.text)
			if len(ex.Mentions) != len(tt.handles) {
				t.Fatalf("got %d mentions, want %d", len(ex.Mentions), len(tt.handles))
			}
			for i, want := range tt.handles {
				if ex.Mentions[i].Handle != want {
					t.Errorf("mention %d = %q, want %q", i, ex.Mentions[i].Handle, want)
				}
			}
		})
	}
}

func TestParse_Hashtags(t *testing.T) {
	tests := []struct {
		name string
		text string
		tags []string
	}{
		{"single hashtag", "loved this #fantasy novel", []string{"fantasy"}},
		{"hashtag at start", "#scifi all the way", []string{"scifi"}},
		{"compound hashtag", "such a #slow-burn romance", []string{"slow-burn"}},
		{"numeric only skipped", "page #42 was great", nil},
		{"fragment anchor skipped", "see example.com/page#section", nil},
		{"unicode hashtag", "reading #bücher tonight", []string{"bücher"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Parse(tt.text)
			if len(ex.Hashtags) != len(tt.tags) {
				t.Fatalf("got %d hashtags, want %d", len(ex.Hashtags), len(tt.tags))
			}
			for i, want := range tt.tags {
				if ex.Hashtags[i].Text != want {
					t.Errorf("hashtag %d = %q, want %q", i, ex.Hashtags[i].Text, want)
				}
			}
		})
	}
}

func TestParse_Positions(t *testing.T) {
	ex := Parse("hey @alice see #fantasy")

	if len(ex.Mentions) != 1 || len(ex.Hashtags) != 1 {
		t.Fatalf("got %d mentions, %d hashtags", len(ex.Mentions), len(ex.Hashtags))
	}

	wantMention := domain.Position{Start: 4, End: 10} // "@alice"
	if ex.Mentions[0].Position != wantMention {
		t.Errorf("mention position = %+v, want %+v", ex.Mentions[0].Position, wantMention)
	}

	wantHashtag := domain.Position{Start: 15, End: 23} // "#fantasy"
	if ex.Hashtags[0].Position != wantHashtag {
		t.Errorf("hashtag position = %+v, want %+v", ex.Hashtags[0].Position, wantHashtag)
	}
}

func TestParse_RunePositions(t *testing.T) {
	// The é is multi-byte; positions must count runes, not bytes.
	ex := Parse("café @alice")

	if len(ex.Mentions) != 1 {
		t.Fatalf("got %d mentions, want 1", len(ex.Mentions))
	}
	want := domain.Position{Start: 5, End: 11}
	if ex.Mentions[0].Position != want {
		t.Errorf("mention position = %+v, want %+v", ex.Mentions[0].Position, want)
	}
}
