package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikirag/internal/domain"
)

func reconstruct(chunks []domain.Chunk, overlap int) string {
	var b strings.Builder
	for i, ch := range chunks {
		r := []rune(ch.Text)
		if i > 0 {
			r = r[overlap:]
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func sampleMarkdown() string {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("# Section heading\n\n")
		b.WriteString("Onboarding covers laptop setup, accounts and the first week schedule. ")
		b.WriteString("Ask your buddy when something is unclear.\n\n")
		b.WriteString("```bash\nmake bootstrap\n```\n\n")
		b.WriteString("- item one\n- item two\n")
	}
	return b.String()
}

func TestMarkdownChunkerCoversDocument(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
	}{
		{"markdown default sizes", sampleMarkdown(), 1000, 100},
		{"markdown small windows", sampleMarkdown(), 120, 20},
		{"no boundaries", strings.Repeat("x", 2500), 1000, 100},
		{"zero overlap", sampleMarkdown(), 200, 0},
		{"multibyte text", strings.Repeat("Überblick für Einsteiger. ", 80), 150, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMarkdownChunker(tt.size, tt.overlap)
			doc := domain.Document{Text: tt.text, SourcePath: "wiki_repo/Guide.md"}

			chunks, err := c.Chunk(doc)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			assert.Equal(t, tt.text, reconstruct(chunks, tt.overlap))
			for i, ch := range chunks {
				assert.LessOrEqual(t, len([]rune(ch.Text)), tt.size)
				assert.Equal(t, doc.SourcePath, ch.SourcePath)
				assert.Equal(t, i, ch.Index)
				if i > 0 {
					prev := []rune(chunks[i-1].Text)
					cur := []rune(ch.Text)
					assert.Equal(t, string(prev[len(prev)-tt.overlap:]), string(cur[:tt.overlap]),
						"chunks %d and %d must share the overlap", i-1, i)
				}
			}
		})
	}
}

func TestMarkdownChunkerShortDocument(t *testing.T) {
	c := NewMarkdownChunker(1000, 100)
	chunks, err := c.Chunk(domain.Document{Text: "# Title\n\nShort page.", SourcePath: "a.md"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "# Title\n\nShort page.", chunks[0].Text)
	assert.Equal(t, "a.md#0", chunks[0].ID)
}

func TestMarkdownChunkerEmptyDocument(t *testing.T) {
	c := NewMarkdownChunker(1000, 100)
	for _, text := range []string{"", "   \n\t\n"} {
		chunks, err := c.Chunk(domain.Document{Text: text, SourcePath: "empty.md"})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestMarkdownChunkerPrefersHeadings(t *testing.T) {
	first := "# One\n\n" + strings.Repeat("alpha beta gamma. ", 4)
	second := "# Two\n\n" + strings.Repeat("delta epsilon. ", 4)
	text := first + "\n" + second

	c := NewMarkdownChunker(len(first)+20, 0)
	chunks, err := c.Chunk(domain.Document{Text: text, SourcePath: "h.md"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[1].Text, "# Two"), "second chunk should start at the heading, got %q", chunks[1].Text)
}

func TestNewMarkdownChunkerSanitizes(t *testing.T) {
	tests := []struct {
		name                  string
		size, overlap         int
		wantSize, wantOverlap int
	}{
		{"defaults", 0, 0, DefaultChunkSize, 0},
		{"negative overlap", 500, -1, 500, 0},
		{"overlap too large", 200, 200, 200, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMarkdownChunker(tt.size, tt.overlap)
			assert.Equal(t, tt.wantSize, c.Size())
			assert.Equal(t, tt.wantOverlap, c.Overlap())
		})
	}
}

func TestSplitDocumentsKeepsDocumentsApart(t *testing.T) {
	c := NewMarkdownChunker(50, 10)
	docs := []domain.Document{
		{Text: strings.Repeat("first page text ", 10), SourcePath: "wiki_repo/A.md"},
		{Text: "", SourcePath: "wiki_repo/Empty.md"},
		{Text: strings.Repeat("second page text ", 10), SourcePath: "wiki_repo/B.md"},
	}

	chunks, err := SplitDocuments(c, docs)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, ch := range chunks {
		assert.NotEqual(t, "wiki_repo/Empty.md", ch.SourcePath)
		if ch.SourcePath == "wiki_repo/A.md" {
			assert.NotContains(t, ch.Text, "second")
		} else {
			assert.NotContains(t, ch.Text, "first")
		}
		assert.False(t, seen[ch.ID], "duplicate chunk id %s", ch.ID)
		seen[ch.ID] = true
	}
}
