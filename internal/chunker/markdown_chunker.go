package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"wikirag/internal/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// MarkdownChunker splits text into windows of at most size characters.
// Consecutive windows of a document share exactly overlap characters.
// Cuts prefer, in order: a heading line, a code fence, a blank line,
// a line break, a space. With none in range the window is cut at size.
type MarkdownChunker struct {
	size    int
	overlap int
}

func NewMarkdownChunker(size, overlap int) *MarkdownChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &MarkdownChunker{size: size, overlap: overlap}
}

func (c *MarkdownChunker) Size() int    { return c.size }
func (c *MarkdownChunker) Overlap() int { return c.overlap }

func (c *MarkdownChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Text) == "" {
		return nil, nil
	}
	runes := []rune(document.Text)
	n := len(runes)

	var chunks []domain.Chunk
	start := 0
	for idx := 0; ; idx++ {
		end := n
		if n-start > c.size {
			end = c.cutPoint(runes, start)
		}
		chunks = append(chunks, newChunk(document, string(runes[start:end]), idx))
		if end >= n {
			break
		}
		start = end - c.overlap
	}
	return chunks, nil
}

// cutPoint picks the end of the window starting at start. The result lies in
// [start+max(overlap+1, size/2), start+size] so the next window always advances.
func (c *MarkdownChunker) cutPoint(runes []rune, start int) int {
	lo := start + max(c.overlap+1, c.size/2)
	hi := start + c.size
	for _, at := range boundaries {
		for p := hi; p >= lo; p-- {
			if at(runes, p) {
				return p
			}
		}
	}
	return hi
}

type boundary func(runes []rune, p int) bool

var boundaries = []boundary{
	headingStart,
	fenceStart,
	paragraphBreak,
	lineBreak,
	spaceBreak,
}

func headingStart(runes []rune, p int) bool {
	return p < len(runes) && runes[p] == '#' && runes[p-1] == '\n'
}

func fenceStart(runes []rune, p int) bool {
	return p+3 <= len(runes) && runes[p-1] == '\n' && string(runes[p:p+3]) == "```"
}

func paragraphBreak(runes []rune, p int) bool {
	return p >= 2 && runes[p-1] == '\n' && runes[p-2] == '\n'
}

func lineBreak(runes []rune, p int) bool {
	return runes[p-1] == '\n'
}

func spaceBreak(runes []rune, p int) bool {
	return unicode.IsSpace(runes[p-1])
}

func newChunk(document domain.Document, text string, idx int) domain.Chunk {
	return domain.Chunk{
		ID:         fmt.Sprintf("%s#%d", document.SourcePath, idx),
		Text:       text,
		SourcePath: document.SourcePath,
		Index:      idx,
	}
}

// SplitDocuments chunks every document in order. Chunks never span documents.
func SplitDocuments(c domain.Chunker, documents []domain.Document) ([]domain.Chunk, error) {
	var all []domain.Chunk
	for _, d := range documents {
		chunks, err := c.Chunk(d)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", d.SourcePath, err)
		}
		all = append(all, chunks...)
	}
	return all, nil
}
