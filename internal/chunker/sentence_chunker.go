package chunker

import (
	"regexp"
	"strings"

	"wikirag/internal/domain"
)

// SentenceChunker groups sentences into chunks with a sentence overlap.
// Unlike MarkdownChunker it normalises whitespace, so chunks are not exact
// substrings of the page.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		overlapSentences = 0
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	trimmed := strings.TrimSpace(document.Text)
	if trimmed == "" {
		return nil, nil
	}
	var sentences []string
	last := 0
	for _, loc := range c.splitter.FindAllStringIndex(document.Text, -1) {
		if s := strings.TrimSpace(document.Text[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	// trailing text without terminal punctuation
	if tail := strings.TrimSpace(document.Text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}

	var chunks []domain.Chunk
	i := 0
	idx := 0
	for i < len(sentences) {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, newChunk(document, strings.Join(sentences[i:end], " "), idx))
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
		idx++
	}
	return chunks, nil
}
