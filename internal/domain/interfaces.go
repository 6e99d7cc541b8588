package domain

import "context"

// Document is a single markdown page loaded from the wiki checkout.
type Document struct {
	Text       string
	SourcePath string
}

// Chunk is a bounded slice of a Document, the unit of embedding and retrieval.
type Chunk struct {
	ID         string
	Text       string
	SourcePath string
	Index      int
}

// SearchResult is a retrieved chunk with its raw distance and derived score.
type SearchResult struct {
	Content    string
	SourcePath string
	Score      float64
	Distance   float64
}

// Source is a cited wiki page.
type Source struct {
	DisplayName string
	URL         string
}

// AnswerResult is a grounded answer plus up to three cited sources.
type AnswerResult struct {
	Answer  string
	Sources []Source
}

// Embedder turns text into fixed-dimension vectors. The same implementation
// and model must be used at build time and at query time.
type Embedder interface {
	// Name identifies the embedding model; persisted indexes record it.
	Name() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// Generator produces a completion for a single prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
