package retriever

import (
	"context"
	"fmt"

	"wikirag/internal/domain"
	"wikirag/internal/vectorstore"
)

// IndexSource hands out the loaded index, loading it on first use.
type IndexSource interface {
	Index(ctx context.Context) (*vectorstore.Index, error)
}

// Retriever runs similarity search over the persisted wiki index.
type Retriever struct {
	source IndexSource
}

func New(source IndexSource) *Retriever {
	return &Retriever{source: source}
}

// Search returns at most k results ordered by descending score. An empty
// index yields no results. Embedding failures are returned as is.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("retriever: k must be positive, got %d", k)
	}
	idx, err := r.source.Index(ctx)
	if err != nil {
		return nil, err
	}
	hits, err := idx.SimilaritySearchWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = domain.SearchResult{
			Content:    h.Chunk.Text,
			SourcePath: h.Chunk.SourcePath,
			Score:      Score(h.Distance),
			Distance:   h.Distance,
		}
	}
	return results, nil
}

// Score maps a non-negative distance into (0, 1]; smaller distance, higher
// score. It assumes the index reports a distance, not a similarity.
func Score(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}
