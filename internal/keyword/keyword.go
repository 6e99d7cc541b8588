package keyword

import (
	"errors"
	"fmt"
	"log"

	"github.com/blevesearch/bleve/v2"

	"wikirag/internal/domain"
)

const batchSize = 100

// Hit is a full-text match from the keyword index.
type Hit struct {
	ID         string  `json:"id"`
	SourcePath string  `json:"source_path"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

type document struct {
	SourcePath string `json:"source_path"`
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
}

// Index wraps a bleve index of wiki chunks.
type Index struct {
	index bleve.Index
}

// Build creates a new bleve index at path and indexes chunks in batches.
// path must not exist yet.
func Build(path string, chunks []domain.Chunk) (*Index, error) {
	idx, err := bleve.New(path, bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}

	batch := idx.NewBatch()
	for i, ch := range chunks {
		doc := document{SourcePath: ch.SourcePath, Content: ch.Text, ChunkIndex: ch.Index}
		if err := batch.Index(ch.ID, doc); err != nil {
			idx.Close()
			return nil, fmt.Errorf("add chunk %s to batch: %w", ch.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := idx.Batch(batch); err != nil {
				idx.Close()
				return nil, fmt.Errorf("index batch: %w", err)
			}
			batch = idx.NewBatch()
			log.Printf("Keyword indexed %d/%d chunks...", i+1, len(chunks))
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			idx.Close()
			return nil, fmt.Errorf("index final batch: %w", err)
		}
	}
	return &Index{index: idx}, nil
}

// Open opens an existing keyword index.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	return &Index{index: idx}, nil
}

// Search runs a match query and returns at most size hits by relevance.
func (x *Index) Search(query string, size int) ([]Hit, error) {
	if x == nil || x.index == nil {
		return nil, errors.New("keyword index not open")
	}
	if size <= 0 {
		size = 5
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = size
	req.Fields = []string{"*"}

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if v, ok := h.Fields["source_path"].(string); ok {
			hit.SourcePath = v
		}
		if v, ok := h.Fields["content"].(string); ok {
			hit.Content = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (x *Index) Count() (uint64, error) {
	return x.index.DocCount()
}

func (x *Index) Close() error {
	if x == nil || x.index == nil {
		return nil
	}
	return x.index.Close()
}
