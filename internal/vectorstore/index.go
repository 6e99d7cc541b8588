package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"wikirag/internal/domain"
)

// DefaultK is used when a search asks for a non-positive number of results.
const DefaultK = 5

var (
	ErrDuplicateID      = errors.New("vectorstore: duplicate chunk id")
	ErrDimension        = errors.New("vectorstore: vector dimension mismatch")
	ErrEmbedderMismatch = errors.New("vectorstore: indexes built with different embedders")
)

// Hit is a chunk and its squared L2 distance to the query vector.
type Hit struct {
	Chunk    domain.Chunk
	Distance float64
}

// Index is an exact (flat) nearest-neighbour index over chunk embeddings.
// Reads are safe for concurrent use; Add and Merge take the write lock.
type Index struct {
	mu        sync.RWMutex
	embedder  domain.Embedder
	model     string
	dimension int
	chunks    []domain.Chunk
	vectors   [][]float64
	ids       map[string]struct{}
	manifest  *Manifest
}

// New returns an empty index bound to emb.
func New(emb domain.Embedder) *Index {
	x := &Index{embedder: emb, ids: make(map[string]struct{})}
	if emb != nil {
		x.model = emb.Name()
	}
	return x
}

// FromChunks embeds all chunks with one EmbedDocuments call and returns a
// standalone index holding them. Chunks without an ID get a random one.
func FromChunks(ctx context.Context, emb domain.Embedder, chunks []domain.Chunk) (*Index, error) {
	x := New(emb)
	if len(chunks) == 0 {
		return x, nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(vectors), len(chunks))
	}
	if err := x.Add(chunks, vectors); err != nil {
		return nil, err
	}
	return x, nil
}

// Add appends chunks with their vectors. Nothing is added if any chunk fails
// validation.
func (x *Index) Add(chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vectorstore: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	dim := x.dimension
	batch := make(map[string]struct{}, len(chunks))
	prepared := make([]domain.Chunk, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		if dim == 0 {
			dim = len(vectors[i])
		}
		if len(vectors[i]) != dim || dim == 0 {
			return fmt.Errorf("%w: chunk %s has %d, index has %d", ErrDimension, ch.ID, len(vectors[i]), dim)
		}
		if _, ok := x.ids[ch.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, ch.ID)
		}
		if _, ok := batch[ch.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, ch.ID)
		}
		batch[ch.ID] = struct{}{}
		prepared[i] = ch
	}

	x.dimension = dim
	for id := range batch {
		x.ids[id] = struct{}{}
	}
	x.chunks = append(x.chunks, prepared...)
	x.vectors = append(x.vectors, vectors...)
	return nil
}

// Merge moves the content of other into x, after x's own entries. The result
// holds each chunk exactly once regardless of how the corpus was batched.
func (x *Index) Merge(other *Index) error {
	if other == nil || other == x {
		return errors.New("vectorstore: invalid merge source")
	}
	other.mu.RLock()
	chunks := append([]domain.Chunk(nil), other.chunks...)
	vectors := append([][]float64(nil), other.vectors...)
	model := other.model
	other.mu.RUnlock()

	x.mu.RLock()
	mine := x.model
	x.mu.RUnlock()
	if mine != "" && model != "" && mine != model {
		return fmt.Errorf("%w: %s vs %s", ErrEmbedderMismatch, mine, model)
	}
	if err := x.Add(chunks, vectors); err != nil {
		return err
	}
	if mine == "" && model != "" {
		x.mu.Lock()
		x.model = model
		x.mu.Unlock()
	}
	return nil
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dimension
}

// Model returns the embedder name the vectors were produced with.
func (x *Index) Model() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.model
}

// Chunks returns a copy of the indexed chunks in insertion order.
func (x *Index) Chunks() []domain.Chunk {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]domain.Chunk(nil), x.chunks...)
}

// Manifest returns the manifest read by Load or written by Save, if any.
func (x *Index) Manifest() *Manifest {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.manifest
}

// SimilaritySearchWithScore embeds query and returns at most k hits ordered by
// ascending distance. An empty index returns no hits without embedding.
func (x *Index) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]Hit, error) {
	if x.Len() == 0 {
		return nil, nil
	}
	if x.embedder == nil {
		return nil, errors.New("vectorstore: index has no embedder")
	}
	vec, err := x.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return x.SearchVector(vec, k)
}

// SearchVector returns the k nearest chunks to vec. Ties keep insertion order.
func (x *Index) SearchVector(vec []float64, k int) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.chunks) == 0 {
		return nil, nil
	}
	if len(vec) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimension, len(vec), x.dimension)
	}
	if k <= 0 {
		k = DefaultK
	}
	distances := make([]float64, len(x.vectors))
	for i := range x.vectors {
		distances[i] = squaredL2(x.vectors[i], vec)
	}
	idxs := argsortAsc(distances)
	if k > len(idxs) {
		k = len(idxs)
	}
	hits := make([]Hit, 0, k)
	for _, j := range idxs[:k] {
		hits = append(hits, Hit{Chunk: x.chunks[j], Distance: distances[j]})
	}
	return hits, nil
}

func squaredL2(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func argsortAsc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] < vals[idxs[b]] })
	return idxs
}
