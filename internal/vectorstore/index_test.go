package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikirag/internal/domain"
)

// axisEmbedder maps known texts to fixed vectors and counts calls.
type axisEmbedder struct {
	name    string
	vectors map[string][]float64
	calls   int
	err     error
}

func (e *axisEmbedder) Name() string { return e.name }

func (e *axisEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			return nil, fmt.Errorf("unknown text %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (e *axisEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func newAxisEmbedder() *axisEmbedder {
	return &axisEmbedder{
		name: "axis",
		vectors: map[string][]float64{
			"vpn":     {1, 0, 0},
			"payroll": {0, 1, 0},
			"holiday": {0, 0, 1},
			"vpn-ish": {0.9, 0.1, 0},
			"query":   {1, 0, 0},
		},
	}
}

func chunk(id, text string) domain.Chunk {
	return domain.Chunk{ID: id, Text: text, SourcePath: "wiki_repo/" + id + ".md"}
}

func TestSimilaritySearchOrdersByDistance(t *testing.T) {
	emb := newAxisEmbedder()
	x, err := FromChunks(context.Background(), emb, []domain.Chunk{
		chunk("a", "payroll"),
		chunk("b", "vpn-ish"),
		chunk("c", "vpn"),
		chunk("d", "holiday"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, emb.calls)

	hits, err := x.SimilaritySearchWithScore(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "c", hits[0].Chunk.ID)
	assert.Equal(t, 0.0, hits[0].Distance)
	assert.Equal(t, "b", hits[1].Chunk.ID)
	assert.InDelta(t, 0.02, hits[1].Distance, 1e-9)
	// a and d are equidistant; insertion order breaks the tie
	assert.Equal(t, "a", hits[2].Chunk.ID)
}

func TestSimilaritySearchLimits(t *testing.T) {
	emb := newAxisEmbedder()
	x, err := FromChunks(context.Background(), emb, []domain.Chunk{chunk("a", "vpn"), chunk("b", "payroll")})
	require.NoError(t, err)

	tests := []struct {
		name string
		k    int
		want int
	}{
		{"fewer than k", 10, 2},
		{"exactly k", 2, 2},
		{"one", 1, 1},
		{"non-positive falls back to default", 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := x.SimilaritySearchWithScore(context.Background(), "query", tt.k)
			require.NoError(t, err)
			assert.Len(t, hits, tt.want)
		})
	}
}

func TestSimilaritySearchEmptyIndex(t *testing.T) {
	emb := newAxisEmbedder()
	x := New(emb)
	hits, err := x.SimilaritySearchWithScore(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Zero(t, emb.calls, "empty index must not embed the query")
}

func TestSimilaritySearchPropagatesEmbeddingError(t *testing.T) {
	emb := newAxisEmbedder()
	x, err := FromChunks(context.Background(), emb, []domain.Chunk{chunk("a", "vpn")})
	require.NoError(t, err)

	boom := errors.New("boom")
	emb.err = boom
	_, err = x.SimilaritySearchWithScore(context.Background(), "query", 1)
	assert.ErrorIs(t, err, boom)
}

func TestMergeIsIndependentOfBatchSize(t *testing.T) {
	emb := newAxisEmbedder()
	texts := []string{"vpn", "payroll", "holiday", "vpn-ish", "vpn", "payroll", "holiday"}
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = chunk(fmt.Sprintf("c%d", i), text)
	}

	build := func(batch int) *Index {
		var acc *Index
		for start := 0; start < len(chunks); start += batch {
			end := min(start+batch, len(chunks))
			part, err := FromChunks(context.Background(), emb, chunks[start:end])
			require.NoError(t, err)
			if acc == nil {
				acc = part
				continue
			}
			require.NoError(t, acc.Merge(part))
		}
		return acc
	}

	ids := func(x *Index) []string {
		var out []string
		for _, ch := range x.Chunks() {
			out = append(out, ch.ID+"|"+ch.Text)
		}
		sort.Strings(out)
		return out
	}

	want := ids(build(len(chunks)))
	for _, b := range []int{1, 2, 3, 100} {
		t.Run(fmt.Sprintf("batch %d", b), func(t *testing.T) {
			got := build(b)
			assert.Equal(t, len(chunks), got.Len())
			assert.Equal(t, want, ids(got))
		})
	}
}

func TestMergeRejectsDuplicates(t *testing.T) {
	emb := newAxisEmbedder()
	a, err := FromChunks(context.Background(), emb, []domain.Chunk{chunk("a", "vpn")})
	require.NoError(t, err)
	b, err := FromChunks(context.Background(), emb, []domain.Chunk{chunk("b", "payroll"), chunk("a", "vpn")})
	require.NoError(t, err)

	err = a.Merge(b)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, a.Len(), "failed merge must not change the index")
}

func TestMergeRejectsOtherEmbedder(t *testing.T) {
	a, err := FromChunks(context.Background(), newAxisEmbedder(), []domain.Chunk{chunk("a", "vpn")})
	require.NoError(t, err)
	other := newAxisEmbedder()
	other.name = "other"
	b, err := FromChunks(context.Background(), other, []domain.Chunk{chunk("b", "vpn")})
	require.NoError(t, err)

	assert.ErrorIs(t, a.Merge(b), ErrEmbedderMismatch)
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	x := New(newAxisEmbedder())
	require.NoError(t, x.Add([]domain.Chunk{chunk("a", "x")}, [][]float64{{1, 0}}))
	err := x.Add([]domain.Chunk{chunk("b", "y")}, [][]float64{{1, 0, 0}})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestAddAssignsMissingIDs(t *testing.T) {
	x := New(newAxisEmbedder())
	require.NoError(t, x.Add([]domain.Chunk{{Text: "x"}, {Text: "y"}}, [][]float64{{1}, {2}}))
	chunks := x.Chunks()
	require.Len(t, chunks, 2)
	assert.NotEmpty(t, chunks[0].ID)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}
