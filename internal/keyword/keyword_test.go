package keyword

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikirag/internal/domain"
)

func TestBuildAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword")
	chunks := []domain.Chunk{
		{ID: "a#0", Text: "Install the VPN client and sign in with your account.", SourcePath: "wiki_repo/VPN.md"},
		{ID: "b#0", Text: "Payroll runs on the last working day of the month.", SourcePath: "wiki_repo/Payroll.md"},
	}
	for i := 0; i < 150; i++ {
		chunks = append(chunks, domain.Chunk{
			ID:         fmt.Sprintf("filler#%d", i),
			Text:       "General office information and seating plan.",
			SourcePath: "wiki_repo/Office.md",
			Index:      i,
		})
	}

	idx, err := Build(path, chunks)
	require.NoError(t, err)
	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(chunks)), count)
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search("payroll", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "b#0", hits[0].ID)
	assert.Equal(t, "wiki_repo/Payroll.md", hits[0].SourcePath)
	assert.Contains(t, hits[0].Content, "Payroll")
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestSearchNoMatches(t *testing.T) {
	idx, err := Build(filepath.Join(t.TempDir(), "keyword"), []domain.Chunk{
		{ID: "a#0", Text: "VPN setup", SourcePath: "wiki_repo/VPN.md"},
	})
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search("zebra", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
