package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikirag/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"AZURE_DEVOPS_ORG", "AZURE_DEVOPS_PROJECT", "WIKI_REPO_PATH", "WIKI_INDEX_PATH", "WIKIRAG_ADDR"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "./wiki_repo", cfg.Wiki.RepoPath)
	assert.Equal(t, "./wiki_index", cfg.Index.Path)
	assert.Equal(t, 100, cfg.Index.BatchSize)
	assert.Equal(t, "markdown", cfg.Chunker.Type)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 100, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 5, cfg.Retrieval.K)
	assert.Equal(t, 3, cfg.Retrieval.MaxSources)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	require.NotNil(t, cfg.Generator.OpenAI)
	assert.Equal(t, "gpt-4o-mini", cfg.Generator.OpenAI.Model)
	assert.InDelta(t, 0.3, *cfg.Generator.OpenAI.Temperature, 1e-9)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
wiki:
  organization: Acme
  project: Docs
index:
  path: /var/lib/wikirag/index
  batch_size: 50
embedder:
  type: hashing
  hashing:
    dimension: 64
generator:
  type: openai
  openai:
    temperature: 0
chunker:
  chunk_size: 500
  chunk_overlap: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Acme", cfg.Wiki.Organization)
	assert.Equal(t, "Docs", cfg.Wiki.Project)
	assert.Equal(t, "/var/lib/wikirag/index", cfg.Index.Path)
	assert.Equal(t, 50, cfg.Index.BatchSize)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 64, cfg.Embedder.Hashing.Dimension)
	assert.Zero(t, *cfg.Generator.OpenAI.Temperature)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AZURE_DEVOPS_ORG", "EnvOrg")
	t.Setenv("AZURE_DEVOPS_PROJECT", "EnvProject")
	t.Setenv("WIKI_INDEX_PATH", "/tmp/idx")
	t.Setenv("WIKI_REPO_PATH", "/tmp/repo")

	cfg, err := Load(writeConfig(t, "wiki:\n  organization: FileOrg\n"))
	require.NoError(t, err)
	assert.Equal(t, "EnvOrg", cfg.Wiki.Organization)
	assert.Equal(t, "EnvProject", cfg.Wiki.Project)
	assert.Equal(t, "/tmp/idx", cfg.Index.Path)
	assert.Equal(t, "/tmp/repo", cfg.Wiki.RepoPath)
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
	}{
		{"unknown section", "vector_store:\n  type: qdrant\n"},
		{"unknown embedder", "embedder:\n  type: word2vec\n"},
		{"wrong type", "index:\n  batch_size: many\n"},
		{"negative overlap", "chunker:\n  chunk_overlap: -1\n"},
		{"temperature out of range", "generator:\n  openai:\n    temperature: 3.5\n"},
		{"broken yaml", "wiki: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	valid := func() *AppConfig {
		cfg := defaultConfig()
		cfg.Wiki.Organization = "Acme"
		cfg.Wiki.Project = "Docs"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"valid", func(*AppConfig) {}, false},
		{"missing organization", func(c *AppConfig) { c.Wiki.Organization = "" }, true},
		{"missing project", func(c *AppConfig) { c.Wiki.Project = "" }, true},
		{"overlap not smaller than size", func(c *AppConfig) { c.Chunker.ChunkOverlap = c.Chunker.ChunkSize }, true},
		{"zero k", func(c *AppConfig) { c.Retrieval.K = 0 }, true},
		{"empty index path", func(c *AppConfig) { c.Index.Path = "" }, true},
		{"nightly schedule", func(c *AppConfig) { c.Index.Schedule = "0 2 * * *" }, false},
		{"bad schedule", func(c *AppConfig) { c.Index.Schedule = "every night" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Wiki.Organization = "Acme"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPAT(t *testing.T) {
	t.Setenv("TEST_WIKI_PAT", "secret")
	assert.Equal(t, "secret", WikiConfig{PATEnv: "TEST_WIKI_PAT"}.PAT())
}
