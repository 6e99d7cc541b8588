package service

import (
	"fmt"
	"time"

	"wikirag/internal/chunker"
	"wikirag/internal/config"
	"wikirag/internal/domain"
	"wikirag/internal/embedding/hashing"
	embopenai "wikirag/internal/embedding/openai"
	genopenai "wikirag/internal/generation/openai"
	"wikirag/internal/indexer"
	"wikirag/internal/provenance"
	"wikirag/internal/summarizer"
	"wikirag/internal/wikisync"
)

func NewChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "markdown", "":
		return chunker.NewMarkdownChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap), nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("%w: unknown chunker: %s", domain.ErrConfiguration, cfg.Chunker.Type)
	}
}

// NewEmbedder builds the configured embedder. The indexer and the query path
// must both go through here so their model identities agree.
func NewEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "openai", "":
		o := cfg.Embedder.OpenAI
		if o == nil {
			return nil, fmt.Errorf("%w: openai embedder config missing", domain.ErrConfiguration)
		}
		return embopenai.NewClient(embopenai.Config{
			BaseURL:           o.BaseURL,
			APIKeyEnv:         o.APIKeyEnv,
			Model:             o.Model,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			MaxRetries:        o.MaxRetries,
			RequestsPerMinute: o.RequestsPerMinute,
		})
	case "hashing":
		dim := hashing.DefaultDimension
		if cfg.Embedder.Hashing != nil {
			dim = cfg.Embedder.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder: %s", domain.ErrConfiguration, cfg.Embedder.Type)
	}
}

func NewGenerator(cfg *config.AppConfig) (domain.Generator, error) {
	switch cfg.Generator.Type {
	case "openai", "":
		o := cfg.Generator.OpenAI
		if o == nil {
			return nil, fmt.Errorf("%w: openai generator config missing", domain.ErrConfiguration)
		}
		temperature := genopenai.DefaultTemperature
		if o.Temperature != nil {
			temperature = *o.Temperature
		}
		return genopenai.NewClient(genopenai.Config{
			BaseURL:     o.BaseURL,
			APIKeyEnv:   o.APIKeyEnv,
			Model:       o.Model,
			Temperature: temperature,
			Timeout:     time.Duration(o.TimeoutSecs) * time.Second,
			MaxRetries:  o.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("%w: unknown generator: %s", domain.ErrConfiguration, cfg.Generator.Type)
	}
}

// NewSummarizer returns nil when summaries are disabled.
func NewSummarizer(cfg *config.AppConfig) (domain.Summarizer, error) {
	switch cfg.Summarizer.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown summarizer: %s", domain.ErrConfiguration, cfg.Summarizer.Type)
	}
}

func NewResolver(cfg *config.AppConfig) *provenance.Resolver {
	r := provenance.NewResolver(cfg.Wiki.Organization, cfg.Wiki.Project, cfg.Wiki.RepoPath)
	if cfg.Wiki.Host != "" {
		r.Host = cfg.Wiki.Host
	}
	return r
}

func NewSyncer(cfg *config.AppConfig) *wikisync.Syncer {
	return wikisync.New(wikisync.Config{
		Organization: cfg.Wiki.Organization,
		Project:      cfg.Wiki.Project,
		PAT:          cfg.Wiki.PAT(),
		RepoPath:     cfg.Wiki.RepoPath,
		URL:          cfg.Wiki.SyncURL,
	})
}

// NewBuilder assembles the offline index pipeline from config.
func NewBuilder(cfg *config.AppConfig, skipSync bool) (*indexer.Builder, error) {
	ch, err := NewChunker(cfg)
	if err != nil {
		return nil, err
	}
	emb, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	sum, err := NewSummarizer(cfg)
	if err != nil {
		return nil, err
	}
	var syncer indexer.Syncer
	if !skipSync {
		syncer = NewSyncer(cfg)
	}
	return indexer.NewBuilder(indexer.Config{
		RepoPath:         cfg.Wiki.RepoPath,
		IndexPath:        cfg.Index.Path,
		BatchSize:        cfg.Index.BatchSize,
		SummarySentences: cfg.Summarizer.MaxSentences,
		Keyword:          cfg.Index.Keyword,
	}, syncer, ch, emb, sum), nil
}
