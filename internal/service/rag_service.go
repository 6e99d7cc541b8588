package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"wikirag/internal/answer"
	"wikirag/internal/config"
	"wikirag/internal/domain"
	"wikirag/internal/keyword"
	"wikirag/internal/provenance"
	"wikirag/internal/retriever"
	"wikirag/internal/vectorstore"
)

// ErrEmptyQuery is returned for blank questions and searches.
var ErrEmptyQuery = errors.New("query must not be empty")

// RAGService is the query-time facade shared by the TUI, HTTP and MCP fronts.
type RAGService struct {
	rc        *Context
	retriever *retriever.Retriever
	synth     *answer.Synthesizer
	resolver  *provenance.Resolver
	metrics   *Metrics
	k         int
}

func NewRAGService(cfg *config.AppConfig, rc *Context) *RAGService {
	r := retriever.New(rc)
	resolver := NewResolver(cfg)
	return &RAGService{
		rc:        rc,
		retriever: r,
		synth: answer.NewSynthesizer(r, rc.Generator(), resolver, answer.Options{
			K:          cfg.Retrieval.K,
			MaxSources: cfg.Retrieval.MaxSources,
		}),
		resolver: resolver,
		metrics:  &Metrics{},
		k:        cfg.Retrieval.K,
	}
}

// DefaultK is the configured retrieval depth.
func (s *RAGService) DefaultK() int {
	if s.k < 1 {
		return answer.DefaultK
	}
	return s.k
}

func (s *RAGService) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	logger := NewLogger(ctx)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()
	results, err := s.retriever.Search(ctx, query, k)
	s.metrics.recordSearch(time.Since(start), err)
	if err != nil {
		logger.LogError("search", err)
		return nil, err
	}
	logger.LogInfof("search", "k=%d results=%d latency=%s", k, len(results), time.Since(start).Round(time.Millisecond))
	return results, nil
}

func (s *RAGService) Ask(ctx context.Context, query string) (*domain.AnswerResult, error) {
	logger := NewLogger(ctx)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()
	res, err := s.synth.Ask(ctx, query)
	notFound := err == nil && res.Answer == answer.NotFoundAnswer && len(res.Sources) == 0
	s.metrics.recordAsk(time.Since(start), notFound, err)
	if err != nil {
		logger.LogError("ask", err)
		return nil, err
	}
	logger.LogInfof("ask", "sources=%d latency=%s", len(res.Sources), time.Since(start).Round(time.Millisecond))
	return res, nil
}

// KeywordSearch runs a full-text query against the bleve side-index.
func (s *RAGService) KeywordSearch(ctx context.Context, query string, k int) ([]keyword.Hit, error) {
	logger := NewLogger(ctx)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k < 1 {
		k = s.DefaultK()
	}
	s.metrics.recordKeywordSearch()
	kw, err := s.rc.Keyword()
	if err != nil {
		logger.LogError("keyword_search", err)
		return nil, err
	}
	hits, err := kw.Search(query, k)
	if err != nil {
		logger.LogError("keyword_search", err)
		return nil, err
	}
	return hits, nil
}

// Manifest describes the loaded index, loading it if needed.
func (s *RAGService) Manifest(ctx context.Context) (*vectorstore.Manifest, error) {
	idx, err := s.rc.Index(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Manifest(), nil
}

// Reload drops cached indexes; the next query reads the index from disk.
func (s *RAGService) Reload(ctx context.Context) error {
	s.metrics.recordReload()
	if err := s.rc.Invalidate(); err != nil {
		NewLogger(ctx).LogError("reload", err)
		return err
	}
	NewLogger(ctx).LogInfof("reload", "message=%s", "index cache cleared")
	return nil
}

func (s *RAGService) Resolve(sourcePath string) domain.Source {
	return s.resolver.Resolve(sourcePath)
}

func (s *RAGService) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}
