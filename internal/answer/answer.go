package answer

import (
	"context"
	"fmt"
	"strings"

	"wikirag/internal/domain"
	"wikirag/internal/provenance"
)

const (
	DefaultK          = 5
	DefaultMaxSources = 3
	NotFoundAnswer    = "I couldn't find any relevant information in the wiki."
	contextSeparator  = "\n\n---\n\n"
)

const promptTemplate = `You are a helpful assistant answering questions based on the company wiki.

Rules:
- Answer based ONLY on the provided context
- If the context doesn't contain the answer, say "I couldn't find that in the wiki"
- Be concise and friendly
- Mention which wiki page has more details when relevant

Context:
%s

Question: %s

Answer:`

// Searcher is the retrieval step the synthesizer depends on.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

type Options struct {
	K          int
	MaxSources int
}

// Synthesizer answers questions from retrieved wiki chunks.
type Synthesizer struct {
	searcher   Searcher
	generator  domain.Generator
	resolver   *provenance.Resolver
	k          int
	maxSources int
}

func NewSynthesizer(searcher Searcher, generator domain.Generator, resolver *provenance.Resolver, opts Options) *Synthesizer {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = DefaultMaxSources
	}
	return &Synthesizer{
		searcher:   searcher,
		generator:  generator,
		resolver:   resolver,
		k:          opts.K,
		maxSources: opts.MaxSources,
	}
}

// Ask retrieves context for query and generates a grounded answer. When
// nothing is retrieved the generator is not called.
func (s *Synthesizer) Ask(ctx context.Context, query string) (*domain.AnswerResult, error) {
	results, err := s.searcher.Search(ctx, query, s.k)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &domain.AnswerResult{Answer: NotFoundAnswer, Sources: []domain.Source{}}, nil
	}

	text, err := s.generator.Generate(ctx, BuildPrompt(query, results))
	if err != nil {
		return nil, err
	}
	return &domain.AnswerResult{
		Answer:  text,
		Sources: Sources(s.resolver, results, s.maxSources),
	}, nil
}

// BuildContext joins results in retrieval order, each tagged with its source.
func BuildContext(results []domain.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[Source: %s]\n%s", r.SourcePath, r.Content)
	}
	return strings.Join(parts, contextSeparator)
}

func BuildPrompt(query string, results []domain.SearchResult) string {
	return fmt.Sprintf(promptTemplate, BuildContext(results), query)
}

// Sources returns up to limit distinct pages in first-seen order.
func Sources(resolver *provenance.Resolver, results []domain.SearchResult, limit int) []domain.Source {
	seen := make(map[string]struct{}, len(results))
	sources := make([]domain.Source, 0, min(limit, len(results)))
	for _, r := range results {
		if len(sources) >= limit {
			break
		}
		if _, ok := seen[r.SourcePath]; ok {
			continue
		}
		seen[r.SourcePath] = struct{}{}
		sources = append(sources, resolver.Resolve(r.SourcePath))
	}
	return sources
}
