package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"wikirag/internal/config"
	"wikirag/internal/domain"
	"wikirag/internal/indexer"
	"wikirag/internal/keyword"
	"wikirag/internal/vectorstore"
)

// ErrKeywordDisabled is returned when the index was configured without a
// keyword side-index.
var ErrKeywordDisabled = errors.New("keyword index disabled")

// Factories builds the model clients. Nil fields fall back to config wiring.
type Factories struct {
	Embedder  func() (domain.Embedder, error)
	Generator func() (domain.Generator, error)
}

// Context owns the process-wide query resources. Each is created on first
// use and reused until Invalidate. Failed loads are not cached.
type Context struct {
	cfg       *config.AppConfig
	factories Factories

	mu        sync.Mutex
	embedder  domain.Embedder
	generator domain.Generator
	index     *vectorstore.Index
	keyword   *keyword.Index
}

func NewContext(cfg *config.AppConfig, factories Factories) *Context {
	if factories.Embedder == nil {
		factories.Embedder = func() (domain.Embedder, error) { return NewEmbedder(cfg) }
	}
	if factories.Generator == nil {
		factories.Generator = func() (domain.Generator, error) { return NewGenerator(cfg) }
	}
	return &Context{cfg: cfg, factories: factories}
}

// Index returns the persisted index, loading it on first call. A build in
// progress makes the load fail with indexer.ErrLocked.
func (c *Context) Index(ctx context.Context) (*vectorstore.Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index != nil {
		return c.index, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if indexer.NewLock(c.cfg.Index.Path).Held() {
		return nil, fmt.Errorf("%w: %s", indexer.ErrLocked, c.cfg.Index.Path)
	}
	emb, err := c.embedderLocked()
	if err != nil {
		return nil, err
	}
	idx, err := vectorstore.Load(c.cfg.Index.Path, emb, vectorstore.LoadOptions{AllowDangerousDeserialization: true})
	if err != nil {
		return nil, err
	}
	c.index = idx
	return idx, nil
}

// Keyword returns the bleve side-index stored alongside the vector index.
func (c *Context) Keyword() (*keyword.Index, error) {
	if !c.cfg.Index.Keyword {
		return nil, ErrKeywordDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keyword != nil {
		return c.keyword, nil
	}
	if indexer.NewLock(c.cfg.Index.Path).Held() {
		return nil, fmt.Errorf("%w: %s", indexer.ErrLocked, c.cfg.Index.Path)
	}
	kw, err := keyword.Open(filepath.Join(c.cfg.Index.Path, indexer.KeywordDir))
	if err != nil {
		return nil, err
	}
	c.keyword = kw
	return kw, nil
}

// Generator returns a generator whose client is created on the first call.
func (c *Context) Generator() domain.Generator {
	return lazyGenerator{c: c}
}

func (c *Context) generatorClient() (domain.Generator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generator != nil {
		return c.generator, nil
	}
	gen, err := c.factories.Generator()
	if err != nil {
		return nil, err
	}
	c.generator = gen
	return gen, nil
}

func (c *Context) embedderLocked() (domain.Embedder, error) {
	if c.embedder != nil {
		return c.embedder, nil
	}
	emb, err := c.factories.Embedder()
	if err != nil {
		return nil, err
	}
	c.embedder = emb
	return emb, nil
}

// Invalidate drops the cached indexes so the next call reloads from disk.
func (c *Context) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = nil
	return c.closeKeywordLocked()
}

func (c *Context) Close() error {
	return c.Invalidate()
}

func (c *Context) closeKeywordLocked() error {
	if c.keyword == nil {
		return nil
	}
	err := c.keyword.Close()
	c.keyword = nil
	return err
}

type lazyGenerator struct {
	c *Context
}

func (g lazyGenerator) Name() string {
	if o := g.c.cfg.Generator.OpenAI; o != nil && o.Model != "" {
		return "openai:" + o.Model
	}
	return g.c.cfg.Generator.Type
}

func (g lazyGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	gen, err := g.c.generatorClient()
	if err != nil {
		return "", err
	}
	return gen.Generate(ctx, prompt)
}
