package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wikirag/internal/chunker"
	"wikirag/internal/corpus"
	"wikirag/internal/domain"
	"wikirag/internal/keyword"
	"wikirag/internal/vectorstore"
)

const (
	DefaultBatchSize = 100
	// KeywordDir is the bleve index stored inside the index directory.
	KeywordDir = "keyword"
)

// Syncer refreshes the wiki checkout before indexing.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Config controls a full index rebuild.
type Config struct {
	RepoPath         string
	IndexPath        string
	BatchSize        int
	SummarySentences int
	Keyword          bool
}

// Result reports what a rebuild produced.
type Result struct {
	Documents int
	Chunks    int
	IndexPath string
	Summary   string
	Elapsed   time.Duration
}

// Builder runs the offline pipeline: sync, load, chunk, embed, persist.
type Builder struct {
	cfg        Config
	syncer     Syncer
	chunker    domain.Chunker
	embedder   domain.Embedder
	summarizer domain.Summarizer
}

// NewBuilder wires a builder. syncer and summarizer may be nil.
func NewBuilder(cfg Config, syncer Syncer, ch domain.Chunker, emb domain.Embedder, sum domain.Summarizer) *Builder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Builder{cfg: cfg, syncer: syncer, chunker: ch, embedder: emb, summarizer: sum}
}

// Run performs a full rebuild under the index lock. On any failure the
// previously persisted index is left untouched.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	lock := NewLock(b.cfg.IndexPath)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Printf("Warning: %v", err)
		}
	}()
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go lock.Heartbeat(hbCtx, LockStaleAfter/4)

	if b.syncer != nil {
		log.Printf("Step 1: Syncing wiki into %s...", b.cfg.RepoPath)
		if err := b.syncer.Sync(ctx); err != nil {
			return nil, err
		}
		log.Printf("✓ Wiki synced")
	} else {
		log.Printf("Step 1: Skipping wiki sync")
	}

	log.Printf("Step 2: Loading documents from %s...", b.cfg.RepoPath)
	docs, err := corpus.Load(b.cfg.RepoPath)
	if err != nil {
		return nil, err
	}
	log.Printf("✓ Loaded %d documents", len(docs))

	log.Printf("Step 3: Splitting documents...")
	chunks, err := chunker.SplitDocuments(b.chunker, docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIngestion, err)
	}
	log.Printf("✓ Created %d chunks", len(chunks))

	log.Printf("Step 4: Creating embeddings with %s (batches of %d)...", b.embedder.Name(), b.cfg.BatchSize)
	idx, err := Build(ctx, b.embedder, chunks, b.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	summary := b.summarize(docs)

	log.Printf("Step 5: Saving index to %s...", b.cfg.IndexPath)
	opts := vectorstore.SaveOptions{Documents: len(docs), Summary: summary}
	if err := Persist(b.cfg.IndexPath, idx, opts, b.cfg.Keyword); err != nil {
		return nil, err
	}

	res := &Result{
		Documents: len(docs),
		Chunks:    idx.Len(),
		IndexPath: b.cfg.IndexPath,
		Summary:   summary,
		Elapsed:   time.Since(start).Round(time.Millisecond),
	}
	log.Printf("✓ Index saved to %s (%d chunks in %v)", res.IndexPath, res.Chunks, res.Elapsed)
	return res, nil
}

func (b *Builder) summarize(docs []domain.Document) string {
	if b.summarizer == nil || len(docs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, d := range docs {
		sb.WriteString(d.Text)
		sb.WriteString("\n")
	}
	summary, err := b.summarizer.Summarize(sb.String(), b.cfg.SummarySentences)
	if err != nil {
		log.Printf("Warning: corpus summary failed: %v", err)
		return ""
	}
	return summary
}

// Build folds chunks into one index: the first batch creates it, every later
// batch is embedded as a standalone index and merged in. Any embedding
// failure aborts the whole build.
func Build(ctx context.Context, emb domain.Embedder, chunks []domain.Chunk, batchSize int) (*vectorstore.Index, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var idx *vectorstore.Index
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		log.Printf("Processing %d-%d/%d chunks...", start+1, end, len(chunks))

		part, err := vectorstore.FromChunks(ctx, emb, chunks[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start+1, end, err)
		}
		if idx == nil {
			idx = part
			continue
		}
		if err := idx.Merge(part); err != nil {
			return nil, fmt.Errorf("merge chunks %d-%d: %w", start+1, end, err)
		}
	}
	if idx == nil {
		idx = vectorstore.New(emb)
	}
	return idx, nil
}

// Persist writes the index (and optionally the keyword index) into a
// temporary sibling directory and swaps it into place.
func Persist(path string, idx *vectorstore.Index, opts vectorstore.SaveOptions, withKeyword bool) error {
	path = filepath.Clean(path)
	tmp := path + ".tmp"
	old := path + ".old"

	// leftovers from a crashed build
	os.RemoveAll(tmp)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index parent: %w", err)
	}

	if err := idx.Save(tmp, opts); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("save index: %w", err)
	}
	if withKeyword {
		kw, err := keyword.Build(filepath.Join(tmp, KeywordDir), idx.Chunks())
		if err != nil {
			os.RemoveAll(tmp)
			return err
		}
		if err := kw.Close(); err != nil {
			os.RemoveAll(tmp)
			return fmt.Errorf("close keyword index: %w", err)
		}
	}

	os.RemoveAll(old)
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, old); err != nil {
			os.RemoveAll(tmp)
			return fmt.Errorf("move old index aside: %w", err)
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		if rerr := os.Rename(old, path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			log.Printf("Warning: could not restore previous index: %v", rerr)
		}
		os.RemoveAll(tmp)
		return fmt.Errorf("swap index into place: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		log.Printf("Warning: could not remove previous index: %v", err)
	}
	return nil
}
