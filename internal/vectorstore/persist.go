package vectorstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"wikirag/internal/domain"
)

const (
	ManifestFile    = "index.yaml"
	DatabaseFile    = "index.db"
	ManifestVersion = 1
)

var (
	// ErrUnsafeLoad is returned when Load is called without the explicit opt-in.
	ErrUnsafeLoad = errors.New("vectorstore: loading an index requires AllowDangerousDeserialization")
	// ErrModelMismatch means the index was built with another embedding model.
	ErrModelMismatch = errors.New("vectorstore: index embedder does not match query embedder")
	ErrNotFound      = errors.New("vectorstore: no index found")
)

// Manifest describes a persisted index.
type Manifest struct {
	Version   int       `yaml:"version"`
	BuildID   string    `yaml:"build_id"`
	Embedder  string    `yaml:"embedder"`
	Dimension int       `yaml:"dimension"`
	Chunks    int       `yaml:"chunks"`
	Documents int       `yaml:"documents"`
	BuiltAt   time.Time `yaml:"built_at"`
	Summary   string    `yaml:"summary,omitempty"`
}

// SaveOptions carries corpus facts the index itself does not know.
type SaveOptions struct {
	Documents int
	Summary   string
}

// LoadOptions mirrors the explicit opt-in required to read index files.
// Load trusts whatever is on disk at the given path.
type LoadOptions struct {
	AllowDangerousDeserialization bool
}

type chunkRow struct {
	Position   int    `db:"position"`
	ID         string `db:"id"`
	SourcePath string `db:"source_path"`
	ChunkIndex int    `db:"chunk_index"`
	Text       string `db:"text"`
	Vector     []byte `db:"vector"`
}

const schema = `CREATE TABLE IF NOT EXISTS chunks (
	position INTEGER PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	source_path TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	text TEXT NOT NULL,
	vector BLOB NOT NULL
)`

// Save writes the index into dir (index.db plus index.yaml), replacing any
// files of a previous save in the same directory.
func (x *Index) Save(dir string, opts SaveOptions) error {
	x.mu.RLock()
	chunks, vectors := x.chunks, x.vectors
	model, dim := x.model, x.dimension
	x.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	dbPath := filepath.Join(dir, DatabaseFile)
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old index db: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open index db: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO chunks (position, id, source_path, chunk_index, text, vector) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, ch := range chunks {
		if _, err := stmt.Exec(i, ch.ID, ch.SourcePath, ch.Index, ch.Text, encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	m := &Manifest{
		Version:   ManifestVersion,
		BuildID:   uuid.NewString(),
		Embedder:  model,
		Dimension: dim,
		Chunks:    len(chunks),
		Documents: opts.Documents,
		BuiltAt:   time.Now().UTC(),
		Summary:   opts.Summary,
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	x.mu.Lock()
	x.manifest = m
	x.mu.Unlock()
	return nil
}

// ReadManifest reads index.yaml from dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dir)
		}
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("vectorstore: unsupported index version %d", m.Version)
	}
	return &m, nil
}

// Load reads the index saved in dir and binds it to emb for query embedding.
func Load(dir string, emb domain.Embedder, opts LoadOptions) (*Index, error) {
	if !opts.AllowDangerousDeserialization {
		return nil, ErrUnsafeLoad
	}
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if emb != nil && m.Embedder != emb.Name() {
		return nil, fmt.Errorf("%w: index %q, embedder %q", ErrModelMismatch, m.Embedder, emb.Name())
	}

	dbPath := filepath.Join(dir, DatabaseFile)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	defer db.Close()

	var rows []chunkRow
	if err := db.Select(&rows, `SELECT position, id, source_path, chunk_index, text, vector FROM chunks ORDER BY position`); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	if len(rows) != m.Chunks {
		return nil, fmt.Errorf("vectorstore: manifest lists %d chunks, database has %d", m.Chunks, len(rows))
	}

	x := New(emb)
	x.model = m.Embedder
	x.dimension = m.Dimension
	x.manifest = m
	x.chunks = make([]domain.Chunk, len(rows))
	x.vectors = make([][]float64, len(rows))
	for i, r := range rows {
		vec, err := decodeVector(r.Vector, m.Dimension)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", r.ID, err)
		}
		x.chunks[i] = domain.Chunk{ID: r.ID, Text: r.Text, SourcePath: r.SourcePath, Index: r.ChunkIndex}
		x.vectors[i] = vec
		x.ids[r.ID] = struct{}{}
	}
	return x, nil
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte, dim int) ([]float64, error) {
	if len(b) != 8*dim {
		return nil, fmt.Errorf("%w: blob holds %d bytes, want %d", ErrDimension, len(b), 8*dim)
	}
	v := make([]float64, dim)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}
