package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"wikirag/internal/domain"
)

// WikiConfig locates the Azure DevOps wiki and its local checkout.
type WikiConfig struct {
	Host         string `yaml:"host"`
	Organization string `yaml:"organization"`
	Project      string `yaml:"project"`
	// PATEnv names the environment variable holding the access token.
	PATEnv   string `yaml:"pat_env"`
	RepoPath string `yaml:"repo_path"`
	SyncURL  string `yaml:"sync_url,omitempty"`
}

// PAT returns the access token from the environment.
func (w WikiConfig) PAT() string { return os.Getenv(w.PATEnv) }

// IndexConfig configures the persisted index and its builder.
type IndexConfig struct {
	Path      string `yaml:"path"`
	BatchSize int    `yaml:"batch_size"`
	Keyword   bool   `yaml:"keyword"`
	Schedule  string `yaml:"schedule,omitempty"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	MaxRetries        int    `yaml:"max_retries"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
}

type OpenAIGeneratorConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	TimeoutSecs int      `yaml:"timeout_secs"`
	MaxRetries  int      `yaml:"max_retries"`
}

// GeneratorConfig selects the language model used for answers.
type GeneratorConfig struct {
	Type   string                 `yaml:"type"`
	OpenAI *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk,omitempty"`
	OverlapSentences  int    `yaml:"overlap_sentences,omitempty"`
}

type RetrievalConfig struct {
	K          int `yaml:"k"`
	MaxSources int `yaml:"max_sources"`
}

// SummarizerConfig selects the corpus summarizer stored with the index.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Wiki       WikiConfig       `yaml:"wiki"`
	Index      IndexConfig      `yaml:"index"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Server     ServerConfig     `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults. A .env file in the working directory is loaded first and
// environment variables override file values.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := validateDocument(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrConfiguration, path, err)
		}
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/wikirag/config.yaml.
// If neither exists, it writes defaults to ~/.config/wikirag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "wikirag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Wiki:       WikiConfig{Host: "dev.azure.com", PATEnv: "AZURE_DEVOPS_PAT", RepoPath: "./wiki_repo"},
		Index:      IndexConfig{Path: "./wiki_index", BatchSize: 100, Keyword: true},
		Embedder:   EmbedderConfig{Type: "openai"},
		Generator:  GeneratorConfig{Type: "openai"},
		Chunker:    ChunkerConfig{Type: "markdown", ChunkSize: 1000, ChunkOverlap: 100},
		Retrieval:  RetrievalConfig{K: 5, MaxSources: 3},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
		Server:     ServerConfig{Addr: ":8080"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Wiki.Host == "" {
		cfg.Wiki.Host = "dev.azure.com"
	}
	if cfg.Wiki.PATEnv == "" {
		cfg.Wiki.PATEnv = "AZURE_DEVOPS_PAT"
	}
	if cfg.Wiki.RepoPath == "" {
		cfg.Wiki.RepoPath = "./wiki_repo"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "./wiki_index"
	}
	if cfg.Index.BatchSize == 0 {
		cfg.Index.BatchSize = 100
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "markdown"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.Type == "sentence" && cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 5
	}
	if cfg.Retrieval.MaxSources == 0 {
		cfg.Retrieval.MaxSources = 3
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{MaxRetries: 2}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "hashing" {
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 256
		}
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	if cfg.Generator.OpenAI == nil {
		cfg.Generator.OpenAI = &OpenAIGeneratorConfig{MaxRetries: 2}
	}
	g := cfg.Generator.OpenAI
	if g.BaseURL == "" {
		g.BaseURL = "https://api.openai.com/v1"
	}
	if g.APIKeyEnv == "" {
		g.APIKeyEnv = "OPENAI_API_KEY"
	}
	if g.Model == "" {
		g.Model = "gpt-4o-mini"
	}
	if g.Temperature == nil {
		t := 0.3
		g.Temperature = &t
	}
	if g.TimeoutSecs == 0 {
		g.TimeoutSecs = 60
	}
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("AZURE_DEVOPS_ORG"); v != "" {
		cfg.Wiki.Organization = v
	}
	if v := os.Getenv("AZURE_DEVOPS_PROJECT"); v != "" {
		cfg.Wiki.Project = v
	}
	if v := os.Getenv("WIKI_REPO_PATH"); v != "" {
		cfg.Wiki.RepoPath = v
	}
	if v := os.Getenv("WIKI_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv("WIKIRAG_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// Validate checks the rules the schema cannot express. Organization and
// project are required by every command that touches the wiki or its URLs.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Wiki.Organization == "" {
		errs = append(errs, errors.New("wiki.organization (AZURE_DEVOPS_ORG) is required"))
	}
	if c.Wiki.Project == "" {
		errs = append(errs, errors.New("wiki.project (AZURE_DEVOPS_PROJECT) is required"))
	}
	if c.Index.Path == "" {
		errs = append(errs, errors.New("index.path is required"))
	}
	if c.Index.BatchSize < 1 {
		errs = append(errs, errors.New("index.batch_size must be at least 1"))
	}
	if c.Chunker.Type == "markdown" && c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunker.chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize))
	}
	if c.Retrieval.K < 1 {
		errs = append(errs, errors.New("retrieval.k must be at least 1"))
	}
	if c.Index.Schedule != "" {
		if _, err := cron.ParseStandard(c.Index.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("index.schedule: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}
