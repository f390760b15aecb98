// Package config provides configuration loading and structs for docsync.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/docsync/internal/embedding"
	"github.com/hyperjump/docsync/internal/source"
	"github.com/hyperjump/docsync/internal/storage"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables that override secrets from the config file.
const (
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvWeaviateKey   = "WEAVIATE_APIKEY"
	EnvQdrantKey     = "QDRANT_API_KEY"
	dotEnvFile       = ".env"
	defaultStructure = "nested"
)

// Config holds all configuration for one docsync run.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Source    SourceConfig    `yaml:"source"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
}

// SourceConfig names the repository directory to ingest.
type SourceConfig struct {
	Owner     string `yaml:"owner"`
	Repo      string `yaml:"repo"`
	Path      string `yaml:"path"`
	Ref       string `yaml:"ref"`
	Structure string `yaml:"structure"`
	MaxDepth  int    `yaml:"max_depth"`
	Token     string `yaml:"token"`
	APIURL    string `yaml:"api_url"`
}

// ChunkingConfig holds chunk size and overlap, both in characters.
// A nil ChunkOverlap means unset; an explicit 0 disables overlap.
type ChunkingConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap,omitempty"`
}

// Overlap returns the configured overlap, or 0 when unset.
func (c ChunkingConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return 0
	}
	return *c.ChunkOverlap
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
	ModelPath  string `yaml:"model_path"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// StoreConfig selects the vector store backend and collection.
type StoreConfig struct {
	Backend     string         `yaml:"backend"`
	Collection  string         `yaml:"collection"`
	SQLitePath  string         `yaml:"sqlite_path"`
	ChromemPath string         `yaml:"chromem_path"`
	Weaviate    WeaviateConfig `yaml:"weaviate"`
	Qdrant      QdrantConfig   `yaml:"qdrant"`
}

// WeaviateConfig holds Weaviate connection settings.
type WeaviateConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// Load reads and parses the config file at path, applies defaults, expands paths
// and applies environment overrides. A .env file in the working directory is
// loaded first when present; it never replaces variables already set.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.SQLitePath = expandPath(cfg.Store.SQLitePath, configDir)
	cfg.Store.ChromemPath = expandPath(cfg.Store.ChromemPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	ApplyEnv(&cfg)
	return &cfg, nil
}

// Default returns a config with defaults and environment overrides applied,
// for runs without a config file. Relative paths resolve against the working directory.
func Default() (*Config, error) {
	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}
	var cfg Config
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv replaces secrets with their environment variables when those are set.
func ApplyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&cfg.Source.Token, EnvGitHubToken)
	override(&cfg.Embedding.APIKey, EnvOpenAIKey)
	override(&cfg.Store.Weaviate.APIKey, EnvWeaviateKey)
	override(&cfg.Store.Qdrant.APIKey, EnvQdrantKey)
}

// Validate checks that cfg describes a runnable sync.
func (c *Config) Validate() error {
	if c.Source.Owner == "" || c.Source.Repo == "" {
		return fmt.Errorf("%w: source.owner and source.repo are required", ErrInvalidConfig)
	}
	if _, err := source.ParseStructure(c.Source.Structure); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Source.MaxDepth < 1 {
		return fmt.Errorf("%w: source.max_depth must be at least 1", ErrInvalidConfig)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunking.chunk_size must be positive", ErrInvalidConfig)
	}
	if overlap := c.Chunking.Overlap(); overlap < 0 || overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunking.chunk_overlap %d must be in [0, chunk_size %d)",
			ErrInvalidConfig, overlap, c.Chunking.ChunkSize)
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	switch strings.ToLower(c.Store.Backend) {
	case storage.BackendSQLite, storage.BackendChromem, storage.BackendWeaviate, storage.BackendQdrant:
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	e := c.Embedding
	if e.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding.batch_size must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(e.Provider) {
	case embedding.ProviderOpenAI:
		if e.APIKey == "" {
			return fmt.Errorf("%w: embedding.api_key (or %s) is required for openai", ErrInvalidConfig, EnvOpenAIKey)
		}
	case embedding.ProviderONNX:
		if e.ModelPath == "" {
			return fmt.Errorf("%w: embedding.model_path is required for onnx", ErrInvalidConfig)
		}
	case embedding.ProviderMock:
	default:
		return fmt.Errorf("%w: unknown embedding.provider %q", ErrInvalidConfig, e.Provider)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GitHub returns the content API settings.
func (c *Config) GitHub() source.GitHubConfig {
	return source.GitHubConfig{
		Owner:  c.Source.Owner,
		Repo:   c.Source.Repo,
		Ref:    c.Source.Ref,
		Token:  c.Source.Token,
		APIURL: c.Source.APIURL,
	}
}

// EmbeddingProvider returns the embedding provider settings.
func (c *Config) EmbeddingProvider() embedding.Config {
	e := c.Embedding
	return embedding.Config{
		Provider:   e.Provider,
		Model:      e.Model,
		APIKey:     e.APIKey,
		BaseURL:    e.BaseURL,
		Dimensions: e.Dimensions,
		CacheSize:  e.CacheSize,
		ModelPath:  e.ModelPath,
		MaxTokens:  e.MaxTokens,
	}
}

// StoreBackend returns the vector store settings.
func (c *Config) StoreBackend() storage.Config {
	s := c.Store
	return storage.Config{
		Backend:     s.Backend,
		Collection:  s.Collection,
		SQLitePath:  s.SQLitePath,
		ChromemPath: s.ChromemPath,
		Weaviate:    storage.WeaviateConfig{Host: s.Weaviate.Host, APIKey: s.Weaviate.APIKey},
		Qdrant: storage.QdrantConfig{
			Host:   s.Qdrant.Host,
			Port:   s.Qdrant.Port,
			APIKey: s.Qdrant.APIKey,
			UseTLS: s.Qdrant.UseTLS,
		},
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. ":memory:" and "" are kept as is.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
