package config

import (
	"github.com/hyperjump/docsync/internal/embedding"
	"github.com/hyperjump/docsync/internal/indexer"
	"github.com/hyperjump/docsync/internal/source"
	"github.com/hyperjump/docsync/internal/storage"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Source.Structure == "" {
		cfg.Source.Structure = defaultStructure
	}
	if cfg.Source.MaxDepth == 0 {
		cfg.Source.MaxDepth = source.DefaultMaxDepth
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = indexer.DefaultChunkSize
	}
	if cfg.Chunking.ChunkOverlap == nil {
		overlap := indexer.DefaultChunkOverlap
		if overlap >= cfg.Chunking.ChunkSize {
			overlap = 0
		}
		cfg.Chunking.ChunkOverlap = &overlap
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = embedding.ProviderOpenAI
	}
	if cfg.Embedding.Model == "" && cfg.Embedding.Provider == embedding.ProviderOpenAI {
		cfg.Embedding.Model = embedding.DefaultOpenAIModel
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Provider {
		case embedding.ProviderONNX:
			cfg.Embedding.Dimensions = 384
		default:
			cfg.Embedding.Dimensions = 1536
		}
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = storage.BackendSQLite
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = storage.DefaultCollection
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "./data/docsync.db"
	}
	if cfg.Store.ChromemPath == "" {
		cfg.Store.ChromemPath = "./data/chromem"
	}
	if cfg.Store.Weaviate.Host == "" {
		cfg.Store.Weaviate.Host = "http://localhost:8080"
	}
	if cfg.Store.Qdrant.Host == "" {
		cfg.Store.Qdrant.Host = "localhost"
	}
	if cfg.Store.Qdrant.Port == 0 {
		cfg.Store.Qdrant.Port = 6334
	}
}
