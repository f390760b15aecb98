// Package storage persists the chunk corpus in a vector store backend.
package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/docsync/internal/embedding"
	"github.com/hyperjump/docsync/internal/models"
)

// Store holds one collection of chunks. The collection is bound at construction.
type Store interface {
	// DeleteAll removes every chunk in the collection.
	DeleteAll(ctx context.Context) error
	// BulkInsert writes all chunks in one logical write. Each chunk must carry its embedding.
	BulkInsert(ctx context.Context, chunks []*models.Chunk) error
	// Count returns the number of chunks in the collection.
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Searcher is implemented by stores that can answer nearest-chunk queries.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]*models.QueryResult, error)
}

// Lister is implemented by stores that can return the whole collection.
type Lister interface {
	ListChunks(ctx context.Context) ([]*models.Chunk, error)
}

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendChromem  = "chromem"
	BackendWeaviate = "weaviate"
	BackendQdrant   = "qdrant"
)

// DefaultCollection is the collection chunks are written to when none is configured.
const DefaultCollection = "documents"

// Config selects and configures a store backend.
type Config struct {
	Backend     string
	Collection  string
	SQLitePath  string
	ChromemPath string
	Weaviate    WeaviateConfig
	Qdrant      QdrantConfig
}

// Open creates the configured backend. embedder supplies vector dimensions for
// backends that size their collections and query embeddings for chromem.
func Open(ctx context.Context, cfg Config, embedder embedding.Embedder, logger *zap.Logger) (Store, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	switch strings.ToLower(cfg.Backend) {
	case BackendSQLite, "":
		return NewSQLiteStore(cfg.SQLitePath, cfg.Collection)
	case BackendChromem:
		return NewChromemStore(cfg.ChromemPath, cfg.Collection, embedder, logger)
	case BackendWeaviate:
		return NewWeaviateStore(ctx, cfg.Weaviate, cfg.Collection, logger)
	case BackendQdrant:
		dims := 0
		if embedder != nil {
			dims = embedder.Dimensions()
		}
		return NewQdrantStore(cfg.Qdrant, cfg.Collection, dims, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q (supported: sqlite, chromem, weaviate, qdrant)", cfg.Backend)
	}
}

// LocalPaths returns the on-disk paths used by local backends, for disk usage reporting.
func (c Config) LocalPaths() []string {
	switch strings.ToLower(c.Backend) {
	case BackendSQLite, "":
		if c.SQLitePath == "" {
			return nil
		}
		return []string{c.SQLitePath, c.SQLitePath + "-wal", c.SQLitePath + "-shm"}
	case BackendChromem:
		if c.ChromemPath == "" {
			return nil
		}
		return []string{c.ChromemPath}
	}
	return nil
}

func checkEmbeddings(chunks []*models.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s (%s#%d) has no embedding", c.ID, c.Source, c.Index)
		}
	}
	return nil
}
