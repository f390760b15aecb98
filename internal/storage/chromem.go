package storage

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/hyperjump/docsync/internal/embedding"
	"github.com/hyperjump/docsync/internal/models"
	"github.com/hyperjump/docsync/pkg/utils"
)

const (
	metaSource = "source"
	metaIndex  = "chunk_index"
	metaStart  = "start_offset"
	metaEnd    = "end_offset"
	metaTime   = "created_at"
)

// ChromemStore implements Store with the embedded chromem-go vector database.
// An empty path keeps the database in memory only.
type ChromemStore struct {
	db         *chromem.DB
	collection string
	embedFunc  chromem.EmbeddingFunc
	logger     *zap.Logger
}

// NewChromemStore opens a chromem database. When path is set the database is
// persisted there (gob files, uncompressed).
func NewChromemStore(path, collection string, embedder embedding.Embedder, logger *zap.Logger) (*ChromemStore, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
		}
	}
	if collection == "" {
		collection = DefaultCollection
	}
	s := &ChromemStore{db: db, collection: collection, logger: utils.LoggerOrNop(logger)}
	// A non-nil embedding func keeps chromem from defaulting to its own OpenAI client.
	s.embedFunc = func(ctx context.Context, text string) ([]float32, error) {
		if embedder == nil {
			return nil, errors.New("chromem store has no embedder for query text")
		}
		return embedder.Embed(ctx, text)
	}
	return s, nil
}

func (s *ChromemStore) getOrCreateCollection() (*chromem.Collection, error) {
	c, err := s.db.GetOrCreateCollection(s.collection, nil, s.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", s.collection, err)
	}
	return c, nil
}

// DeleteAll deletes the collection; it is recreated on the next insert.
func (s *ChromemStore) DeleteAll(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.collection); err != nil {
		return fmt.Errorf("deleting collection %s: %w", s.collection, err)
	}
	s.logger.Debug("deleted chromem collection", zap.String("collection", s.collection))
	return nil
}

// BulkInsert adds all chunks with their precomputed embeddings.
func (s *ChromemStore) BulkInsert(ctx context.Context, chunks []*models.Chunk) error {
	if err := checkEmbeddings(chunks); err != nil {
		return err
	}
	c, err := s.getOrCreateCollection()
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = chromem.Document{
			ID:        ch.ID,
			Content:   ch.Content,
			Metadata:  chunkMetadata(ch),
			Embedding: ch.Embedding,
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	s.logger.Debug("added documents to chromem",
		zap.String("collection", s.collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Count returns the number of documents in the collection.
func (s *ChromemStore) Count(ctx context.Context) (int64, error) {
	c := s.db.GetCollection(s.collection, s.embedFunc)
	if c == nil {
		return 0, nil
	}
	return int64(c.Count()), nil
}

// Search returns the k chunks most similar to query.
func (s *ChromemStore) Search(ctx context.Context, query []float32, k int) ([]*models.QueryResult, error) {
	c := s.db.GetCollection(s.collection, s.embedFunc)
	if c == nil || c.Count() == 0 || k <= 0 {
		return nil, nil
	}
	// chromem requires nResults <= document count.
	k = min(k, c.Count())
	res, err := c.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", s.collection, err)
	}
	out := make([]*models.QueryResult, len(res))
	for i, r := range res {
		ch := chunkFromMetadata(r.Metadata)
		ch.ID = r.ID
		ch.Content = r.Content
		out[i] = &models.QueryResult{Chunk: ch, Score: float64(r.Similarity), Rank: i + 1}
	}
	return out, nil
}

// Close is a no-op; persistent databases write through on every change.
func (s *ChromemStore) Close() error {
	return nil
}

func chunkMetadata(c *models.Chunk) map[string]string {
	return map[string]string{
		metaSource: c.Source,
		metaIndex:  strconv.Itoa(c.Index),
		metaStart:  strconv.Itoa(c.Start),
		metaEnd:    strconv.Itoa(c.End),
		metaTime:   c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func chunkFromMetadata(m map[string]string) *models.Chunk {
	c := &models.Chunk{Source: m[metaSource]}
	c.Index, _ = strconv.Atoi(m[metaIndex])
	c.Start, _ = strconv.Atoi(m[metaStart])
	c.End, _ = strconv.Atoi(m[metaEnd])
	c.CreatedAt, _ = time.Parse(time.RFC3339, m[metaTime])
	return c
}

var (
	_ Store    = (*ChromemStore)(nil)
	_ Searcher = (*ChromemStore)(nil)
)
