package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/hyperjump/docsync/internal/models"
	"github.com/hyperjump/docsync/pkg/utils"
)

const qdrantUpsertBatch = 256

// QdrantConfig locates a Qdrant server's gRPC endpoint.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// QdrantStore implements Store with one Qdrant collection. Points use the
// chunk's UUID as their ID and carry the chunk fields as payload.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimensions int
	logger     *zap.Logger
}

// NewQdrantStore connects to Qdrant. dimensions sizes the collection when it is created.
func NewQdrantStore(cfg QdrantConfig, collection string, dimensions int, logger *zap.Logger) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	logger = utils.LoggerOrNop(logger)
	if !cfg.UseTLS && cfg.APIKey != "" {
		logger.Warn("qdrant api key sent over plaintext gRPC", zap.String("host", cfg.Host))
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &QdrantStore{client: client, collection: collection, dimensions: dimensions, logger: logger}, nil
}

// DeleteAll deletes the collection when it exists.
func (s *QdrantStore) DeleteAll(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("deleting collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dims int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}
	if dims <= 0 {
		return errors.New("qdrant collection needs a positive vector size")
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.collection, err)
	}
	s.logger.Info("created qdrant collection", zap.String("collection", s.collection), zap.Int("vector_size", dims))
	return nil
}

// BulkInsert creates the collection when missing and upserts all points, waiting for each batch to apply.
func (s *QdrantStore) BulkInsert(ctx context.Context, chunks []*models.Chunk) error {
	if err := checkEmbeddings(chunks); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	dims := s.dimensions
	if dims <= 0 {
		dims = len(chunks[0].Embedding)
	}
	if err := s.ensureCollection(ctx, dims); err != nil {
		return err
	}
	for i := 0; i < len(chunks); i += qdrantUpsertBatch {
		end := min(i+qdrantUpsertBatch, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-i)
		for _, c := range chunks[i:end] {
			points = append(points, qdrantPoint(c))
		}
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upserting points %d-%d to collection %s: %w", i, end, s.collection, err)
		}
	}
	return nil
}

func qdrantPoint(c *models.Chunk) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(c.ID),
		Vectors: qdrant.NewVectors(c.Embedding...),
		Payload: map[string]*qdrant.Value{
			"source":       {Kind: &qdrant.Value_StringValue{StringValue: c.Source}},
			"chunk_index":  {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.Index)}},
			"start_offset": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.Start)}},
			"end_offset":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.End)}},
			"content":      {Kind: &qdrant.Value_StringValue{StringValue: c.Content}},
			"created_at":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: c.CreatedAt.Unix()}},
		},
	}
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) *models.Chunk {
	c := &models.Chunk{ID: id}
	for k, v := range payload {
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			switch k {
			case "source":
				c.Source = val.StringValue
			case "content":
				c.Content = val.StringValue
			}
		case *qdrant.Value_IntegerValue:
			switch k {
			case "chunk_index":
				c.Index = int(val.IntegerValue)
			case "start_offset":
				c.Start = int(val.IntegerValue)
			case "end_offset":
				c.End = int(val.IntegerValue)
			case "created_at":
				c.CreatedAt = time.Unix(val.IntegerValue, 0).UTC()
			}
		}
	}
	return c
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int64, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil || !exists {
		return 0, err
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting collection %s: %w", s.collection, err)
	}
	return int64(n), nil
}

// Search queries the collection for the k nearest points.
func (s *QdrantStore) Search(ctx context.Context, query []float32, k int) ([]*models.QueryResult, error) {
	if k <= 0 {
		return nil, nil
	}
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", s.collection, err)
	}
	out := make([]*models.QueryResult, len(res))
	for i, p := range res {
		out[i] = &models.QueryResult{
			Chunk: chunkFromPayload(p.GetId().GetUuid(), p.GetPayload()),
			Score: float64(p.GetScore()),
			Rank:  i + 1,
		}
	}
	return out, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

var (
	_ Store    = (*QdrantStore)(nil)
	_ Searcher = (*QdrantStore)(nil)
)
