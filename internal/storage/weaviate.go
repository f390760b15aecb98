package storage

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/hyperjump/docsync/internal/models"
	"github.com/hyperjump/docsync/pkg/utils"
)

const weaviateBatchSize = 200

// WeaviateConfig locates a Weaviate server.
type WeaviateConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// WeaviateStore implements Store with one Weaviate class per collection. Vectors
// are supplied by the caller, so the class uses no vectorizer module.
type WeaviateStore struct {
	client *weaviate.Client
	class  string
	logger *zap.Logger
}

// NewWeaviateStore creates a client for cfg.Host (scheme defaults to http).
func NewWeaviateStore(ctx context.Context, cfg WeaviateConfig, collection string, logger *zap.Logger) (*WeaviateStore, error) {
	scheme, host := splitScheme(cfg.Host)
	wcfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
		wcfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     cfg.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &WeaviateStore{client: client, class: className(collection), logger: utils.LoggerOrNop(logger)}, nil
}

func splitScheme(hostURL string) (scheme, host string) {
	switch {
	case strings.HasPrefix(hostURL, "https://"):
		return "https", strings.TrimSuffix(strings.TrimPrefix(hostURL, "https://"), "/")
	case strings.HasPrefix(hostURL, "http://"):
		return "http", strings.TrimSuffix(strings.TrimPrefix(hostURL, "http://"), "/")
	}
	return "http", strings.TrimSuffix(hostURL, "/")
}

// className maps a collection name to a valid GraphQL class name: letters,
// digits and underscores, starting with an upper-case letter.
func className(collection string) string {
	var b strings.Builder
	for _, r := range collection {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || !unicode.IsLetter(rune(name[0])) {
		name = "C" + name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (s *WeaviateStore) classDefinition() *wmodels.Class {
	return &wmodels.Class{
		Class:       s.class,
		Description: "docsync chunks",
		Vectorizer:  "none",
		Properties: []*wmodels.Property{
			{Name: "chunk_id", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "chunk_index", DataType: []string{"int"}},
			{Name: "start_offset", DataType: []string{"int"}},
			{Name: "end_offset", DataType: []string{"int"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "created_at", DataType: []string{"int"}},
		},
		VectorIndexType: "hnsw",
	}
}

func (s *WeaviateStore) classExists(ctx context.Context) (bool, error) {
	return s.client.Schema().ClassExistenceChecker().WithClassName(s.class).Do(ctx)
}

// DeleteAll deletes the class and all its objects.
func (s *WeaviateStore) DeleteAll(ctx context.Context) error {
	exists, err := s.classExists(ctx)
	if err != nil {
		return fmt.Errorf("check class %s: %w", s.class, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.Schema().ClassDeleter().WithClassName(s.class).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", s.class, err)
	}
	return nil
}

// BulkInsert creates the class when missing and writes objects in batches of 200.
func (s *WeaviateStore) BulkInsert(ctx context.Context, chunks []*models.Chunk) error {
	if err := checkEmbeddings(chunks); err != nil {
		return err
	}
	exists, err := s.classExists(ctx)
	if err != nil {
		return fmt.Errorf("check class %s: %w", s.class, err)
	}
	if !exists {
		if err := s.client.Schema().ClassCreator().WithClass(s.classDefinition()).Do(ctx); err != nil {
			return fmt.Errorf("failed to create class %s: %w", s.class, err)
		}
	}
	total := len(chunks)
	for i := 0; i < total; i += weaviateBatchSize {
		end := min(i+weaviateBatchSize, total)
		batcher := s.client.Batch().ObjectsBatcher()
		for _, c := range chunks[i:end] {
			batcher = batcher.WithObjects(&wmodels.Object{
				Class:      s.class,
				Properties: weaviateProperties(c),
				Vector:     c.Embedding,
			})
		}
		resp, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %w", i, end, err)
		}
		if err := batchErrors(resp); err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %w", i, end, err)
		}
		s.logger.Debug("inserted weaviate batch", zap.Int("from", i), zap.Int("to", end), zap.Int("total", total))
	}
	return nil
}

func weaviateProperties(c *models.Chunk) map[string]interface{} {
	return map[string]interface{}{
		"chunk_id":     c.ID,
		"source":       c.Source,
		"chunk_index":  c.Index,
		"start_offset": c.Start,
		"end_offset":   c.End,
		"content":      c.Content,
		"created_at":   c.CreatedAt.Unix(),
	}
}

// batchErrors collects per-object errors, which Weaviate reports inside a successful response.
func batchErrors(resp []wmodels.ObjectsGetResponse) error {
	var msgs []string
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%d object errors: %s", len(msgs), strings.Join(msgs, "; "))
}

// Count aggregates the object count of the class.
func (s *WeaviateStore) Count(ctx context.Context) (int64, error) {
	exists, err := s.classExists(ctx)
	if err != nil || !exists {
		return 0, err
	}
	resp, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("aggregate %s: %s", s.class, resp.Errors[0].Message)
	}
	return aggregateCount(resp.Data, s.class)
}

func aggregateCount(data map[string]wmodels.JSONObject, class string) (int64, error) {
	agg, ok := data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("aggregate response missing Aggregate")
	}
	items, ok := agg[class].([]interface{})
	if !ok || len(items) == 0 {
		return 0, nil
	}
	item, _ := items[0].(map[string]interface{})
	meta, _ := item["meta"].(map[string]interface{})
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, fmt.Errorf("aggregate response missing meta.count")
	}
	return int64(count), nil
}

// Close is a no-op; the client holds only an HTTP connection pool.
func (s *WeaviateStore) Close() error {
	return nil
}

var _ Store = (*WeaviateStore)(nil)
