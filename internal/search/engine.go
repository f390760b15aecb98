package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docsync/internal/keyword"
	"github.com/hyperjump/docsync/internal/models"
	"github.com/hyperjump/docsync/internal/storage"
	"github.com/hyperjump/docsync/internal/vector"
	"github.com/hyperjump/docsync/pkg/utils"
)

// ErrUnsupportedMode is returned when the store cannot serve the requested query mode.
var ErrUnsupportedMode = errors.New("query mode not supported by store")

// DefaultCandidates is the minimum number of hits taken from each side before fusion.
const DefaultCandidates = 50

// QueryEmbedder embeds query text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine runs corpus queries against a store.
type Engine struct {
	store      storage.Store
	embedder   QueryEmbedder
	candidates int
	logger     *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for query diagnostics.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithCandidates sets the minimum candidate count per side for keyword and hybrid queries.
func WithCandidates(n int) EngineOption {
	return func(e *Engine) { e.candidates = n }
}

// NewEngine creates a query engine over store. embedder may be nil for keyword-only queries.
func NewEngine(store storage.Store, embedder QueryEmbedder, opts ...EngineOption) *Engine {
	e := &Engine{store: store, embedder: embedder, candidates: DefaultCandidates}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.LoggerOrNop(e.logger)
	return e
}

// Search validates q and answers it in its mode. Vector queries need a store that
// implements storage.Searcher; keyword and hybrid queries need storage.Lister.
// Results are never nil.
func (e *Engine) Search(ctx context.Context, q *models.CorpusQuery) (*models.QueryResponse, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var (
		results []*models.QueryResult
		err     error
	)
	switch q.Mode {
	case models.ModeVector:
		results, err = e.searchVector(ctx, q)
	default:
		results, err = e.searchFused(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []*models.QueryResult{}
	}
	e.logger.Debug("query answered",
		zap.String("mode", string(q.Mode)),
		zap.Int("results", len(results)),
		zap.Duration("took", time.Since(start)),
	)
	return &models.QueryResponse{
		Query:     q.Text,
		Mode:      q.Mode,
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	if e.embedder == nil {
		return nil, errors.New("no embedder configured for semantic search")
	}
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

func (e *Engine) searchVector(ctx context.Context, q *models.CorpusQuery) ([]*models.QueryResult, error) {
	searcher, ok := e.store.(storage.Searcher)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, q.Mode)
	}
	vec, err := e.embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	results, err := searcher.Search(ctx, vec, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

// searchFused loads the corpus, ranks it with a throwaway keyword index (and, for
// hybrid, an in-memory vector index) and fuses the normalized scores.
func (e *Engine) searchFused(ctx context.Context, q *models.CorpusQuery) ([]*models.QueryResult, error) {
	lister, ok := e.store.(storage.Lister)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, q.Mode)
	}
	chunks, err := lister.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	byID := make(map[string]*models.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	k := max(q.Limit*4, e.candidates)

	kwResults, err := keywordSearch(ctx, chunks, q.Text, k)
	if err != nil {
		return nil, err
	}
	keywordWeight, semanticWeight := 1.0, 0.0
	var semResults []*vector.Result
	if q.Mode == models.ModeHybrid {
		keywordWeight, semanticWeight = q.KeywordWeight, 1-q.KeywordWeight
		vec, err := e.embed(ctx, q.Text)
		if err != nil {
			return nil, err
		}
		if semResults, err = semanticSearch(ctx, chunks, vec, k); err != nil {
			return nil, err
		}
	}

	fused := Fuse(NormalizeKeywordScores(kwResults), NormalizeSemanticScores(semResults), keywordWeight, semanticWeight)
	results := make([]*models.QueryResult, 0, min(q.Limit, len(fused)))
	for _, f := range fused {
		if len(results) == q.Limit {
			break
		}
		if f.Score <= 0 {
			continue
		}
		results = append(results, &models.QueryResult{
			Chunk:         byID[f.ChunkID],
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
			Rank:          len(results) + 1,
		})
	}
	return results, nil
}

func keywordSearch(ctx context.Context, chunks []*models.Chunk, text string, k int) ([]*keyword.Result, error) {
	idx, err := keyword.NewMemIndex()
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	if err := idx.IndexChunks(ctx, chunks); err != nil {
		return nil, err
	}
	return idx.Search(ctx, text, k)
}

func semanticSearch(ctx context.Context, chunks []*models.Chunk, query []float32, k int) ([]*vector.Result, error) {
	idx, err := vector.NewMemoryIndex(len(query))
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	ids := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		vecs[i] = c.Embedding
	}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		return nil, err
	}
	return idx.Search(ctx, query, k)
}
