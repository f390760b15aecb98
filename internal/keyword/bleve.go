// Package keyword provides a BM25 keyword index over corpus chunks, backed by Bleve.
package keyword

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/hyperjump/docsync/internal/models"
)

const (
	fieldContent = "content"
	fieldSource  = "source"
	chunkType    = "chunk"
)

// Result is a single keyword hit; ID is the chunk ID.
type Result struct {
	ID    string
	Score float64
}

// Index is a Bleve index of chunk content and source paths.
type Index struct {
	index bleve.Index
}

// NewMemIndex creates an index held entirely in memory. It is built per query
// from the stored corpus and discarded afterwards.
func NewMemIndex() (*Index, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase and tokenize without stemming, so terms match as written.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldContent, text)
	docMapping.AddFieldMappingsAt(fieldSource, text)
	im.AddDocumentMapping(chunkType, docMapping)
	im.DefaultType = chunkType
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexChunks adds chunks in one batch, keyed by chunk ID.
func (x *Index) IndexChunks(ctx context.Context, chunks []*models.Chunk) error {
	batch := x.index.NewBatch()
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := map[string]interface{}{
			fieldContent: c.Content,
			fieldSource:  c.Source,
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("keyword batch of %d chunks: %w", len(chunks), err)
	}
	return nil
}

// Search runs a match query over content and source and returns up to limit hits,
// best first.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	out := make([]*Result, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the number of indexed chunks.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}
