// Package vector provides an in-memory similarity index over chunk embeddings.
package vector

import "context"

// Index stores vectors by ID and answers nearest-neighbour queries.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Size() int
	Close() error
}

// Result is a single search hit; ID is the chunk ID.
type Result struct {
	ID    string
	Score float64 // cosine similarity, in [-1, 1]
}
