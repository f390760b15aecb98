package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docsync/internal/embedding"
)

func TestChromemStore_Lifecycle(t *testing.T) {
	store, err := NewChromemStore("", "documents", embedding.NewMockEmbedder(3), nil)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "missing collection counts as empty")

	require.NoError(t, store.DeleteAll(ctx), "deleting a missing collection is not an error")
	require.NoError(t, store.BulkInsert(ctx, testChunks("docs/a.md", "alpha", "beta", "gamma")))

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	results, err := store.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3, "k is capped at the collection size")
	assert.Equal(t, "alpha", results[0].Chunk.Content)
	assert.Equal(t, "docs/a.md", results[0].Chunk.Source)
	assert.Equal(t, 0, results[0].Chunk.Index)

	require.NoError(t, store.DeleteAll(ctx))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChromemStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store, err := NewChromemStore(dir, "documents", embedding.NewMockEmbedder(3), nil)
	require.NoError(t, err)
	require.NoError(t, store.BulkInsert(ctx, testChunks("a.md", "x", "y")))

	reopened, err := NewChromemStore(dir, "documents", embedding.NewMockEmbedder(3), nil)
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestChunkMetadataRoundTrip(t *testing.T) {
	c := testChunks("docs/guide.md", "a", "b")[1]
	c.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := chunkFromMetadata(chunkMetadata(c))
	assert.Equal(t, c.Source, got.Source)
	assert.Equal(t, c.Index, got.Index)
	assert.Equal(t, c.Start, got.Start)
	assert.Equal(t, c.End, got.End)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
}
