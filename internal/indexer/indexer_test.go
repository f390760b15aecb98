package indexer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	pathpkg "path"
	"strings"
	"testing"

	"github.com/hyperjump/docsync/internal/embedding"
	"github.com/hyperjump/docsync/internal/extract"
	"github.com/hyperjump/docsync/internal/fileid"
	"github.com/hyperjump/docsync/internal/models"
	"github.com/hyperjump/docsync/internal/source"
	"github.com/hyperjump/docsync/internal/storage"
)

const testDims = 8

// fakeRepo serves directory listings and base64-encoded files by path.
type fakeRepo struct {
	dirs  map[string][]models.FileDescriptor
	files map[string]string
	fail  map[string]error
	calls []string
}

func (r *fakeRepo) ListOrGet(_ context.Context, path string) (*models.RawContent, []models.FileDescriptor, error) {
	r.calls = append(r.calls, path)
	if err := r.fail[path]; err != nil {
		return nil, nil, fmt.Errorf("%w: %w", source.ErrTransport, err)
	}
	if entries, ok := r.dirs[path]; ok {
		return nil, entries, nil
	}
	if content, ok := r.files[path]; ok {
		return &models.RawContent{
			File:     models.FileDescriptor{Path: path, Name: pathpkg.Base(path), Kind: models.KindFile},
			Encoding: "base64",
			Content:  base64.StdEncoding.EncodeToString([]byte(content)),
		}, nil, nil
	}
	return nil, nil, fmt.Errorf("%w: %s: 404 Not Found", source.ErrTransport, path)
}

func fileEntry(path string) models.FileDescriptor {
	return models.FileDescriptor{Path: path, Name: pathpkg.Base(path), Kind: models.KindFile}
}

func dirEntry(path string) models.FileDescriptor {
	return models.FileDescriptor{Path: path, Name: pathpkg.Base(path), Kind: models.KindDir}
}

// nestedRepo has two subdirectories whose Markdown files chunk into 3 and 2 chunks at size 40, overlap 5.
func nestedRepo() *fakeRepo {
	return &fakeRepo{
		dirs: map[string][]models.FileDescriptor{
			"docs":        {dirEntry("docs/guides"), dirEntry("docs/api")},
			"docs/guides": {fileEntry("docs/guides/intro.md")},
			"docs/api":    {fileEntry("docs/api/ref.md")},
		},
		files: map[string]string{
			"docs/guides/intro.md": "<b>" + strings.Repeat("abcde", 20) + "</b>",
			"docs/api/ref.md":      strings.Repeat("vwxyz", 12),
		},
	}
}

type failingStore struct {
	storage.Store
	deleteErr error
	insertErr error
	inserts   int
}

func (s *failingStore) DeleteAll(ctx context.Context) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Store.DeleteAll(ctx)
}

func (s *failingStore) BulkInsert(ctx context.Context, chunks []*models.Chunk) error {
	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.Store.BulkInsert(ctx, chunks)
}

type failingEmbedder struct {
	embedding.Embedder
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("rate limited")
}

func newStoreWithPriorChunk(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:", "documents")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	prior := &models.Chunk{
		ID:        fileid.ChunkID("old/removed.md", 0),
		Source:    "old/removed.md",
		Content:   "stale",
		Embedding: make([]float32, testDims),
	}
	prior.Embedding[0] = 1
	if err := store.BulkInsert(context.Background(), []*models.Chunk{prior}); err != nil {
		t.Fatal(err)
	}
	return store
}

func newTestIndexer(t *testing.T, repo *fakeRepo, store storage.Store, structure source.Structure, opts ...IndexerOption) *Indexer {
	t.Helper()
	return newTestIndexerWith(t, repo, store, embedding.NewMockEmbedder(testDims), structure, opts...)
}

func newTestIndexerWith(t *testing.T, repo *fakeRepo, store storage.Store, emb embedding.Embedder, structure source.Structure, opts ...IndexerOption) *Indexer {
	t.Helper()
	idx, err := NewIndexer(
		Target{Root: "docs", Structure: structure},
		source.NewWalker(repo),
		source.NewFetcher(repo),
		extract.NewExtractor(),
		NewChunker(40, 5),
		emb,
		store,
		opts...,
	)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func count(t *testing.T, store storage.Store) int64 {
	t.Helper()
	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSync_ReplacesCorpus(t *testing.T) {
	store := newStoreWithPriorChunk(t)
	repo := nestedRepo()
	idx := newTestIndexer(t, repo, store, source.StructureNested, WithBatchSize(2))

	report, err := idx.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Phase != models.PhaseDone || !report.Cleared || report.ClearErr != nil {
		t.Errorf("report = %+v", report)
	}
	if report.FilesListed != 2 || report.FilesProcessed != 2 || report.FilesSkipped != 0 {
		t.Errorf("file counts = listed %d processed %d skipped %d", report.FilesListed, report.FilesProcessed, report.FilesSkipped)
	}
	if report.ChunksWritten != 5 || report.ChunksProduced != 5 {
		t.Errorf("chunks written = %d produced = %d, want 5", report.ChunksWritten, report.ChunksProduced)
	}

	wantCalls := []string{"docs", "docs/guides", "docs/api", "docs/guides/intro.md", "docs/api/ref.md"}
	if strings.Join(repo.calls, ",") != strings.Join(wantCalls, ",") {
		t.Errorf("calls = %v, want %v", repo.calls, wantCalls)
	}

	chunks, err := store.ListChunks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 5 {
		t.Fatalf("store holds %d chunks, want 5", len(chunks))
	}
	perSource := map[string]int{}
	for _, c := range chunks {
		if c.Source == "old/removed.md" {
			t.Error("prior chunk survived the resync")
		}
		if len(c.Embedding) != testDims {
			t.Errorf("chunk %s has %d-dim embedding", c.ID, len(c.Embedding))
		}
		if c.ID != fileid.ChunkID(c.Source, c.Index) {
			t.Errorf("chunk %s#%d has unexpected ID", c.Source, c.Index)
		}
		perSource[c.Source]++
	}
	if perSource["docs/guides/intro.md"] != 3 || perSource["docs/api/ref.md"] != 2 {
		t.Errorf("chunks per source = %v, want intro 3 and ref 2", perSource)
	}
	// ListChunks orders by source: ref.md first.
	if chunks[2].Content != strings.Repeat("abcde", 8) {
		t.Errorf("first intro chunk = %q", chunks[2].Content)
	}
}

func TestSync_ListingFailureLeavesStoreCleared(t *testing.T) {
	for _, failing := range []string{"docs", "docs/api"} {
		t.Run(failing, func(t *testing.T) {
			store := newStoreWithPriorChunk(t)
			repo := nestedRepo()
			repo.fail = map[string]error{failing: errors.New("502 Bad Gateway")}
			idx := newTestIndexer(t, repo, store, source.StructureNested)

			report, err := idx.Sync(context.Background())
			if !errors.Is(err, source.ErrTransport) {
				t.Fatalf("err = %v, want ErrTransport", err)
			}
			if report.Phase != models.PhaseFailed || report.FailedIn != models.PhaseWalking {
				t.Errorf("phase = %s failed in %s", report.Phase, report.FailedIn)
			}
			if n := count(t, store); n != 0 {
				t.Errorf("store holds %d chunks after failed walk, want 0", n)
			}
		})
	}
}

func TestSync_ClearFailureIsNonFatal(t *testing.T) {
	base := newStoreWithPriorChunk(t)
	store := &failingStore{Store: base, deleteErr: errors.New("permission denied")}
	idx := newTestIndexer(t, nestedRepo(), store, source.StructureNested)

	report, err := idx.Sync(context.Background())
	if err != nil {
		t.Fatalf("clear failure should not abort the run: %v", err)
	}
	if report.Cleared || report.ClearError() != "permission denied" {
		t.Errorf("cleared = %v, clear error = %q", report.Cleared, report.ClearError())
	}
	if n := count(t, base); n != 6 {
		t.Errorf("store holds %d chunks, want prior 1 + new 5", n)
	}
}

func TestSync_SkipsAreRecorded(t *testing.T) {
	store := newStoreWithPriorChunk(t)
	repo := &fakeRepo{
		dirs: map[string][]models.FileDescriptor{
			"docs": {
				fileEntry("docs/a.md"),
				fileEntry("docs/empty.md"),
				fileEntry("docs/diagram.png"),
				dirEntry("docs/sub"),
				fileEntry("docs/blank.md"),
				{Path: "docs/noname.md", Kind: models.KindFile},
			},
			"docs/sub": {fileEntry("docs/sub/deep.md")},
		},
		files: map[string]string{
			"docs/a.md":        "# Title\n\nSome text.",
			"docs/empty.md":    "",
			"docs/diagram.png": "\x89PNG",
			"docs/blank.md":    "<p>   </p>\n\n",
		},
	}
	idx := newTestIndexer(t, repo, store, source.StructureFlat)

	report, err := idx.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.FilesListed != 5 || report.FilesProcessed != 1 || report.ChunksWritten != 1 {
		t.Errorf("listed %d processed %d written %d", report.FilesListed, report.FilesProcessed, report.ChunksWritten)
	}
	want := []models.SkippedFile{
		{Path: "docs/empty.md", Reason: models.SkipNoContent},
		{Path: "docs/diagram.png", Reason: models.SkipUnsupported},
		{Path: "docs/sub", Reason: models.SkipNoContent},
		{Path: "docs/blank.md", Reason: models.SkipEmptyText},
	}
	if fmt.Sprint(report.Skipped) != fmt.Sprint(want) {
		t.Errorf("skipped = %v, want %v", report.Skipped, want)
	}
	if report.FilesSkipped != len(want) {
		t.Errorf("FilesSkipped = %d", report.FilesSkipped)
	}
}

func TestSync_EmptyCorpusSkipsWrite(t *testing.T) {
	base := newStoreWithPriorChunk(t)
	store := &failingStore{Store: base, insertErr: errors.New("must not be called")}
	repo := &fakeRepo{
		dirs:  map[string][]models.FileDescriptor{"docs": {fileEntry("docs/logo.svg")}},
		files: map[string]string{"docs/logo.svg": "<svg/>"},
	}
	idx := newTestIndexer(t, repo, store, source.StructureFlat)

	report, err := idx.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if store.inserts != 0 {
		t.Errorf("BulkInsert called %d times for an empty corpus", store.inserts)
	}
	if report.Phase != models.PhaseDone || report.ChunksWritten != 0 {
		t.Errorf("report = %+v", report)
	}
	if n := count(t, base); n != 0 {
		t.Errorf("store holds %d chunks, want 0", n)
	}
}

func TestSync_PersistFailure(t *testing.T) {
	t.Run("bulk insert", func(t *testing.T) {
		store := &failingStore{Store: newStoreWithPriorChunk(t), insertErr: errors.New("disk full")}
		idx := newTestIndexer(t, nestedRepo(), store, source.StructureNested)
		report, err := idx.Sync(context.Background())
		if !errors.Is(err, ErrPersist) {
			t.Fatalf("err = %v, want ErrPersist", err)
		}
		if report.FailedIn != models.PhasePersisting || report.ChunksWritten != 0 || report.ChunksProduced != 5 {
			t.Errorf("report = %+v", report)
		}
	})
	t.Run("embedding", func(t *testing.T) {
		store := newStoreWithPriorChunk(t)
		emb := failingEmbedder{embedding.NewMockEmbedder(testDims)}
		idx := newTestIndexerWith(t, nestedRepo(), store, emb, source.StructureNested)
		_, err := idx.Sync(context.Background())
		if !errors.Is(err, ErrPersist) {
			t.Fatalf("err = %v, want ErrPersist", err)
		}
		if n := count(t, store); n != 0 {
			t.Errorf("store holds %d chunks, want 0", n)
		}
	})
}

func TestSync_FatalFileErrors(t *testing.T) {
	tests := []struct {
		name     string
		repo     *fakeRepo
		wantIn   models.Phase
		wantKind error
	}{
		{
			name: "fetch transport error",
			repo: &fakeRepo{dirs: map[string][]models.FileDescriptor{
				"docs": {fileEntry("docs/missing.md")},
			}},
			wantIn:   models.PhaseFetching,
			wantKind: source.ErrTransport,
		},
		{
			name: "malformed pdf",
			repo: &fakeRepo{
				dirs:  map[string][]models.FileDescriptor{"docs": {fileEntry("docs/a.md"), fileEntry("docs/broken.pdf")}},
				files: map[string]string{"docs/a.md": "ok", "docs/broken.pdf": "not a pdf"},
			},
			wantIn: models.PhaseChunking,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStoreWithPriorChunk(t)
			idx := newTestIndexer(t, tt.repo, store, source.StructureFlat)
			report, err := idx.Sync(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantKind != nil && !errors.Is(err, tt.wantKind) {
				t.Errorf("err = %v, want %v", err, tt.wantKind)
			}
			if report.FailedIn != tt.wantIn {
				t.Errorf("failed in %s, want %s", report.FailedIn, tt.wantIn)
			}
			if n := count(t, store); n != 0 {
				t.Errorf("partial write: store holds %d chunks", n)
			}
		})
	}
}

func TestSync_DryRun(t *testing.T) {
	store := newStoreWithPriorChunk(t)
	idx := newTestIndexer(t, nestedRepo(), store, source.StructureNested, WithDryRun(true))

	report, err := idx.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.DryRun || report.Cleared || report.ChunksProduced != 5 || report.ChunksWritten != 0 {
		t.Errorf("report = %+v", report)
	}
	if n := count(t, store); n != 1 {
		t.Errorf("dry run changed the store: %d chunks", n)
	}
}

func TestSync_Canceled(t *testing.T) {
	store := newStoreWithPriorChunk(t)
	idx := newTestIndexer(t, nestedRepo(), store, source.StructureNested, WithDryRun(true))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := idx.Sync(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if report.Phase != models.PhaseFailed {
		t.Errorf("phase = %s", report.Phase)
	}
}

func TestNewIndexer_InvalidChunker(t *testing.T) {
	_, err := NewIndexer(Target{}, nil, nil, nil, NewChunker(10, 10), nil, nil)
	if err == nil {
		t.Error("expected error for overlap >= size")
	}
}
