// Package indexer chunks remote documentation and resyncs it into a vector store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docsync/internal/embedding"
	"github.com/hyperjump/docsync/internal/extract"
	"github.com/hyperjump/docsync/internal/models"
	"github.com/hyperjump/docsync/internal/source"
	"github.com/hyperjump/docsync/internal/storage"
	"github.com/hyperjump/docsync/pkg/utils"
)

// ErrPersist wraps any failure of the final embed-and-write step.
var ErrPersist = errors.New("persist corpus")

// DefaultBatchSize is the number of chunk texts sent per embedding call.
const DefaultBatchSize = 100

// FileWalker lists the files under a root.
type FileWalker interface {
	Walk(ctx context.Context, root string, structure source.Structure) ([]models.FileDescriptor, error)
}

// FileFetcher retrieves the encoded content of one file.
type FileFetcher interface {
	Fetch(ctx context.Context, file models.FileDescriptor) (*models.RawContent, error)
}

// TextExtractor turns fetched content into plain text.
type TextExtractor interface {
	Extract(raw *models.RawContent) (string, error)
}

// Target is the remote directory a sync ingests.
type Target struct {
	Root      string
	Structure source.Structure
}

// Indexer replaces the stored corpus with the chunked content of one remote directory.
type Indexer struct {
	target    Target
	walker    FileWalker
	fetcher   FileFetcher
	extractor TextExtractor
	chunker   *Chunker
	embedder  embedding.Embedder
	store     storage.Store
	batchSize int
	dryRun    bool
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithDryRun makes Sync walk, fetch and chunk without clearing or writing the store.
func WithDryRun(dryRun bool) IndexerOption {
	return func(idx *Indexer) { idx.dryRun = dryRun }
}

// WithBatchSize sets how many chunk texts are embedded per call.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) { idx.batchSize = n }
}

// NewIndexer creates an indexer with the given collaborators.
// Returns an error if the chunker parameters are invalid.
func NewIndexer(
	target Target,
	walker FileWalker,
	fetcher FileFetcher,
	extractor TextExtractor,
	chunker *Chunker,
	embedder embedding.Embedder,
	store storage.Store,
	opts ...IndexerOption,
) (*Indexer, error) {
	if err := chunker.Validate(); err != nil {
		return nil, err
	}
	idx := &Indexer{
		target:    target,
		walker:    walker,
		fetcher:   fetcher,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.LoggerOrNop(idx.logger)
	return idx, nil
}

// Sync runs one full resync: clear, walk, fetch and chunk every file in order,
// then embed and write all chunks at once. The report is returned on failure too.
// A failed clear is recorded in the report and does not stop the run.
func (idx *Indexer) Sync(ctx context.Context) (*models.SyncReport, error) {
	started := time.Now()
	report := &models.SyncReport{Phase: models.PhaseIdle, DryRun: idx.dryRun}
	fail := func(err error) (*models.SyncReport, error) {
		report.FailedIn = report.Phase
		report.Phase = models.PhaseFailed
		report.Duration = time.Since(started)
		idx.logger.Error("sync failed", zap.String("phase", string(report.FailedIn)), zap.Error(err))
		return report, err
	}

	if !idx.dryRun {
		report.Phase = models.PhaseClearing
		idx.logger.Info("clearing corpus")
		if err := idx.store.DeleteAll(ctx); err != nil {
			report.ClearErr = err
			idx.logger.Warn("clearing corpus failed, continuing", zap.Error(err))
		} else {
			report.Cleared = true
		}
	}

	report.Phase = models.PhaseWalking
	idx.logger.Info("walking",
		zap.String("root", idx.target.Root),
		zap.String("structure", string(idx.target.Structure)),
	)
	files, err := idx.walker.Walk(ctx, idx.target.Root, idx.target.Structure)
	if err != nil {
		return fail(fmt.Errorf("walk %q: %w", idx.target.Root, err))
	}
	report.FilesListed = len(files)
	idx.logger.Info("listed files", zap.Int("count", len(files)))

	var chunks []*models.Chunk
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		fileChunks, reason, err := idx.processFile(ctx, report, f)
		if err != nil {
			return fail(err)
		}
		if reason != "" {
			report.Skipped = append(report.Skipped, models.SkippedFile{Path: f.Path, Reason: reason})
			continue
		}
		report.FilesProcessed++
		chunks = append(chunks, fileChunks...)
	}
	report.FilesSkipped = len(report.Skipped)
	report.ChunksProduced = len(chunks)

	if !idx.dryRun {
		report.Phase = models.PhasePersisting
		if err := idx.persist(ctx, chunks); err != nil {
			return fail(err)
		}
		report.ChunksWritten = len(chunks)
	}

	report.Phase = models.PhaseDone
	report.Duration = time.Since(started)
	idx.logger.Info("sync complete",
		zap.Int("files", report.FilesProcessed),
		zap.Int("skipped", report.FilesSkipped),
		zap.Int("chunks_written", report.ChunksWritten),
		zap.Bool("dry_run", idx.dryRun),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// processFile fetches, extracts and chunks one file. A non-empty reason means
// the file was skipped and contributes no chunks.
func (idx *Indexer) processFile(ctx context.Context, report *models.SyncReport, f models.FileDescriptor) ([]*models.Chunk, models.SkipReason, error) {
	report.Phase = models.PhaseFetching
	idx.logger.Debug("fetching file", zap.String("path", f.Path))
	raw, err := idx.fetcher.Fetch(ctx, f)
	if errors.Is(err, source.ErrNoContent) {
		idx.logger.Info("skipping file without content",
			zap.String("path", f.Path),
			zap.String("kind", string(f.Kind)),
			zap.Int("size", f.Size),
			zap.Error(err),
		)
		return nil, models.SkipNoContent, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", f.Path, err)
	}

	report.Phase = models.PhaseChunking
	text, err := idx.extractor.Extract(raw)
	if errors.Is(err, extract.ErrUnsupportedFormat) {
		idx.logger.Warn("unsupported format, no chunks produced", zap.String("path", f.Path))
		return nil, models.SkipUnsupported, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("extract %s: %w", f.Path, err)
	}

	chunks := idx.chunker.Chunk(f.Path, Preprocess(text))
	if len(chunks) == 0 {
		idx.logger.Debug("no text extracted", zap.String("path", f.Path))
		return nil, models.SkipEmptyText, nil
	}
	idx.logger.Debug("chunked file", zap.String("path", f.Path), zap.Int("chunks", len(chunks)))
	return chunks, "", nil
}

// persist embeds every chunk and submits them in one bulk write.
func (idx *Indexer) persist(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		idx.logger.Info("no chunks to write")
		return nil
	}
	idx.logger.Info("persisting chunks", zap.Int("count", len(chunks)))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := embedding.EmbedAll(ctx, idx.embedder, texts, idx.batchSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}
	if err := idx.store.BulkInsert(ctx, chunks); err != nil {
		return fmt.Errorf("%w: bulk insert %d chunks: %w", ErrPersist, len(chunks), err)
	}
	return nil
}
