package source

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/docsync/internal/models"
	"github.com/hyperjump/docsync/pkg/utils"
)

// Structure selects how the root directory's entries are interpreted.
type Structure string

const (
	// StructureFlat treats the root's direct children as the files to ingest.
	StructureFlat Structure = "flat"
	// StructureNested treats the root's children as subdirectories and ingests their children.
	StructureNested Structure = "nested"
	// StructureTree descends recursively up to the walker's max depth.
	StructureTree Structure = "tree"
)

// ParseStructure returns the Structure named by s (case-insensitive).
func ParseStructure(s string) (Structure, error) {
	switch st := Structure(strings.ToLower(strings.TrimSpace(s))); st {
	case StructureFlat, StructureNested, StructureTree:
		return st, nil
	}
	return "", fmt.Errorf("unknown directory structure %q (want flat, nested or tree)", s)
}

// DefaultMaxDepth bounds tree descent when no depth is configured.
const DefaultMaxDepth = 3

// Walker turns a root path into the flat list of files to ingest.
type Walker struct {
	api      ContentAPI
	maxDepth int
	logger   *zap.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithLogger sets a logger for listing progress and skipped entries.
func WithLogger(l *zap.Logger) WalkerOption {
	return func(w *Walker) { w.logger = l }
}

// WithMaxDepth sets how many directory levels below the root StructureTree visits.
func WithMaxDepth(depth int) WalkerOption {
	return func(w *Walker) { w.maxDepth = depth }
}

// NewWalker creates a walker over api.
func NewWalker(api ContentAPI, opts ...WalkerOption) *Walker {
	w := &Walker{api: api, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.LoggerOrNop(w.logger)
	return w
}

// Walk lists root according to structure. It issues one listing call for flat,
// 1+k calls for nested with k subdirectories, and one per visited directory for tree.
// Any listing failure aborts the walk with no partial result.
func (w *Walker) Walk(ctx context.Context, root string, structure Structure) ([]models.FileDescriptor, error) {
	switch structure {
	case StructureFlat:
		return w.list(ctx, root)
	case StructureNested:
		return w.walkNested(ctx, root)
	case StructureTree:
		var files []models.FileDescriptor
		if err := w.walkTree(ctx, root, 0, &files); err != nil {
			return nil, err
		}
		return files, nil
	default:
		return nil, fmt.Errorf("unknown directory structure %q", structure)
	}
}

func (w *Walker) walkNested(ctx context.Context, root string) ([]models.FileDescriptor, error) {
	entries, err := w.list(ctx, root)
	if err != nil {
		return nil, err
	}
	var files []models.FileDescriptor
	for _, e := range entries {
		if !e.IsDir() {
			w.logger.Debug("skipping non-directory entry at nested root",
				zap.String("path", e.Path), zap.String("kind", string(e.Kind)))
			continue
		}
		children, err := w.list(ctx, e.Path)
		if err != nil {
			return nil, err
		}
		files = append(files, children...)
	}
	return files, nil
}

func (w *Walker) walkTree(ctx context.Context, dir string, depth int, files *[]models.FileDescriptor) error {
	entries, err := w.list(ctx, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch {
		case e.Kind == models.KindFile:
			*files = append(*files, e)
		case e.IsDir() && depth < w.maxDepth:
			if err := w.walkTree(ctx, e.Path, depth+1, files); err != nil {
				return err
			}
		case e.IsDir():
			w.logger.Debug("max depth reached, not descending", zap.String("path", e.Path), zap.Int("max_depth", w.maxDepth))
		default:
			w.logger.Debug("skipping entry", zap.String("path", e.Path), zap.String("kind", string(e.Kind)))
		}
	}
	return nil
}

// list issues one listing call and drops entries lacking a name or path.
func (w *Walker) list(ctx context.Context, dir string) ([]models.FileDescriptor, error) {
	w.logger.Info("listing directory", zap.String("path", dir))
	file, entries, err := w.api.ListOrGet(ctx, dir)
	if err != nil {
		return nil, err
	}
	if file != nil {
		return nil, fmt.Errorf("list %q: %w", dir, ErrNotDirectory)
	}
	out := make([]models.FileDescriptor, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.Path == "" {
			w.logger.Warn("skipping malformed listing entry",
				zap.String("dir", dir), zap.String("name", e.Name), zap.String("path", e.Path))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
