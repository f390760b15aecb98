package source

import (
	"context"
	"fmt"

	"github.com/hyperjump/docsync/internal/models"
)

// Fetcher retrieves the encoded content of single files.
type Fetcher struct {
	api ContentAPI
}

// NewFetcher creates a fetcher over api.
func NewFetcher(api ContentAPI) *Fetcher {
	return &Fetcher{api: api}
}

// Fetch issues one content call for file. A response without content, such as a
// directory listing, returns ErrNoContent; callers treat that as an ignorable skip.
func (f *Fetcher) Fetch(ctx context.Context, file models.FileDescriptor) (*models.RawContent, error) {
	raw, _, err := f.api.ListOrGet(ctx, file.Path)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%s (%s): %w", file.Path, file.Kind, ErrNoContent)
	}
	if raw.Content == "" {
		return nil, fmt.Errorf("%s (size %d, encoding %q): %w", file.Path, raw.File.Size, raw.Encoding, ErrNoContent)
	}
	if raw.File.Name == "" {
		raw.File.Name = file.Name
	}
	if raw.File.Path == "" {
		raw.File.Path = file.Path
	}
	return raw, nil
}
