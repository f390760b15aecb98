package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docsync/internal/models"
)

func TestFetch_ReturnsContent(t *testing.T) {
	api := &fakeAPI{files: map[string]*models.RawContent{
		"docs/a.md": {File: models.FileDescriptor{Path: "docs/a.md"}, Encoding: "base64", Content: "aGk="},
	}}
	raw, err := NewFetcher(api).Fetch(context.Background(), file("docs/a.md"))
	require.NoError(t, err)
	assert.Equal(t, "aGk=", raw.Content)
	assert.Equal(t, "a.md", raw.File.Name, "name is filled from the descriptor")
	assert.Equal(t, []string{"docs/a.md"}, api.calls)
}

func TestFetch_DirectoryHasNoContent(t *testing.T) {
	api := &fakeAPI{dirs: map[string][]models.FileDescriptor{"docs/sub": {file("docs/sub/x.md")}}}
	_, err := NewFetcher(api).Fetch(context.Background(), dir("docs/sub"))
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestFetch_MissingContentField(t *testing.T) {
	big := file("docs/big.pdf")
	big.Size = 2 << 20
	api := &fakeAPI{files: map[string]*models.RawContent{
		"docs/big.pdf": {File: big, Encoding: "none"},
	}}
	_, err := NewFetcher(api).Fetch(context.Background(), file("docs/big.pdf"))
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Contains(t, err.Error(), `size 2097152, encoding "none"`)
}

func TestFetch_TransportError(t *testing.T) {
	api := &fakeAPI{errs: map[string]error{"docs/a.md": errors.Join(ErrTransport, errors.New("rate limited"))}}
	_, err := NewFetcher(api).Fetch(context.Background(), file("docs/a.md"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrNoContent)
}
