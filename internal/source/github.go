// Package source lists and fetches documentation files from a remote repository.
package source

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/hyperjump/docsync/internal/models"
)

const (
	encodingBase64 = "base64"
	encodingNone   = "none"
)

var (
	// ErrTransport wraps any failed remote call (network, auth, rate limit, not found).
	ErrTransport = errors.New("content api transport")
	// ErrNoContent is returned when a fetched entry carries no content field.
	ErrNoContent = errors.New("no content")
	// ErrNotDirectory is returned when a listing path resolves to a single file.
	ErrNotDirectory = errors.New("not a directory")
)

// ContentAPI is a path-addressed remote content API. On success exactly one of
// file and listing is set: a file path yields its content, a directory path
// its entries.
type ContentAPI interface {
	ListOrGet(ctx context.Context, path string) (file *models.RawContent, listing []models.FileDescriptor, err error)
}

// GitHubConfig identifies the repository and credentials for GitHubContents.
type GitHubConfig struct {
	Owner  string
	Repo   string
	Ref    string
	Token  string
	APIURL string // GitHub Enterprise base URL; empty means api.github.com
}

// GitHubContents implements ContentAPI with the GitHub repository contents endpoint.
type GitHubContents struct {
	client *github.Client
	owner  string
	repo   string
	ref    string
}

// NewGitHubContents creates a contents client authenticated with cfg.Token when set.
func NewGitHubContents(ctx context.Context, cfg GitHubConfig) (*GitHubContents, error) {
	var hc *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.Token},
		)
		hc = oauth2.NewClient(ctx, ts)
	}
	client := github.NewClient(hc)
	if cfg.APIURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.APIURL, cfg.APIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid api url %q: %w", cfg.APIURL, err)
		}
	}
	return NewGitHubContentsFromClient(client, cfg.Owner, cfg.Repo, cfg.Ref), nil
}

// NewGitHubContentsFromClient wraps an existing go-github client.
func NewGitHubContentsFromClient(client *github.Client, owner, repo, ref string) *GitHubContents {
	return &GitHubContents{client: client, owner: owner, repo: repo, ref: ref}
}

// ListOrGet calls GET /repos/{owner}/{repo}/contents/{path}. No retry is attempted.
func (g *GitHubContents) ListOrGet(ctx context.Context, path string) (*models.RawContent, []models.FileDescriptor, error) {
	var opts *github.RepositoryContentGetOptions
	if g.ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: g.ref}
	}
	fc, dc, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s/%s %q: %w", ErrTransport, g.owner, g.repo, path, err)
	}
	if fc != nil {
		raw := &models.RawContent{
			File:     descriptor(fc),
			Encoding: fc.GetEncoding(),
		}
		// Content is read raw; GetContent would decode it.
		if fc.Content != nil {
			raw.Content = *fc.Content
		}
		if raw.Content == "" && raw.Encoding == encodingNone && raw.File.SHA != "" {
			if err := g.fillFromBlob(ctx, raw); err != nil {
				return nil, nil, err
			}
		}
		return raw, nil, nil
	}
	listing := make([]models.FileDescriptor, 0, len(dc))
	for _, c := range dc {
		listing = append(listing, descriptor(c))
	}
	return nil, listing, nil
}

// fillFromBlob loads content the contents endpoint omits for files over 1 MB
// (encoding "none") from the git blob API, keeping raw.Content base64.
func (g *GitHubContents) fillFromBlob(ctx context.Context, raw *models.RawContent) error {
	blob, _, err := g.client.Git.GetBlob(ctx, g.owner, g.repo, raw.File.SHA)
	if err != nil {
		return fmt.Errorf("%w: %s/%s blob %s for %q: %w", ErrTransport, g.owner, g.repo, raw.File.SHA, raw.File.Path, err)
	}
	switch blob.GetEncoding() {
	case encodingBase64:
		raw.Content = blob.GetContent()
	default:
		raw.Content = base64.StdEncoding.EncodeToString([]byte(blob.GetContent()))
	}
	raw.Encoding = encodingBase64
	return nil
}

func descriptor(c *github.RepositoryContent) models.FileDescriptor {
	return models.FileDescriptor{
		Path: c.GetPath(),
		Name: c.GetName(),
		Kind: models.EntryKind(c.GetType()),
		Size: c.GetSize(),
		SHA:  c.GetSHA(),
	}
}

var _ ContentAPI = (*GitHubContents)(nil)
