// Package main is the docsync CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/docsync/internal/config"
	"github.com/hyperjump/docsync/internal/embedding"
	"github.com/hyperjump/docsync/internal/extract"
	"github.com/hyperjump/docsync/internal/indexer"
	"github.com/hyperjump/docsync/internal/source"
	"github.com/hyperjump/docsync/internal/storage"
	"github.com/hyperjump/docsync/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docsync/config.yaml"

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
	output     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "docsync",
		Short: "Resync a searchable documentation corpus from a GitHub repository",
		Long: `docsync lists a directory of a GitHub repository, extracts the text of its
Markdown and PDF files, splits it into overlapping chunks and replaces the
corpus held in a vector store with the result.

Examples:
  # Resync using /usr/local/etc/docsync/config.yaml (or ./config.yaml)
  docsync sync

  # Preview what a sync of another directory would produce
  docsync sync --owner octo-org --repo handbook --path docs --dry-run`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(newSyncCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newQueryCmd(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the docsync version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docsync version %s\n", version)
		},
	})
	return root
}

// loadConfig loads config from path. When path is the default, ./config.yaml is
// preferred if it exists; when neither exists, defaults and environment are used.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg, err := config.Default()
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger for a command.
func setup(opts *globalOptions) (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.debug {
		cfg.Debug = true
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug))
	return cfg, logger, nil
}

// Components holds the collaborators built from the config.
type Components struct {
	Store    storage.Store
	Embedder embedding.Embedder
	Indexer  *indexer.Indexer
}

// Close releases the store and embedder.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// openStore builds the embedder and the configured store.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	embedder, err := embedding.New(cfg.EmbeddingProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	store, err := storage.Open(ctx, cfg.StoreBackend(), embedder, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize %s store: %w", cfg.Store.Backend, err)
	}
	return &Components{Store: store, Embedder: embedder}, nil
}

// openStoreOnly opens the configured store without an embedder. Count needs
// no vectors, so status works without provider credentials.
func openStoreOnly(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.Open(ctx, cfg.StoreBackend(), nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", cfg.Store.Backend, err)
	}
	return &Components{Store: store}, nil
}

// initializeComponents wires the full sync pipeline.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, dryRun bool) (*Components, error) {
	structure, err := source.ParseStructure(cfg.Source.Structure)
	if err != nil {
		return nil, err
	}
	api, err := source.NewGitHubContents(ctx, cfg.GitHub())
	if err != nil {
		return nil, err
	}
	c, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	idx, err := indexer.NewIndexer(
		indexer.Target{Root: cfg.Source.Path, Structure: structure},
		source.NewWalker(api, source.WithLogger(logger), source.WithMaxDepth(cfg.Source.MaxDepth)),
		source.NewFetcher(api),
		extract.NewExtractor(),
		indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap()),
		c.Embedder,
		c.Store,
		indexer.WithLogger(logger),
		indexer.WithDryRun(dryRun),
		indexer.WithBatchSize(cfg.Embedding.BatchSize),
	)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Indexer = idx
	return c, nil
}
