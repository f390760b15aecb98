package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/docsync/internal/cli"
	"github.com/hyperjump/docsync/internal/config"
)

type syncOptions struct {
	owner     string
	repo      string
	path      string
	structure string
	backend   string
	dryRun    bool
}

func newSyncCmd(global *globalOptions) *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replace the stored corpus with the current repository content",
		Long: `Clear the configured collection, list the source directory, fetch and chunk
every Markdown and PDF file, then embed and write all chunks in one bulk call.

A failed clear is reported but does not stop the run. Any other failure
aborts the run with a non-zero exit status; nothing is reported as success.

Directory structures:
  flat    the directory's files are ingested
  nested  the files of each subdirectory are ingested
  tree    files are ingested recursively up to source.max_depth`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, global, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.owner, "owner", "", "repository owner (overrides source.owner)")
	f.StringVar(&opts.repo, "repo", "", "repository name (overrides source.repo)")
	f.StringVar(&opts.path, "path", "", "directory to ingest (overrides source.path)")
	f.StringVar(&opts.structure, "structure", "", "flat, nested or tree (overrides source.structure)")
	f.StringVar(&opts.backend, "backend", "", "sqlite, chromem, weaviate or qdrant (overrides store.backend)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "walk, fetch and chunk without touching the store")
	return cmd
}

// apply copies flags the user set onto cfg.
func (o *syncOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("owner", &cfg.Source.Owner, o.owner)
	set("repo", &cfg.Source.Repo, o.repo)
	set("path", &cfg.Source.Path, o.path)
	set("structure", &cfg.Source.Structure, o.structure)
	set("backend", &cfg.Store.Backend, o.backend)
}

func runSync(cmd *cobra.Command, global *globalOptions, opts *syncOptions) error {
	format, err := cli.ParseOutputFormat(global.output)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(global)
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger, opts.dryRun)
	if err != nil {
		return err
	}
	defer components.Close()

	logger.Info("starting sync",
		zap.String("repository", cfg.Source.Owner+"/"+cfg.Source.Repo),
		zap.String("path", cfg.Source.Path),
		zap.String("backend", cfg.Store.Backend),
		zap.String("collection", cfg.Store.Collection),
	)
	report, syncErr := components.Indexer.Sync(ctx)
	if err := cli.WriteSyncReport(cmd.OutOrStdout(), report, format); err != nil {
		return err
	}
	return syncErr
}
