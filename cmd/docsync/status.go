package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/docsync/internal/cli"
	"github.com/hyperjump/docsync/internal/config"
)

func newStatusCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the chunk count and configuration of the corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(global.output)
			if err != nil {
				return err
			}
			cfg, logger, err := setup(global)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			components, err := openStoreOnly(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			chunks, err := components.Store.Count(ctx)
			if err != nil {
				return fmt.Errorf("count chunks failed: %w", err)
			}
			status := buildStatus(cfg, chunks)
			return cli.WriteStatus(cmd.OutOrStdout(), status, format)
		},
	}
}

func buildStatus(cfg *config.Config, chunks int64) *cli.Status {
	backend := cfg.StoreBackend()
	status := &cli.Status{
		Backend:    cfg.Store.Backend,
		Collection: cfg.Store.Collection,
		Chunks:     chunks,
		Config: &cli.StatusConfig{
			Source:              fmt.Sprintf("%s/%s:%s", cfg.Source.Owner, cfg.Source.Repo, cfg.Source.Path),
			Structure:           cfg.Source.Structure,
			EmbeddingProvider:   cfg.Embedding.Provider,
			EmbeddingModel:      cfg.Embedding.Model,
			EmbeddingDimensions: cfg.Embedding.Dimensions,
			ChunkSize:           cfg.Chunking.ChunkSize,
			ChunkOverlap:        cfg.Chunking.Overlap(),
		},
	}
	if paths := backend.LocalPaths(); len(paths) > 0 {
		status.Config.StorePath = paths[0]
		if n, err := backend.DiskUsage(); err == nil {
			status.DiskUsageBytes = &n
		}
	}
	return status
}
