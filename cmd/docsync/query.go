package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/docsync/internal/cli"
	"github.com/hyperjump/docsync/internal/models"
	"github.com/hyperjump/docsync/internal/search"
)

func newQueryCmd(global *globalOptions) *cobra.Command {
	var (
		limit         int
		mode          string
		keywordWeight float64
	)
	cmd := &cobra.Command{
		Use:   "query [flags] <text>",
		Short: "Print the stored chunks that best match a text",
		Long: `Rank the chunks of the corpus against the query text and print the best matches.

Modes:
  vector   embed the text and return the nearest chunks (sqlite, chromem, qdrant)
  keyword  BM25 keyword relevance over chunk content and source paths (sqlite)
  hybrid   weighted fusion of keyword and vector scores (sqlite)

Examples:
  docsync query how do I rotate credentials
  docsync query --mode keyword "release checklist"
  docsync query --mode hybrid --keyword-weight 0.3 -n 3 -o json install`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(global.output)
			if err != nil {
				return err
			}
			q := &models.CorpusQuery{
				Text:          buildQuery(args),
				Limit:         limit,
				Mode:          models.QueryMode(mode),
				KeywordWeight: keywordWeight,
			}
			if err := q.Validate(); err != nil {
				return err
			}
			cfg, logger, err := setup(global)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			var components *Components
			if q.Mode == models.ModeKeyword {
				components, err = openStoreOnly(ctx, cfg, logger)
			} else {
				components, err = openStore(ctx, cfg, logger)
			}
			if err != nil {
				return err
			}
			defer components.Close()

			engine := search.NewEngine(components.Store, components.Embedder, search.WithLogger(logger))
			resp, err := engine.Search(ctx, q)
			if err != nil {
				if errors.Is(err, search.ErrUnsupportedMode) {
					return fmt.Errorf("%s query is not supported by the %s backend: %w", q.Mode, cfg.Store.Backend, err)
				}
				return err
			}
			return cli.WriteQueryResults(cmd.OutOrStdout(), resp, format)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of chunks (1-100)")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(models.ModeVector), "ranking mode: vector, keyword or hybrid")
	cmd.Flags().Float64Var(&keywordWeight, "keyword-weight", 0, "keyword share of a hybrid score in [0, 1] (default 0.5)")
	return cmd
}

// buildQuery joins all positional arguments so quoting is optional.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
