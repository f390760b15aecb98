// Package cli renders docsync results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/docsync/internal/models"
	"github.com/hyperjump/docsync/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat returns the format named by s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type syncReportJSON struct {
	*models.SyncReport
	ClearError string `json:"clear_error,omitempty"`
}

// WriteSyncReport writes the outcome of a sync run.
func WriteSyncReport(w io.Writer, report *models.SyncReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, syncReportJSON{SyncReport: report, ClearError: report.ClearError()})
	}
	status := "ok"
	switch {
	case report.Phase == models.PhaseFailed:
		status = fmt.Sprintf("FAILED during %s", report.FailedIn)
	case report.DryRun:
		status = "ok (dry run, store untouched)"
	}
	fmt.Fprintf(w, "sync:            %s\n", status)
	if report.ClearErr != nil {
		fmt.Fprintf(w, "clear:           failed: %s\n", report.ClearError())
	}
	fmt.Fprintf(w, "files_listed:    %d\n", report.FilesListed)
	fmt.Fprintf(w, "files_processed: %d\n", report.FilesProcessed)
	fmt.Fprintf(w, "files_skipped:   %d\n", report.FilesSkipped)
	fmt.Fprintf(w, "chunks_produced: %d\n", report.ChunksProduced)
	fmt.Fprintf(w, "chunks_written:  %d\n", report.ChunksWritten)
	fmt.Fprintf(w, "duration:        %s\n", report.Duration.Round(time.Millisecond))
	if len(report.Skipped) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# skipped")
		for _, s := range report.Skipped {
			fmt.Fprintf(w, "%-20s %s\n", s.Reason, s.Path)
		}
	}
	return nil
}

// Status describes the configured corpus.
type Status struct {
	Backend        string        `json:"backend"`
	Collection     string        `json:"collection"`
	Chunks         int64         `json:"chunks"`
	DiskUsageBytes *int64        `json:"disk_usage_bytes,omitempty"`
	Config         *StatusConfig `json:"config,omitempty"`
}

// StatusConfig is the effective configuration summary shown by status.
type StatusConfig struct {
	Source              string `json:"source"`
	Structure           string `json:"structure"`
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingModel      string `json:"embedding_model,omitempty"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	ChunkSize           int    `json:"chunk_size"`
	ChunkOverlap        int    `json:"chunk_overlap"`
	StorePath           string `json:"store_path,omitempty"`
}

// WriteStatus writes the corpus status.
func WriteStatus(w io.Writer, status *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "backend:            %s\n", status.Backend)
	fmt.Fprintf(w, "collection:         %s\n", status.Collection)
	fmt.Fprintf(w, "chunks:             %d   # chunks in the collection\n", status.Chunks)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # local store on disk\n", *status.DiskUsageBytes)
	}
	if c := status.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "source:             %s\n", c.Source)
		fmt.Fprintf(w, "structure:          %s\n", c.Structure)
		fmt.Fprintf(w, "embedding:          %s", c.EmbeddingProvider)
		if c.EmbeddingModel != "" {
			fmt.Fprintf(w, " (%s)", c.EmbeddingModel)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "embedding_dims:     %d\n", c.EmbeddingDimensions)
		fmt.Fprintf(w, "chunk_size:         %d\n", c.ChunkSize)
		fmt.Fprintf(w, "chunk_overlap:      %d\n", c.ChunkOverlap)
		if c.StorePath != "" {
			fmt.Fprintf(w, "store_path:         %s\n", c.StorePath)
		}
	}
	return nil
}

// WriteQueryResults writes the nearest chunks for a query.
func WriteQueryResults(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d chunks in %dms", len(response.Results), response.QueryTime)
	if response.Mode != "" {
		fmt.Fprintf(w, " (%s)", response.Mode)
	}
	fmt.Fprintf(w, "\n\n")
	for _, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f", r.Rank, r.Score)
		if response.Mode == models.ModeHybrid {
			fmt.Fprintf(w, " | Keyword: %.4f | Semantic: %.4f", r.KeywordScore, r.SemanticScore)
		}
		fmt.Fprintln(w)
		if r.Chunk == nil {
			continue
		}
		fmt.Fprintf(w, "Source: %s#%d [%d:%d]\n", r.Chunk.Source, r.Chunk.Index, r.Chunk.Start, r.Chunk.End)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(utils.SingleLine(r.Chunk.Content), 200))
	}
	return nil
}
