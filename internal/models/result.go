package models

import "time"

// Phase is a state of the corpus sync state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseClearing   Phase = "clearing"
	PhaseWalking    Phase = "walking"
	PhaseFetching   Phase = "fetching"
	PhaseChunking   Phase = "chunking"
	PhasePersisting Phase = "persisting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// SkipReason explains why a listed file contributed no chunks.
type SkipReason string

const (
	SkipNoContent   SkipReason = "no_content"
	SkipUnsupported SkipReason = "unsupported_format"
	SkipEmptyText   SkipReason = "empty_text"
)

// SkippedFile records an ignorable per-file outcome so skips stay auditable.
type SkippedFile struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
}

// SyncReport summarizes one corpus sync run. It is returned on failure too, with Phase set to
// PhaseFailed and FailedIn naming the phase the run was in.
type SyncReport struct {
	Phase          Phase         `json:"phase"`
	FailedIn       Phase         `json:"failed_in,omitempty"`
	DryRun         bool          `json:"dry_run,omitempty"`
	Cleared        bool          `json:"cleared"`
	ClearErr       error         `json:"-"`
	FilesListed    int           `json:"files_listed"`
	FilesProcessed int           `json:"files_processed"`
	FilesSkipped   int           `json:"files_skipped"`
	ChunksProduced int           `json:"chunks_produced"`
	ChunksWritten  int           `json:"chunks_written"`
	Skipped        []SkippedFile `json:"skipped,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// ClearError returns the clear failure message, or "" when clearing succeeded.
func (r *SyncReport) ClearError() string {
	if r.ClearErr == nil {
		return ""
	}
	return r.ClearErr.Error()
}

// QueryResult is one chunk returned by a corpus query. Keyword and semantic
// scores are the normalized parts of a keyword or hybrid score.
type QueryResult struct {
	Chunk         *Chunk  `json:"chunk"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score,omitempty"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
	Rank          int     `json:"rank"`
}

// QueryResponse is the response for a corpus query.
type QueryResponse struct {
	Query     string         `json:"query"`
	Mode      QueryMode      `json:"mode,omitempty"`
	Results   []*QueryResult `json:"results"`
	QueryTime int64          `json:"query_time_ms"`
}
