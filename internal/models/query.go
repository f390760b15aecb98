package models

import (
	"fmt"
	"strings"
)

// QueryMode selects how a corpus query ranks chunks.
type QueryMode string

const (
	ModeVector  QueryMode = "vector"
	ModeKeyword QueryMode = "keyword"
	ModeHybrid  QueryMode = "hybrid"
)

// DefaultKeywordWeight is the keyword share of a hybrid score when none is given.
const DefaultKeywordWeight = 0.5

// ParseQueryMode returns the mode named by s; empty means vector.
func ParseQueryMode(s string) (QueryMode, error) {
	switch m := QueryMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeVector, nil
	case ModeVector, ModeKeyword, ModeHybrid:
		return m, nil
	default:
		return "", fmt.Errorf("unknown query mode %q (supported: vector, keyword, hybrid)", s)
	}
}

// CorpusQuery is a lookup against the stored corpus.
type CorpusQuery struct {
	Text  string    `json:"text"`
	Limit int       `json:"limit,omitempty"`
	Mode  QueryMode `json:"mode,omitempty"`

	// KeywordWeight is the keyword share of a hybrid score; the semantic share is 1 - KeywordWeight.
	KeywordWeight float64 `json:"keyword_weight,omitempty"`
}

// Validate ensures the query has text and normalizes the limit to 1..100 (default 5),
// the mode (default vector) and the hybrid keyword weight (default 0.5).
func (q *CorpusQuery) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 5
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	mode, err := ParseQueryMode(string(q.Mode))
	if err != nil {
		return err
	}
	q.Mode = mode
	if q.KeywordWeight < 0 || q.KeywordWeight > 1 {
		return fmt.Errorf("keyword weight %.2f must be in [0, 1]", q.KeywordWeight)
	}
	if q.Mode == ModeHybrid && q.KeywordWeight == 0 {
		q.KeywordWeight = DefaultKeywordWeight
	}
	return nil
}
