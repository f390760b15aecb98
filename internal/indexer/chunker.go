package indexer

import (
	"fmt"
	"iter"
	"time"

	"github.com/hyperjump/docsync/internal/fileid"
	"github.com/hyperjump/docsync/internal/models"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 50
)

// boundaries are tried from the largest semantic unit to the smallest.
// A cut is placed right after the separator.
var boundaries = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
	{" ", "\t"},
}

// Span is one chunk's text and its rune offsets in the source text.
type Span struct {
	Index int
	Start int
	End   int
	Text  string
}

// Chunker splits text into overlapping character-bounded chunks.
// Sizes are measured in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Validate reports whether the chunker parameters satisfy 0 <= overlap < size.
func (c *Chunker) Validate() error {
	if c.chunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.chunkSize)
	}
	if c.chunkOverlap < 0 || c.chunkOverlap >= c.chunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.chunkSize, c.chunkOverlap)
	}
	return nil
}

// Spans returns the chunk sequence for text. The sequence is restartable and
// always yields the same spans for the same text. Each span after the first
// starts chunkOverlap runes before the previous span's end, so
// s0 + s1[overlap:] + s2[overlap:] + ... reconstructs text exactly.
// Invalid parameters yield no spans; call Validate first.
func (c *Chunker) Spans(text string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		if c.Validate() != nil {
			return
		}
		r := []rune(text)
		n := len(r)
		start := 0
		for i := 0; start < n; i++ {
			end := n
			if n-start > c.chunkSize {
				end = c.cut(r, start)
			}
			if !yield(Span{Index: i, Start: start, End: end, Text: string(r[start:end])}) {
				return
			}
			if end == n {
				return
			}
			start = end - c.chunkOverlap
		}
	}
}

// cut picks the end of the chunk starting at start. The result is in
// (start+overlap, start+size] so the following chunk always advances.
func (c *Chunker) cut(r []rune, start int) int {
	lo := start + c.chunkOverlap + 1
	hi := start + c.chunkSize
	for _, level := range boundaries {
		for p := hi; p >= lo; p-- {
			for _, sep := range level {
				if endsWith(r[:p], sep) {
					return p
				}
			}
		}
	}
	return hi
}

func endsWith(r []rune, sep string) bool {
	s := []rune(sep)
	if len(r) < len(s) {
		return false
	}
	tail := r[len(r)-len(s):]
	for i := range s {
		if tail[i] != s[i] {
			return false
		}
	}
	return true
}

// Split returns the chunk texts for text.
func (c *Chunker) Split(text string) []string {
	var out []string
	for s := range c.Spans(text) {
		out = append(out, s.Text)
	}
	return out
}

// Chunk splits the extracted text of the file at source into Chunks with stable IDs.
func (c *Chunker) Chunk(source, text string) []*models.Chunk {
	var chunks []*models.Chunk
	now := time.Now().UTC()
	for s := range c.Spans(text) {
		chunks = append(chunks, &models.Chunk{
			ID:        fileid.ChunkID(source, s.Index),
			Source:    source,
			Index:     s.Index,
			Start:     s.Start,
			End:       s.End,
			Content:   s.Text,
			CreatedAt: now,
		})
	}
	return chunks
}
