// Package models defines core data structures for remote files, chunks, and sync runs.
package models

import "time"

// EntryKind is the type of a remote content entry as reported by the content API.
type EntryKind string

const (
	KindFile EntryKind = "file"
	KindDir  EntryKind = "dir"
)

// FileDescriptor identifies one remote file or directory. Produced by the content API.
type FileDescriptor struct {
	Path string    `json:"path"`
	Name string    `json:"name"`
	Kind EntryKind `json:"kind"`
	Size int       `json:"size,omitempty"`
	SHA  string    `json:"sha,omitempty"`
}

// IsDir reports whether the entry is a directory.
func (f FileDescriptor) IsDir() bool {
	return f.Kind == KindDir
}

// RawContent is the fetched, still base64-encoded content of one file.
type RawContent struct {
	File     FileDescriptor `json:"file"`
	Encoding string         `json:"encoding,omitempty"`
	Content  string         `json:"content"`
}

// Chunk is one bounded, overlapping segment of a file's extracted text.
// Start and End are rune offsets of the chunk's span in the file's normalized text.
type Chunk struct {
	ID        string    `json:"id" db:"id"`
	Source    string    `json:"source" db:"source"`
	Index     int       `json:"chunk_index" db:"chunk_index"`
	Start     int       `json:"start_offset" db:"start_offset"`
	End       int       `json:"end_offset" db:"end_offset"`
	Content   string    `json:"content" db:"content"`
	Embedding []float32 `json:"-" db:"embedding"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
