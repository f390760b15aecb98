// Package extract provides text extraction from fetched repository files.
package extract

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/docsync/internal/models"
)

var (
	// ErrUnsupportedFormat is returned for file names whose extension has no extractor.
	// Callers treat it as a zero-text outcome, not a failure.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrDecode is returned when delivered content is not valid base64.
	ErrDecode = errors.New("decode content")
)

// Extractor extracts plain text from fetched file content.
type Extractor struct {
	pdfReader func([]byte) (PageSource, error)
}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{pdfReader: openPDF}
}

// Supported reports whether name has an extension the extractor handles.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".pdf":
		return true
	}
	return false
}

// Extract decodes raw's base64 content and returns its text, dispatching on the file name.
// Unsupported extensions return ErrUnsupportedFormat before any decoding.
func (e *Extractor) Extract(raw *models.RawContent) (string, error) {
	ext := strings.ToLower(filepath.Ext(raw.File.Name))
	if !Supported(raw.File.Name) {
		return "", fmt.Errorf("%s: %w", raw.File.Path, ErrUnsupportedFormat)
	}
	content, err := DecodeBase64(raw.Content)
	if err != nil {
		return "", fmt.Errorf("%s: %w", raw.File.Path, err)
	}
	text, err := e.ExtractBytes(content, ext)
	if err != nil {
		return "", fmt.Errorf("%s: %w", raw.File.Path, err)
	}
	return text, nil
}

// ExtractBytes extracts text from decoded content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".md":
		return extractMarkup(content)
	case ".pdf":
		pages, err := e.pdfReader(content)
		if err != nil {
			return "", err
		}
		return JoinPages(pages)
	default:
		return "", fmt.Errorf("extension %q: %w", ext, ErrUnsupportedFormat)
	}
}

// DecodeBase64 decodes standard base64 as delivered by the contents API,
// which wraps the payload with line breaks.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return b, nil
}
