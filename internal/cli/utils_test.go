package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/docsync/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	for _, in := range []string{"text", "JSON"} {
		if _, err := ParseOutputFormat(in); err != nil {
			t.Errorf("ParseOutputFormat(%q): %v", in, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
}

func sampleReport() *models.SyncReport {
	return &models.SyncReport{
		Phase:          models.PhaseDone,
		ClearErr:       errors.New("collection locked"),
		FilesListed:    3,
		FilesProcessed: 2,
		FilesSkipped:   1,
		ChunksProduced: 5,
		ChunksWritten:  5,
		Skipped:        []models.SkippedFile{{Path: "docs/logo.png", Reason: models.SkipUnsupported}},
		Duration:       1500 * time.Millisecond,
	}
}

func TestWriteSyncReport_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSyncReport(&buf, sampleReport(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"sync:            ok",
		"clear:           failed: collection locked",
		"chunks_written:  5",
		"duration:        1.5s",
		"unsupported_format   docs/logo.png",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSyncReport_TextFailed(t *testing.T) {
	report := &models.SyncReport{Phase: models.PhaseFailed, FailedIn: models.PhaseWalking}
	var buf bytes.Buffer
	if err := WriteSyncReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "FAILED during walking") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestWriteSyncReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSyncReport(&buf, sampleReport(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded["phase"] != "done" || decoded["chunks_written"] != float64(5) {
		t.Errorf("decoded = %v", decoded)
	}
	if decoded["clear_error"] != "collection locked" {
		t.Errorf("clear_error = %v", decoded["clear_error"])
	}
	skipped, ok := decoded["skipped"].([]any)
	if !ok || len(skipped) != 1 {
		t.Errorf("skipped = %v", decoded["skipped"])
	}
}

func TestWriteStatus(t *testing.T) {
	disk := int64(4096)
	status := &Status{
		Backend:        "sqlite",
		Collection:     "documents",
		Chunks:         12,
		DiskUsageBytes: &disk,
		Config: &StatusConfig{
			Source:              "octo-org/handbook:docs",
			Structure:           "nested",
			EmbeddingProvider:   "openai",
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 1536,
			ChunkSize:           1000,
			ChunkOverlap:        50,
		},
	}

	var text bytes.Buffer
	if err := WriteStatus(&text, status, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"chunks:             12", "disk_usage_bytes:   4096", "embedding:          openai (text-embedding-3-small)"} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("text output missing %q:\n%s", want, text.String())
		}
	}

	var js bytes.Buffer
	if err := WriteStatus(&js, status, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded Status
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Chunks != 12 || decoded.DiskUsageBytes == nil || *decoded.DiskUsageBytes != 4096 || decoded.Config.ChunkSize != 1000 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteQueryResults(t *testing.T) {
	response := &models.QueryResponse{
		Query:     "install",
		QueryTime: 7,
		Results: []*models.QueryResult{{
			Rank:  1,
			Score: 0.87654,
			Chunk: &models.Chunk{Source: "docs/setup.md", Index: 2, Start: 950, End: 1950, Content: "Run\n\nmake   install " + strings.Repeat("x", 300)},
		}},
	}

	var text bytes.Buffer
	if err := WriteQueryResults(&text, response, OutputText); err != nil {
		t.Fatal(err)
	}
	out := text.String()
	for _, want := range []string{"Found 1 chunks in 7ms", "Rank: 1 | Score: 0.8765", "Source: docs/setup.md#2 [950:1950]", "Run make install x", "..."} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}

	var js bytes.Buffer
	if err := WriteQueryResults(&js, response, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.QueryResponse
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Query != "install" || len(decoded.Results) != 1 || decoded.Results[0].Chunk.Source != "docs/setup.md" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteQueryResults_Hybrid(t *testing.T) {
	response := &models.QueryResponse{
		Query: "install",
		Mode:  models.ModeHybrid,
		Results: []*models.QueryResult{{
			Rank:          1,
			Score:         0.75,
			KeywordScore:  1,
			SemanticScore: 0.5,
			Chunk:         &models.Chunk{Source: "docs/setup.md", Content: "make install"},
		}},
	}
	var text bytes.Buffer
	if err := WriteQueryResults(&text, response, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"(hybrid)", "Rank: 1 | Score: 0.7500 | Keyword: 1.0000 | Semantic: 0.5000"} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("text output missing %q:\n%s", want, text.String())
		}
	}
}
