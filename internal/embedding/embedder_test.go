package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, err := e.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "hello")
	c, _ := e.Embed(ctx, "world")
	if len(a) != 16 {
		t.Fatalf("len = %d", len(a))
	}
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should give same embedding")
		}
		norm += float64(a[i] * a[i])
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("norm = %v, want 1", norm)
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Error("different texts should give different embeddings")
	}
}

func TestEmbedAll_Batches(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(4)}
	texts := []string{"a", "b", "c", "d", "e"}
	embs, err := EmbedAll(context.Background(), inner, texts, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 5 {
		t.Fatalf("got %d embeddings", len(embs))
	}
	want, _ := inner.MockEmbedder.Embed(context.Background(), "e")
	if embs[4][0] != want[0] {
		t.Error("embeddings should keep input order")
	}
}

func TestEmbedAll_Empty(t *testing.T) {
	embs, err := EmbedAll(context.Background(), NewMockEmbedder(4), nil, 10)
	if err != nil || len(embs) != 0 {
		t.Errorf("got %v, %v", embs, err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		cached  bool
	}{
		{"mock", Config{Provider: "mock", Dimensions: 8}, false, false},
		{"mock cached", Config{Provider: "MOCK", Dimensions: 8, CacheSize: 10}, false, true},
		{"openai without key", Config{Provider: "openai"}, true, false},
		{"openai", Config{Provider: "openai", APIKey: "k"}, false, false},
		{"unknown", Config{Provider: "cohere"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer e.Close()
			if _, ok := e.(*CachedEmbedder); ok != tt.cached {
				t.Errorf("cached = %v, want %v", ok, tt.cached)
			}
		})
	}
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var gotReq struct {
		Input      []string `json:"input"`
		Model      string   `json:"model"`
		Dimensions int      `json:"dimensions"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// Respond out of order to check index sorting.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,1,0]},
			{"object":"embedding","index":0,"embedding":[1,0,0]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", srv.URL+"/v1", "", 3)
	if err != nil {
		t.Fatal(err)
	}
	embs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if gotReq.Model != "text-embedding-3-small" || gotReq.Dimensions != 3 || len(gotReq.Input) != 2 {
		t.Errorf("request = %+v", gotReq)
	}
	if embs[0][0] != 1 || embs[1][1] != 1 {
		t.Errorf("embeddings not ordered by index: %v", embs)
	}
}

func TestOpenAIEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", srv.URL+"/v1", "", 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error from rate-limited server")
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkCachedEmbedder_Embed(b *testing.B) {
	e := NewCachedEmbedder(NewMockEmbedder(384), 100)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}
