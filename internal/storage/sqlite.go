package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docsync/internal/models"
	"github.com/hyperjump/docsync/internal/vector"
	"github.com/hyperjump/docsync/pkg/utils"
)

// SQLiteStore implements Store using a local SQLite database. Several
// collections may share one database file.
type SQLiteStore struct {
	db         *sql.DB
	collection string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath, collection string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if collection == "" {
		collection = DefaultCollection
	}
	return &SQLiteStore{db: db, collection: collection}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(collection, source, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// DeleteAll removes every chunk in the collection.
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, s.collection)
	return err
}

// BulkInsert inserts all chunks in a single transaction; nothing is written if any insert fails.
func (s *SQLiteStore) BulkInsert(ctx context.Context, chunks []*models.Chunk) error {
	if err := checkEmbeddings(chunks); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (collection, id, source, chunk_index, start_offset, end_offset, content, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			s.collection, c.ID, c.Source, c.Index, c.Start, c.End, c.Content,
			utils.EncodeFloat32s(c.Embedding), c.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert chunk %s#%d: %w", c.Source, c.Index, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of chunks in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, s.collection).Scan(&count)
	return count, err
}

// ListChunks returns every chunk in the collection with its embedding, ordered by source and index.
func (s *SQLiteStore) ListChunks(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, chunk_index, start_offset, end_offset, content, embedding, created_at
		 FROM chunks WHERE collection = ? ORDER BY source, chunk_index`,
		s.collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Source, &c.Index, &c.Start, &c.End, &c.Content, &blob, &c.CreatedAt); err != nil {
			return nil, err
		}
		if c.Embedding, err = utils.DecodeFloat32s(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// Search loads the collection into an in-memory index and returns the k nearest chunks.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int) ([]*models.QueryResult, error) {
	chunks, err := s.ListChunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	idx, err := vector.NewMemoryIndex(len(query))
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	byID := make(map[string]*models.Chunk, len(chunks))
	ids := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		byID[c.ID] = c
		ids[i] = c.ID
		vecs[i] = c.Embedding
	}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		return nil, err
	}
	hits, err := idx.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	results := make([]*models.QueryResult, len(hits))
	for i, h := range hits {
		results[i] = &models.QueryResult{Chunk: byID[h.ID], Score: h.Score, Rank: i + 1}
	}
	return results, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var (
	_ Store    = (*SQLiteStore)(nil)
	_ Lister   = (*SQLiteStore)(nil)
	_ Searcher = (*SQLiteStore)(nil)
)
