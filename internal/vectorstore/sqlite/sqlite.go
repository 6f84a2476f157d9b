// Package sqlite persists document vectors in a local SQLite file and
// searches them by brute-force cosine similarity.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver

	"symptomrag/internal/domain"
	"symptomrag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id        TEXT PRIMARY KEY,
	text      TEXT NOT NULL,
	position  INTEGER NOT NULL,
	embedding BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Storage keeps one collection per database file.
type Storage struct {
	db   *sql.DB
	path string
}

// Path returns the database file of collection inside dir.
func Path(dir, collection string) string {
	return filepath.Join(dir, collection+".db")
}

// Exists reports whether the collection file is present in dir.
func Exists(dir, collection string) bool {
	info, err := os.Stat(Path(dir, collection))
	return err == nil && !info.IsDir()
}

// NewStorage opens (creating if needed) the collection database in dir.
func NewStorage(dir, collection string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	path := Path(dir, collection)
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Storage{db: db, path: path}, nil
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	current, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if current == dimension {
		return nil
	}
	if current != 0 {
		n, err := s.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("dimension mismatch: store has %d, got %d", current, dimension)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('dimension', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.Itoa(dimension))
	if err != nil {
		return fmt.Errorf("saving dimension: %w", err)
	}
	return nil
}

func (s *Storage) dimension(ctx context.Context) (int, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimension'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading dimension: %w", err)
	}
	return strconv.Atoi(value)
}

func (s *Storage) Upsert(ctx context.Context, docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM documents`).Scan(&next); err != nil {
		return fmt.Errorf("reading position: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, text, position, embedding)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, d := range docs {
		if len(vectors[i]) != dim {
			return errors.New("vector dimension mismatch")
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Text, next+i, encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("saving document %q: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding FROM documents ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			doc  domain.Document
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		results = append(results, domain.SearchResult{Document: doc, Score: vectorstore.Cosine(decodeVector(blob), vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vectorstore.TopK(results, topK), nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents; DELETE FROM meta;`); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}
	return nil
}

func (s *Storage) Close() error { return s.db.Close() }

// encodeVector stores a vector as little-endian float32 values.
func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(f)))
	}
	return buf
}

func decodeVector(data []byte) []float64 {
	v := make([]float64, len(data)/4)
	for i := range v {
		v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return v
}
