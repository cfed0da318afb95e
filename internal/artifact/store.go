// Package artifact persists per-row spectral artifacts keyed by their index
// in the accumulated fitter log.
package artifact

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("spectral store is closed")

// AlreadyExistsError is returned when a fresh run would overwrite a store
// left by a previous run.
type AlreadyExistsError struct {
	Path string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("spectral store already exists: %s (set resume to append to it)", e.Path)
}

// NotFoundError is returned when no artifact is stored at an index.
type NotFoundError struct {
	Index int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no artifact stored at index %d", e.Index)
}

// SpectralStore is a SQLite backed map from log row index to a float64
// vector. A duplicate index overwrites the previous payload.
type SpectralStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// Open creates the store at path. Without resume an existing file is
// rejected with *AlreadyExistsError; with resume it is reopened in place.
func Open(ctx context.Context, path string, resume bool) (*SpectralStore, error) {
	if path == "" {
		return nil, errors.New("spectral store path is required")
	}
	if _, err := os.Stat(path); err == nil {
		if !resume {
			return nil, &AlreadyExistsError{Path: path}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SpectralStore{path: path, db: db}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS spectra (
			idx INTEGER PRIMARY KEY,
			length INTEGER NOT NULL,
			payload BLOB
		)
	`)
	return err
}

// Path returns the database file.
func (s *SpectralStore) Path() string {
	return s.path
}

// Store writes one artifact.
func (s *SpectralStore) Store(ctx context.Context, index int, values []float64) error {
	return s.StoreBatch(ctx, map[int][]float64{index: values})
}

// StoreBatch writes several artifacts in one transaction.
func (s *SpectralStore) StoreBatch(ctx context.Context, artifacts map[int][]float64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for index, values := range artifacts {
		if index < 0 {
			return fmt.Errorf("artifact index %d is negative", index)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO spectra (idx, length, payload)
			VALUES (?, ?, ?)
			ON CONFLICT(idx) DO UPDATE SET
				length = excluded.length,
				payload = excluded.payload
		`, index, len(values), encode(values)); err != nil {
			return fmt.Errorf("store artifact %d: %w", index, err)
		}
	}
	return tx.Commit()
}

// Load returns the artifact stored at index.
func (s *SpectralStore) Load(ctx context.Context, index int) ([]float64, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var length int
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT length, payload FROM spectra WHERE idx = ?`, index).Scan(&length, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Index: index}
		}
		return nil, err
	}
	values, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode artifact %d: %w", index, err)
	}
	if len(values) != length {
		return nil, fmt.Errorf("decode artifact %d: expected %d values, got %d", index, length, len(values))
	}
	return values, nil
}

// Count returns the number of stored artifacts.
func (s *SpectralStore) Count(ctx context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spectra`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// MaxIndex returns the largest stored index, or -1 for an empty store.
func (s *SpectralStore) MaxIndex(ctx context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var idx sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(idx) FROM spectra`).Scan(&idx); err != nil {
		return 0, err
	}
	if !idx.Valid {
		return -1, nil
	}
	return int(idx.Int64), nil
}

// Close releases the database.
func (s *SpectralStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SpectralStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

func encode(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decode(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("payload of %d bytes is not a float64 vector", len(buf))
	}
	values := make([]float64, len(buf)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return values, nil
}
