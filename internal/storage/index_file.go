package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrIndexFileMissing is returned when the vector index file does not exist
var ErrIndexFileMissing = errors.New("index file not found")

// Index metadata keys
const (
	MetaProvider  = "provider"
	MetaModel     = "model"
	MetaDimension = "dimension"
	MetaBuiltAt   = "built_at"
	MetaSource    = "source"
	MetaTerms     = "terms"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS index_meta (
    key TEXT PRIMARY KEY,
    value TEXT
);

CREATE TABLE IF NOT EXISTS term_vectors (
    hpo_id TEXT PRIMARY KEY,
    label TEXT,
    content TEXT,
    vector BLOB NOT NULL
);
`

// TermVector is one embedded ontology term as stored in the index file
type TermVector struct {
	HPOID   string
	Label   string
	Content string
	Vector  []float32
}

// IndexFile holds everything read back from an index file
type IndexFile struct {
	Meta    map[string]string
	Vectors []TermVector
}

// WriteIndexFile writes meta and vectors to path. The file is built next to
// the target and renamed into place, so readers never see a partial index.
func WriteIndexFile(ctx context.Context, path string, meta map[string]string, vectors []TermVector) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	db, err := sql.Open(DriverName, tmp)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := writeIndex(ctx, db, meta, vectors); err != nil {
		_ = db.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close index file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move index file into place: %w", err)
	}
	return nil
}

func writeIndex(ctx context.Context, db *sql.DB, meta map[string]string, vectors []TermVector) error {
	if _, err := db.ExecContext(ctx, indexSchema); err != nil {
		return fmt.Errorf("failed to create index schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO index_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to write index meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO term_vectors (hpo_id, label, content, vector) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare vector insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, tv := range vectors {
		if _, err := stmt.ExecContext(ctx, tv.HPOID, tv.Label, tv.Content, serializeVector(tv.Vector)); err != nil {
			return fmt.Errorf("failed to write vector for %s: %w", tv.HPOID, err)
		}
	}

	return tx.Commit()
}

// ReadIndexFile loads an index file fully into memory. Vectors come back in
// hpo_id order.
func ReadIndexFile(ctx context.Context, path string) (*IndexFile, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexFileMissing, path)
		}
		return nil, fmt.Errorf("failed to stat index file: %w", err)
	}

	db, err := sql.Open(DriverName, readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = db.Close() }()

	out := &IndexFile{Meta: make(map[string]string)}

	rows, err := db.QueryContext(ctx, "SELECT key, COALESCE(value, '') FROM index_meta")
	if err != nil {
		return nil, fmt.Errorf("failed to read index meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan index meta: %w", err)
		}
		out.Meta[k] = v
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx,
		"SELECT hpo_id, COALESCE(label, ''), COALESCE(content, ''), vector FROM term_vectors ORDER BY hpo_id")
	if err != nil {
		return nil, fmt.Errorf("failed to read term vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tv TermVector
		var blob []byte
		if err := rows.Scan(&tv.HPOID, &tv.Label, &tv.Content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan term vector: %w", err)
		}
		tv.Vector, err = deserializeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("term %s: %w", tv.HPOID, err)
		}
		out.Vectors = append(out.Vectors, tv)
	}
	return out, rows.Err()
}
