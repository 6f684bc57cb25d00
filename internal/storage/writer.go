package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// Writer loads HPO release rows into a relationship store. It is used by
// offline tooling only; the serving process opens stores read-only.
type Writer struct {
	db   *sql.DB
	path string
}

// NewWriter opens (creating if needed) a database for loading and applies
// pending migrations.
func NewWriter(ctx context.Context, dbPath string) (*Writer, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &Writer{db: db, path: dbPath}, nil
}

// Close checkpoints the WAL and closes the database. The file is left in
// rollback-journal mode so read-only opens need no -shm file.
func (w *Writer) Close() error {
	_, _ = w.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	_, _ = w.db.Exec("PRAGMA journal_mode=DELETE")
	return w.db.Close()
}

// Path returns the database file path
func (w *Writer) Path() string {
	return w.path
}

// ReplaceAnnotations replaces the contents of hpo_annotations
func (w *Writer) ReplaceAnnotations(ctx context.Context, rows []Annotation) (int, error) {
	return replaceRows(ctx, w.db, TableAnnotations,
		`INSERT INTO hpo_annotations (DatabaseId, DB_Name, Qualifier, HPO_ID, DB_Reference,
			Evidence, Onset, Frequency, Sex, Modifier, Aspect, BiocurationBy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(rows), func(stmt *sql.Stmt, i int) error {
			a := rows[i]
			_, err := stmt.ExecContext(ctx, a.DiseaseID, a.DiseaseName, a.Qualifier, a.HPOID, a.Reference,
				a.Evidence, a.Onset, a.Frequency, a.Sex, a.Modifier, a.Aspect, a.BiocurationBy)
			return err
		})
}

// ReplaceGenesToDisease replaces the contents of genes_to_disease
func (w *Writer) ReplaceGenesToDisease(ctx context.Context, rows []GeneDisease) (int, error) {
	return replaceRows(ctx, w.db, TableGenesToDisease,
		`INSERT INTO genes_to_disease (ncbi_gene_id, gene_symbol, association_type, disease_id, source)
		VALUES (?, ?, ?, ?, ?)`,
		len(rows), func(stmt *sql.Stmt, i int) error {
			r := rows[i]
			_, err := stmt.ExecContext(ctx, r.GeneID, r.GeneSymbol, r.AssociationType, r.DiseaseID, r.Source)
			return err
		})
}

// ReplaceGenesToPhenotype replaces the contents of genes_to_phenotype
func (w *Writer) ReplaceGenesToPhenotype(ctx context.Context, rows []GenePhenotype) (int, error) {
	return replaceRows(ctx, w.db, TableGenesToPhenotype,
		`INSERT INTO genes_to_phenotype (ncbi_gene_id, gene_symbol, hpo_id, hpo_name, frequency, disease_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		len(rows), func(stmt *sql.Stmt, i int) error {
			r := rows[i]
			_, err := stmt.ExecContext(ctx, r.GeneID, r.GeneSymbol, r.HPOID, r.HPOName, r.Frequency, r.DiseaseID)
			return err
		})
}

// ReplacePhenotypeToGenes replaces the contents of phenotype_to_genes
func (w *Writer) ReplacePhenotypeToGenes(ctx context.Context, rows []TermGene) (int, error) {
	return replaceRows(ctx, w.db, TablePhenotypeToGenes,
		`INSERT INTO phenotype_to_genes (hpo_id, hpo_name, ncbi_gene_id, gene_symbol)
		VALUES (?, ?, ?, ?)`,
		len(rows), func(stmt *sql.Stmt, i int) error {
			r := rows[i]
			_, err := stmt.ExecContext(ctx, r.HPOID, r.HPOName, r.GeneID, r.GeneSymbol)
			return err
		})
}

// NormalizeGeneIDs strips the "NCBIGene:" prefix from every gene id column
// so lookups match on the bare numeric id. Returns the number of rows changed.
func (w *Writer) NormalizeGeneIDs(ctx context.Context) (int64, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, table := range []string{TableGenesToDisease, TableGenesToPhenotype, TablePhenotypeToGenes} {
		res, err := tx.ExecContext(ctx, `
			UPDATE `+table+`
			SET ncbi_gene_id = REPLACE(ncbi_gene_id, 'NCBIGene:', '')
			WHERE ncbi_gene_id LIKE 'NCBIGene:%'
		`)
		if err != nil {
			return 0, fmt.Errorf("failed to normalize gene ids in %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return total, nil
}

// replaceRows deletes every row of table and inserts n new rows in a single
// transaction. insert is called once per row with a prepared statement.
func replaceRows(ctx context.Context, db *sql.DB, table, insertSQL string, n int, insert func(*sql.Stmt, int) error) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert for %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := insert(stmt, i); err != nil {
			return 0, fmt.Errorf("failed to insert row %d into %s: %w", i, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return n, nil
}
