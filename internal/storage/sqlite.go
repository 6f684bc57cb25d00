package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrStoreMissing is returned when the database file does not exist
	ErrStoreMissing = errors.New("database file not found")
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface over a read-only SQLite file
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// readOnlyDSN builds a URI DSN understood by both drivers
func readOnlyDSN(path string) string {
	return "file:" + path + "?mode=ro"
}

// NewSQLiteStorage opens an existing database read-only. The file must
// already exist; a missing file is reported as ErrStoreMissing rather than
// silently creating an empty database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreMissing, dbPath)
		}
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}

	db, err := sql.Open(DriverName, readOnlyDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Readers never contend, so allow one connection per core
	db.SetMaxOpenConns(runtime.NumCPU())
	db.SetMaxIdleConns(runtime.NumCPU())
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Term -> gene

func (s *SQLiteStorage) GenesByTerm(ctx context.Context, hpoID string) ([]TermGene, error) {
	query := `
		SELECT DISTINCT COALESCE(hpo_id, ''), COALESCE(hpo_name, ''),
		       COALESCE(ncbi_gene_id, ''), COALESCE(gene_symbol, '')
		FROM phenotype_to_genes
		WHERE hpo_id = ?
		ORDER BY gene_symbol, ncbi_gene_id
	`
	rows, err := s.db.QueryContext(ctx, query, hpoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query genes for term: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TermGene, 0)
	for rows.Next() {
		var r TermGene
		if err := rows.Scan(&r.HPOID, &r.HPOName, &r.GeneID, &r.GeneSymbol); err != nil {
			return nil, fmt.Errorf("failed to scan term gene: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Gene -> term

func (s *SQLiteStorage) PhenotypesByGene(ctx context.Context, geneID string) ([]GenePhenotype, error) {
	query := `
		SELECT DISTINCT COALESCE(ncbi_gene_id, ''), COALESCE(gene_symbol, ''),
		       COALESCE(hpo_id, ''), COALESCE(hpo_name, ''),
		       COALESCE(frequency, ''), COALESCE(disease_id, '')
		FROM genes_to_phenotype
		WHERE ncbi_gene_id = ?
		ORDER BY hpo_id, disease_id
	`
	rows, err := s.db.QueryContext(ctx, query, geneID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phenotypes for gene: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]GenePhenotype, 0)
	for rows.Next() {
		var r GenePhenotype
		if err := rows.Scan(&r.GeneID, &r.GeneSymbol, &r.HPOID, &r.HPOName, &r.Frequency, &r.DiseaseID); err != nil {
			return nil, fmt.Errorf("failed to scan gene phenotype: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Gene <-> disease

func (s *SQLiteStorage) DiseasesByGene(ctx context.Context, geneID string) ([]GeneDisease, error) {
	return s.queryGeneDiseases(ctx, "ncbi_gene_id = ?", "disease_id", geneID)
}

func (s *SQLiteStorage) GenesByDisease(ctx context.Context, diseaseID string) ([]GeneDisease, error) {
	return s.queryGeneDiseases(ctx, "disease_id = ?", "gene_symbol, ncbi_gene_id", diseaseID)
}

func (s *SQLiteStorage) queryGeneDiseases(ctx context.Context, where, orderBy, key string) ([]GeneDisease, error) {
	query := `
		SELECT DISTINCT COALESCE(ncbi_gene_id, ''), COALESCE(gene_symbol, ''),
		       COALESCE(association_type, ''), COALESCE(disease_id, ''), COALESCE(source, '')
		FROM genes_to_disease
		WHERE ` + where + `
		ORDER BY ` + orderBy
	rows, err := s.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query gene diseases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]GeneDisease, 0)
	for rows.Next() {
		var r GeneDisease
		if err := rows.Scan(&r.GeneID, &r.GeneSymbol, &r.AssociationType, &r.DiseaseID, &r.Source); err != nil {
			return nil, fmt.Errorf("failed to scan gene disease: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Term <-> disease

func (s *SQLiteStorage) AnnotationsByTerm(ctx context.Context, hpoID string) ([]Annotation, error) {
	return s.queryAnnotations(ctx, "HPO_ID = ?", "DatabaseId", hpoID)
}

func (s *SQLiteStorage) AnnotationsByDisease(ctx context.Context, diseaseID string) ([]Annotation, error) {
	return s.queryAnnotations(ctx, "DatabaseId = ?", "HPO_ID", diseaseID)
}

func (s *SQLiteStorage) queryAnnotations(ctx context.Context, where, orderBy, key string) ([]Annotation, error) {
	query := `
		SELECT DISTINCT COALESCE(DatabaseId, ''), COALESCE(DB_Name, ''), COALESCE(Qualifier, ''),
		       COALESCE(HPO_ID, ''), COALESCE(DB_Reference, ''), COALESCE(Evidence, ''),
		       COALESCE(Onset, ''), COALESCE(Frequency, ''), COALESCE(Sex, ''),
		       COALESCE(Modifier, ''), COALESCE(Aspect, ''), COALESCE(BiocurationBy, '')
		FROM hpo_annotations
		WHERE ` + where + `
		ORDER BY ` + orderBy
	rows, err := s.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]Annotation, 0)
	for rows.Next() {
		var a Annotation
		if err := rows.Scan(&a.DiseaseID, &a.DiseaseName, &a.Qualifier, &a.HPOID, &a.Reference,
			&a.Evidence, &a.Onset, &a.Frequency, &a.Sex, &a.Modifier, &a.Aspect, &a.BiocurationBy); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// Name lookups

// TermNames resolves display names for the given term ids. Ids without a
// name are absent from the returned map. phenotype_to_genes wins over
// genes_to_phenotype when both carry a name.
func (s *SQLiteStorage) TermNames(ctx context.Context, hpoIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(hpoIDs))
	if len(hpoIDs) == 0 {
		return names, nil
	}

	for _, table := range []string{TablePhenotypeToGenes, TableGenesToPhenotype} {
		pending := make([]interface{}, 0, len(hpoIDs))
		for _, id := range hpoIDs {
			if _, ok := names[id]; !ok {
				pending = append(pending, id)
			}
		}
		if len(pending) == 0 {
			break
		}

		query := `SELECT hpo_id, MIN(hpo_name) FROM ` + table + `
			WHERE hpo_id IN (` + placeholders(len(pending)) + `)
			AND hpo_name IS NOT NULL AND hpo_name != ''
			GROUP BY hpo_id`
		rows, err := s.db.QueryContext(ctx, query, pending...)
		if err != nil {
			return nil, fmt.Errorf("failed to query term names from %s: %w", table, err)
		}
		for rows.Next() {
			var id, name string
			if err := rows.Scan(&id, &name); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan term name: %w", err)
			}
			names[id] = name
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
	}

	return names, nil
}

// GeneSymbol finds the symbol for a gene id in any of the gene tables
func (s *SQLiteStorage) GeneSymbol(ctx context.Context, geneID string) (string, bool, error) {
	for _, table := range []string{TableGenesToDisease, TableGenesToPhenotype, TablePhenotypeToGenes} {
		var symbol string
		err := s.db.QueryRowContext(ctx, `
			SELECT gene_symbol FROM `+table+`
			WHERE ncbi_gene_id = ? AND gene_symbol IS NOT NULL AND gene_symbol != ''
			LIMIT 1
		`, geneID).Scan(&symbol)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to query gene symbol from %s: %w", table, err)
		}
		return symbol, true, nil
	}
	return "", false, nil
}

// Status operations

// GetStatus collects schema version, size and per-table row counts. A
// failing table count is recorded on that table rather than failing the call.
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*StoreStatus, error) {
	status := &StoreStatus{}

	version, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if version.String() != "0.0.0" {
		status.SchemaVersion = version.String()
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeBytes = pageCount * pageSize
	}

	tables, err := s.listTables(ctx)
	if err != nil {
		return nil, err
	}

	// Each goroutine writes only its own slot
	status.Tables = make([]TableStatus, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, name := range tables {
		g.Go(func() error {
			var count int
			err := s.db.QueryRowContext(gctx, "SELECT COUNT(*) FROM "+quoteIdent(name)).Scan(&count)
			status.Tables[i] = TableStatus{Name: name, RecordCount: count, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	// A missing phenotype_to_genes table shows up in Tables; the term count stays zero
	_ = s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT hpo_id) FROM phenotype_to_genes WHERE hpo_id LIKE 'HP:%'",
	).Scan(&status.HPOTermsCount)

	return status, nil
}

func (s *SQLiteStorage) listTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// placeholders returns "?,?,..." with n entries
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// quoteIdent quotes a SQL identifier taken from sqlite_master
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
