package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
}

// Column names follow the upstream HPO release files so databases built by
// older tooling open unchanged.
const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- phenotype.hpoa
CREATE TABLE IF NOT EXISTS hpo_annotations (
    DatabaseId TEXT,
    DB_Name TEXT,
    Qualifier TEXT,
    HPO_ID TEXT,
    DB_Reference TEXT,
    Evidence TEXT,
    Onset TEXT,
    Frequency TEXT,
    Sex TEXT,
    Modifier TEXT,
    Aspect TEXT,
    BiocurationBy TEXT
);

-- genes_to_disease.txt
CREATE TABLE IF NOT EXISTS genes_to_disease (
    ncbi_gene_id TEXT,
    gene_symbol TEXT,
    association_type TEXT,
    disease_id TEXT,
    source TEXT
);

-- genes_to_phenotype.txt
CREATE TABLE IF NOT EXISTS genes_to_phenotype (
    ncbi_gene_id TEXT,
    gene_symbol TEXT,
    hpo_id TEXT,
    hpo_name TEXT,
    frequency TEXT,
    disease_id TEXT
);

-- phenotype_to_genes.txt
CREATE TABLE IF NOT EXISTS phenotype_to_genes (
    hpo_id TEXT,
    hpo_name TEXT,
    ncbi_gene_id TEXT,
    gene_symbol TEXT
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS phenotype_to_genes;
DROP TABLE IF EXISTS genes_to_phenotype;
DROP TABLE IF EXISTS genes_to_disease;
DROP TABLE IF EXISTS hpo_annotations;
DROP TABLE IF EXISTS schema_version;
`

// Lookup indexes for every key column the query layer filters on
const migrationV11Up = `
CREATE INDEX IF NOT EXISTS idx_annotations_hpo ON hpo_annotations(HPO_ID);
CREATE INDEX IF NOT EXISTS idx_annotations_disease ON hpo_annotations(DatabaseId);
CREATE INDEX IF NOT EXISTS idx_g2d_gene ON genes_to_disease(ncbi_gene_id);
CREATE INDEX IF NOT EXISTS idx_g2d_disease ON genes_to_disease(disease_id);
CREATE INDEX IF NOT EXISTS idx_g2p_gene ON genes_to_phenotype(ncbi_gene_id);
CREATE INDEX IF NOT EXISTS idx_g2p_hpo ON genes_to_phenotype(hpo_id);
CREATE INDEX IF NOT EXISTS idx_p2g_hpo ON phenotype_to_genes(hpo_id);
`

const migrationV11Down = `
DROP INDEX IF EXISTS idx_p2g_hpo;
DROP INDEX IF EXISTS idx_g2p_hpo;
DROP INDEX IF EXISTS idx_g2p_gene;
DROP INDEX IF EXISTS idx_g2d_disease;
DROP INDEX IF EXISTS idx_g2d_gene;
DROP INDEX IF EXISTS idx_annotations_disease;
DROP INDEX IF EXISTS idx_annotations_hpo;
`

// SchemaVersion returns the most recently applied migration version, or
// 0.0.0 when the database has no schema_version table.
func SchemaVersion(ctx context.Context, q querier) (*semver.Version, error) {
	var tableName string
	err := q.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := q.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// applied_at has second resolution, so pick the highest version rather
	// than the latest timestamp
	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		parsed, err := semver.NewVersion(v)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", v, err)
		}
		if parsed.GreaterThan(current) {
			current = parsed
		}
	}
	return current, rows.Err()
}

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range AllMigrations {
		if semver.MustParse(AllMigrations[i].Version).Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	// The v1 down script drops schema_version itself
	if migration.Version != AllMigrations[0].Version {
		if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
			return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
		}
	}

	return nil
}
