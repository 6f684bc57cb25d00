// Package storage provides SQLite access to the HPO relationship database
// and the vector index file.
//
// The relationship database holds four association tables loaded from the
// HPO release files:
//   - hpo_annotations: disease to phenotype annotations (phenotype.hpoa)
//   - genes_to_disease: gene to disease associations
//   - genes_to_phenotype: gene to phenotype associations with frequency
//   - phenotype_to_genes: phenotype to gene associations
//
// No foreign keys connect the tables. Every lookup is a best-effort join on
// exact identifier equality, and zero rows is a normal outcome.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("hpo_data.db")
//	if errors.Is(err, storage.ErrStoreMissing) {
//	    // report the database as absent
//	}
//	defer store.Close()
//
//	genes, err := store.GenesByTerm(ctx, "HP:0001250")
//
// The serving process only opens stores read-only. Writer is used by the
// load command to populate a store from the release TSV files.
//
// # Index File
//
// WriteIndexFile and ReadIndexFile persist embedded ontology terms in a
// separate SQLite file (index_meta + term_vectors). Vectors are stored as
// little-endian float32 blobs.
//
// # Build Tags
//
// Pure Go build (default):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
// CGO build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo"
package storage
