package storage

import (
	"context"
)

// UnknownName is the sentinel returned wherever a display name cannot be resolved.
const UnknownName = "unknown"

// Table names of the HPO release data
const (
	TableAnnotations      = "hpo_annotations"
	TableGenesToDisease   = "genes_to_disease"
	TableGenesToPhenotype = "genes_to_phenotype"
	TablePhenotypeToGenes = "phenotype_to_genes"
)

// AssociationTables lists the four association tables in load order
var AssociationTables = []string{
	TableAnnotations,
	TableGenesToDisease,
	TableGenesToPhenotype,
	TablePhenotypeToGenes,
}

// Storage defines the read-only query surface over the association tables.
// Every lookup matches identifiers by exact string equality and returns an
// empty slice (not an error) when nothing matches.
type Storage interface {
	// Term -> gene (phenotype_to_genes)
	GenesByTerm(ctx context.Context, hpoID string) ([]TermGene, error)

	// Gene -> term (genes_to_phenotype)
	PhenotypesByGene(ctx context.Context, geneID string) ([]GenePhenotype, error)

	// Gene <-> disease (genes_to_disease)
	DiseasesByGene(ctx context.Context, geneID string) ([]GeneDisease, error)
	GenesByDisease(ctx context.Context, diseaseID string) ([]GeneDisease, error)

	// Term <-> disease (hpo_annotations)
	AnnotationsByTerm(ctx context.Context, hpoID string) ([]Annotation, error)
	AnnotationsByDisease(ctx context.Context, diseaseID string) ([]Annotation, error)

	// Name lookups
	TermNames(ctx context.Context, hpoIDs []string) (map[string]string, error)
	GeneSymbol(ctx context.Context, geneID string) (string, bool, error)

	// Status operations
	GetStatus(ctx context.Context) (*StoreStatus, error)

	// Database operations
	Path() string
	Close() error
}

// TermGene is a row of phenotype_to_genes
type TermGene struct {
	HPOID      string
	HPOName    string
	GeneID     string
	GeneSymbol string
}

// GenePhenotype is a row of genes_to_phenotype
type GenePhenotype struct {
	GeneID     string
	GeneSymbol string
	HPOID      string
	HPOName    string
	Frequency  string
	DiseaseID  string
}

// GeneDisease is a row of genes_to_disease
type GeneDisease struct {
	GeneID          string
	GeneSymbol      string
	AssociationType string
	DiseaseID       string
	Source          string
}

// Annotation is a row of hpo_annotations (phenotype.hpoa)
type Annotation struct {
	DiseaseID     string // DatabaseId
	DiseaseName   string // DB_Name
	Qualifier     string
	HPOID         string
	Reference     string // DB_Reference
	Evidence      string
	Onset         string
	Frequency     string
	Sex           string
	Modifier      string
	Aspect        string
	BiocurationBy string
}

// StoreStatus contains statistics about the relationship store
type StoreStatus struct {
	SchemaVersion string // empty when the database predates schema tracking
	SizeBytes     int64
	HPOTermsCount int
	Tables        []TableStatus
}

// TableStatus reports the row count of a single table
type TableStatus struct {
	Name        string
	RecordCount int
	Err         error
}
