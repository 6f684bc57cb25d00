// Package storagetest builds small HPO relationship databases and vector
// index files for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/phenotype-mcp/internal/embedder"
	"github.com/dshills/phenotype-mcp/internal/storage"
)

// Fixture rows. STXBP1 (6812) and FGFR1 (2260) appear in every gene table;
// 9999 only in genes_to_disease. HP:0000256 has no phenotype_to_genes row.
var (
	PhenotypeToGenes = []storage.TermGene{
		{HPOID: "HP:0001250", HPOName: "Seizure", GeneID: "6812", GeneSymbol: "STXBP1"},
		{HPOID: "HP:0001250", HPOName: "Seizure", GeneID: "6812", GeneSymbol: "STXBP1"},
		{HPOID: "HP:0001250", HPOName: "Seizure", GeneID: "2260", GeneSymbol: "FGFR1"},
		{HPOID: "HP:0001263", HPOName: "Global developmental delay", GeneID: "6812", GeneSymbol: "STXBP1"},
	}

	GenesToPhenotype = []storage.GenePhenotype{
		{GeneID: "6812", GeneSymbol: "STXBP1", HPOID: "HP:0001250", HPOName: "Seizure", DiseaseID: "OMIM:612164"},
		{GeneID: "6812", GeneSymbol: "STXBP1", HPOID: "HP:0001263", HPOName: "Global developmental delay", Frequency: "HP:0040282", DiseaseID: "OMIM:612164"},
		{GeneID: "2260", GeneSymbol: "FGFR1", HPOID: "HP:0000256", HPOName: "Macrocephaly", DiseaseID: "OMIM:101600"},
	}

	GenesToDisease = []storage.GeneDisease{
		{GeneID: "6812", GeneSymbol: "STXBP1", AssociationType: "MENDELIAN", DiseaseID: "OMIM:612164", Source: "ftp://ftp.omim.org/mim2gene_medgen"},
		{GeneID: "2260", GeneSymbol: "FGFR1", AssociationType: "MENDELIAN", DiseaseID: "OMIM:101600", Source: "ftp://ftp.omim.org/mim2gene_medgen"},
		{GeneID: "9999", GeneSymbol: "ONLYDIS", AssociationType: "POLYGENIC", DiseaseID: "ORPHA:1", Source: "orphanet"},
	}

	Annotations = []storage.Annotation{
		{DiseaseID: "OMIM:612164", DiseaseName: "Developmental and epileptic encephalopathy 4", HPOID: "HP:0001250", Reference: "PMID:18469812", Evidence: "PCS", Aspect: "P", BiocurationBy: "HPO:probinson[2013-01-09]"},
		{DiseaseID: "OMIM:612164", DiseaseName: "Developmental and epileptic encephalopathy 4", HPOID: "HP:0001263", Reference: "PMID:18469812", Evidence: "PCS", Frequency: "HP:0040282", Aspect: "P", BiocurationBy: "HPO:probinson[2013-01-09]"},
		{DiseaseID: "OMIM:101600", DiseaseName: "Pfeiffer syndrome", HPOID: "HP:0000256", Reference: "OMIM:101600", Evidence: "TAS", Onset: "HP:0003577", Aspect: "P", BiocurationBy: "HPO:skoehler[2009-02-17]"},
		{DiseaseID: "OMIM:101600", DiseaseName: "Pfeiffer syndrome", Qualifier: "NOT", HPOID: "HP:0001250", Reference: "OMIM:101600", Evidence: "TAS", Aspect: "P", BiocurationBy: "HPO:skoehler[2009-02-17]"},
	}
)

// NewStorePath writes the fixture rows to a fresh database in a temp dir
// and returns its path.
func NewStorePath(t testing.TB) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hpo_data.db")
	ctx := context.Background()

	w, err := storage.NewWriter(ctx, path)
	require.NoError(t, err)

	_, err = w.ReplaceAnnotations(ctx, Annotations)
	require.NoError(t, err)
	_, err = w.ReplaceGenesToDisease(ctx, GenesToDisease)
	require.NoError(t, err)
	_, err = w.ReplaceGenesToPhenotype(ctx, GenesToPhenotype)
	require.NoError(t, err)
	_, err = w.ReplacePhenotypeToGenes(ctx, PhenotypeToGenes)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return path
}

// NewStore opens the fixture database read-only and closes it on cleanup
func NewStore(t testing.TB) *storage.SQLiteStorage {
	t.Helper()

	s, err := storage.NewSQLiteStorage(NewStorePath(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// IndexTerms are embedded by NewLocalIndexPath. HP:0100000 exists only in
// the index, so its name resolves through index labels.
var IndexTerms = []storage.TermVector{
	{HPOID: "HP:0001250", Label: "Seizure", Content: "ID: HP:0001250\nLabel: Seizure\nDefinition: A seizure is an intermittent abnormality of nervous system physiology."},
	{HPOID: "HP:0001263", Label: "Global developmental delay", Content: "ID: HP:0001263\nLabel: Global developmental delay"},
	{HPOID: "HP:0100000", Label: "Index only term", Content: "ID: HP:0100000\nLabel: Index only term"},
}

// NewLocalIndexPath embeds IndexTerms with the local provider and writes
// them to a fresh index file
func NewLocalIndexPath(t testing.TB) string {
	t.Helper()
	ctx := context.Background()

	emb, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal})
	require.NoError(t, err)
	defer func() { _ = emb.Close() }()

	terms := make([]storage.TermVector, len(IndexTerms))
	copy(terms, IndexTerms)
	for i := range terms {
		e, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: terms[i].Content, InputType: embedder.InputDocument})
		require.NoError(t, err)
		terms[i].Vector = e.Vector
	}

	path := filepath.Join(t.TempDir(), "hpo_index.db")
	require.NoError(t, storage.WriteIndexFile(ctx, path, map[string]string{
		storage.MetaProvider:  embedder.ProviderLocal,
		storage.MetaModel:     emb.Model(),
		storage.MetaDimension: strconv.Itoa(emb.Dimension()),
	}, terms))
	return path
}
