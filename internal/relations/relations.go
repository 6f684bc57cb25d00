// Package relations answers the six phenotype/gene/disease lookups over the
// relationship store. Unknown identifiers are data, not errors: every result
// carries found=false, an empty list and the "unknown" name sentinel.
package relations

import (
	"context"

	"github.com/dshills/phenotype-mcp/internal/logging"
	"github.com/dshills/phenotype-mcp/internal/resolver"
	"github.com/dshills/phenotype-mcp/internal/storage"
)

// ErrStoreUnavailable is the error text reported when no store is open
const ErrStoreUnavailable = "database not available"

// GeneRef is a gene in a term or disease result
type GeneRef struct {
	NCBIGeneID string `json:"ncbi_gene_id"`
	GeneSymbol string `json:"gene_symbol"`
}

// DiseaseGene is a gene associated with a disease
type DiseaseGene struct {
	NCBIGeneID      string `json:"ncbi_gene_id"`
	GeneSymbol      string `json:"gene_symbol"`
	AssociationType string `json:"association_type"`
}

// GeneTerm is a phenotype annotated to a gene
type GeneTerm struct {
	HPOID     string `json:"hpo_id"`
	HPOName   string `json:"hpo_name"`
	Frequency string `json:"frequency"`
	DiseaseID string `json:"disease_id"`
}

// GeneDisease is a disease associated with a gene
type GeneDisease struct {
	DiseaseID       string `json:"disease_id"`
	AssociationType string `json:"association_type"`
	Source          string `json:"source"`
}

// TermDisease is a disease annotated with a phenotype
type TermDisease struct {
	DiseaseID   string `json:"disease_id"`
	DiseaseName string `json:"disease_name"`
	Qualifier   string `json:"qualifier"`
	Evidence    string `json:"evidence"`
	Onset       string `json:"onset"`
	Frequency   string `json:"frequency"`
	Sex         string `json:"sex"`
	Modifier    string `json:"modifier"`
	Aspect      string `json:"aspect"`
}

// TermRef is a phenotype annotated to a disease
type TermRef struct {
	HPOID   string `json:"hpo_id"`
	HPOName string `json:"hpo_name"`
}

// GenesByTermResult answers terms->genes
type GenesByTermResult struct {
	HPOID   string    `json:"hpo_id"`
	HPOName string    `json:"hpo_name"`
	Found   bool      `json:"found"`
	Genes   []GeneRef `json:"genes"`
	Error   string    `json:"error,omitempty"`
}

// TermsByGeneResult answers gene->terms
type TermsByGeneResult struct {
	NCBIGeneID string     `json:"ncbi_gene_id"`
	GeneSymbol string     `json:"gene_symbol"`
	Found      bool       `json:"found"`
	HPOTerms   []GeneTerm `json:"hpo_terms"`
	Error      string     `json:"error,omitempty"`
}

// DiseasesByGeneResult answers gene->diseases
type DiseasesByGeneResult struct {
	NCBIGeneID string        `json:"ncbi_gene_id"`
	GeneSymbol string        `json:"gene_symbol"`
	Found      bool          `json:"found"`
	Diseases   []GeneDisease `json:"diseases"`
	Error      string        `json:"error,omitempty"`
}

// GenesByDiseaseResult answers disease->genes
type GenesByDiseaseResult struct {
	DiseaseID string        `json:"disease_id"`
	Found     bool          `json:"found"`
	Genes     []DiseaseGene `json:"genes"`
	Error     string        `json:"error,omitempty"`
}

// DiseasesByTermResult answers term->diseases
type DiseasesByTermResult struct {
	HPOID    string        `json:"hpo_id"`
	HPOName  string        `json:"hpo_name"`
	Found    bool          `json:"found"`
	Diseases []TermDisease `json:"diseases"`
	Error    string        `json:"error,omitempty"`
}

// TermsByDiseaseResult answers disease->terms
type TermsByDiseaseResult struct {
	DiseaseID   string    `json:"disease_id"`
	DiseaseName string    `json:"disease_name"`
	Found       bool      `json:"found"`
	HPOTerms    []TermRef `json:"hpo_terms"`
	Error       string    `json:"error,omitempty"`
}

// Service runs the lookups. A nil store yields results carrying
// ErrStoreUnavailable.
type Service struct {
	store    storage.Storage
	resolver *resolver.Resolver
	log      *logging.Logger
}

// New creates a Service
func New(store storage.Storage, res *resolver.Resolver, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: store, resolver: res, log: log}
}

// GenesByTerm returns the genes associated with an HPO term
func (s *Service) GenesByTerm(ctx context.Context, hpoID string) GenesByTermResult {
	out := GenesByTermResult{HPOID: hpoID, HPOName: storage.UnknownName, Genes: []GeneRef{}}
	if s.store == nil {
		out.Error = ErrStoreUnavailable
		return out
	}

	out.HPOName = s.termName(ctx, hpoID)

	rows, err := s.store.GenesByTerm(ctx, hpoID)
	if err != nil {
		out.Error = s.fail("genes by term", hpoID, err)
		return out
	}
	for _, r := range rows {
		out.Genes = append(out.Genes, GeneRef{NCBIGeneID: r.GeneID, GeneSymbol: orUnknown(r.GeneSymbol)})
	}
	out.Genes = distinct(out.Genes)
	out.Found = len(out.Genes) > 0
	return out
}

// TermsByGene returns the HPO terms annotated to a gene
func (s *Service) TermsByGene(ctx context.Context, geneID string) TermsByGeneResult {
	out := TermsByGeneResult{NCBIGeneID: geneID, GeneSymbol: storage.UnknownName, HPOTerms: []GeneTerm{}}
	if s.store == nil {
		out.Error = ErrStoreUnavailable
		return out
	}

	rows, err := s.store.PhenotypesByGene(ctx, geneID)
	if err != nil {
		out.Error = s.fail("terms by gene", geneID, err)
		return out
	}

	var symbol string
	var unnamed []string
	for _, r := range rows {
		if symbol == "" {
			symbol = r.GeneSymbol
		}
		if r.HPOName == "" {
			unnamed = append(unnamed, r.HPOID)
		}
	}
	names := s.termNames(ctx, unnamed)
	for _, r := range rows {
		name := r.HPOName
		if name == "" {
			name = names[r.HPOID]
		}
		out.HPOTerms = append(out.HPOTerms, GeneTerm{HPOID: r.HPOID, HPOName: name, Frequency: r.Frequency, DiseaseID: r.DiseaseID})
	}

	out.HPOTerms = distinct(out.HPOTerms)
	out.GeneSymbol = s.geneSymbol(ctx, geneID, symbol)
	out.Found = len(out.HPOTerms) > 0
	return out
}

// DiseasesByGene returns the diseases associated with a gene
func (s *Service) DiseasesByGene(ctx context.Context, geneID string) DiseasesByGeneResult {
	out := DiseasesByGeneResult{NCBIGeneID: geneID, GeneSymbol: storage.UnknownName, Diseases: []GeneDisease{}}
	if s.store == nil {
		out.Error = ErrStoreUnavailable
		return out
	}

	rows, err := s.store.DiseasesByGene(ctx, geneID)
	if err != nil {
		out.Error = s.fail("diseases by gene", geneID, err)
		return out
	}

	var symbol string
	for _, r := range rows {
		if symbol == "" {
			symbol = r.GeneSymbol
		}
		out.Diseases = append(out.Diseases, GeneDisease{DiseaseID: r.DiseaseID, AssociationType: r.AssociationType, Source: r.Source})
	}

	out.Diseases = distinct(out.Diseases)
	out.GeneSymbol = s.geneSymbol(ctx, geneID, symbol)
	out.Found = len(out.Diseases) > 0
	return out
}

// GenesByDisease returns the genes associated with a disease
func (s *Service) GenesByDisease(ctx context.Context, diseaseID string) GenesByDiseaseResult {
	out := GenesByDiseaseResult{DiseaseID: diseaseID, Genes: []DiseaseGene{}}
	if s.store == nil {
		out.Error = ErrStoreUnavailable
		return out
	}

	rows, err := s.store.GenesByDisease(ctx, diseaseID)
	if err != nil {
		out.Error = s.fail("genes by disease", diseaseID, err)
		return out
	}
	for _, r := range rows {
		out.Genes = append(out.Genes, DiseaseGene{NCBIGeneID: r.GeneID, GeneSymbol: orUnknown(r.GeneSymbol), AssociationType: r.AssociationType})
	}

	out.Genes = distinct(out.Genes)
	out.Found = len(out.Genes) > 0
	return out
}

// DiseasesByTerm returns the diseases annotated with an HPO term, including
// negated (qualifier NOT) annotations
func (s *Service) DiseasesByTerm(ctx context.Context, hpoID string) DiseasesByTermResult {
	out := DiseasesByTermResult{HPOID: hpoID, HPOName: storage.UnknownName, Diseases: []TermDisease{}}
	if s.store == nil {
		out.Error = ErrStoreUnavailable
		return out
	}

	out.HPOName = s.termName(ctx, hpoID)

	rows, err := s.store.AnnotationsByTerm(ctx, hpoID)
	if err != nil {
		out.Error = s.fail("diseases by term", hpoID, err)
		return out
	}
	for _, a := range rows {
		out.Diseases = append(out.Diseases, TermDisease{
			DiseaseID:   a.DiseaseID,
			DiseaseName: orUnknown(a.DiseaseName),
			Qualifier:   a.Qualifier,
			Evidence:    a.Evidence,
			Onset:       a.Onset,
			Frequency:   a.Frequency,
			Sex:         a.Sex,
			Modifier:    a.Modifier,
			Aspect:      a.Aspect,
		})
	}

	out.Diseases = distinct(out.Diseases)
	out.Found = len(out.Diseases) > 0
	return out
}

// TermsByDisease returns the HPO terms annotated to a disease
func (s *Service) TermsByDisease(ctx context.Context, diseaseID string) TermsByDiseaseResult {
	out := TermsByDiseaseResult{DiseaseID: diseaseID, DiseaseName: storage.UnknownName, HPOTerms: []TermRef{}}
	if s.store == nil {
		out.Error = ErrStoreUnavailable
		return out
	}

	rows, err := s.store.AnnotationsByDisease(ctx, diseaseID)
	if err != nil {
		out.Error = s.fail("terms by disease", diseaseID, err)
		return out
	}

	ids := make([]string, 0, len(rows))
	for _, a := range rows {
		if out.DiseaseName == storage.UnknownName && a.DiseaseName != "" {
			out.DiseaseName = a.DiseaseName
		}
		ids = append(ids, a.HPOID)
	}
	names := s.termNames(ctx, ids)
	for _, id := range ids {
		out.HPOTerms = append(out.HPOTerms, TermRef{HPOID: id, HPOName: names[id]})
	}

	out.HPOTerms = distinct(out.HPOTerms)
	out.Found = len(out.HPOTerms) > 0
	return out
}

// termName resolves a single id; resolution failures degrade to the sentinel
func (s *Service) termName(ctx context.Context, id string) string {
	if s.resolver == nil {
		return storage.UnknownName
	}
	res, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		s.log.Warn("term name lookup failed", "hpo_id", id, "error", err)
	}
	return res.HPOName
}

// termNames resolves ids in bulk. Every id is present in the result.
func (s *Service) termNames(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		names[id] = storage.UnknownName
	}
	if s.resolver == nil || len(ids) == 0 {
		return names
	}
	resolved, err := s.resolver.ResolveMany(ctx, ids)
	if err != nil {
		s.log.Warn("term name lookup failed", "count", len(ids), "error", err)
	}
	for id, res := range resolved {
		names[id] = res.HPOName
	}
	return names
}

// geneSymbol prefers the symbol from the queried table, then any gene table
func (s *Service) geneSymbol(ctx context.Context, geneID, fromRows string) string {
	if fromRows != "" {
		return fromRows
	}
	symbol, ok, err := s.store.GeneSymbol(ctx, geneID)
	if err != nil {
		s.log.Warn("gene symbol lookup failed", "ncbi_gene_id", geneID, "error", err)
		return storage.UnknownName
	}
	if !ok {
		return storage.UnknownName
	}
	return symbol
}

func (s *Service) fail(op, key string, err error) string {
	s.log.Error("relationship query failed", "operation", op, "key", key, "error", err)
	return err.Error()
}

func orUnknown(v string) string {
	if v == "" {
		return storage.UnknownName
	}
	return v
}

// distinct drops repeated entries, keeping first-seen order
func distinct[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
