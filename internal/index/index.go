// Package index holds the precomputed term embeddings in memory and answers
// nearest-neighbour queries by exhaustive cosine similarity.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dshills/phenotype-mcp/internal/storage"
)

var (
	// ErrIndexMissing is returned when the index file has not been built
	ErrIndexMissing = errors.New("index missing")
	// ErrDimensionMismatch is returned when a query vector has the wrong length
	ErrDimensionMismatch = errors.New("query dimension does not match index")
	// ErrNonFiniteVector is returned for vectors containing NaN or Inf
	ErrNonFiniteVector = errors.New("vector contains non-finite values")
)

// Term is an indexed ontology term
type Term struct {
	ID      string
	Label   string
	Content string // document text the vector was built from
}

// Hit is a single query result
type Hit struct {
	Term  Term
	Score float64 // cosine similarity, higher is closer
}

// Meta describes how an index was built
type Meta struct {
	Provider  string
	Model     string
	Dimension int
	BuiltAt   time.Time
	Source    string
}

// Index is immutable after construction and safe for concurrent use
type Index struct {
	meta    Meta
	ids     []string
	vectors [][]float32
	terms   map[string]Term
}

// Build creates an index from parallel term and vector slices. Every vector
// must have the same dimension and only finite components.
func Build(terms []Term, vectors [][]float32, meta Meta) (*Index, error) {
	if len(terms) != len(vectors) {
		return nil, fmt.Errorf("got %d terms and %d vectors", len(terms), len(vectors))
	}

	idx := &Index{
		meta:    meta,
		ids:     make([]string, 0, len(terms)),
		vectors: make([][]float32, 0, len(terms)),
		terms:   make(map[string]Term, len(terms)),
	}

	for i, t := range terms {
		if _, dup := idx.terms[t.ID]; dup {
			return nil, fmt.Errorf("duplicate term %s", t.ID)
		}
		if idx.meta.Dimension == 0 {
			idx.meta.Dimension = len(vectors[i])
		}
		if len(vectors[i]) != idx.meta.Dimension {
			return nil, fmt.Errorf("term %s has dimension %d, want %d", t.ID, len(vectors[i]), idx.meta.Dimension)
		}
		if err := CheckFinite(vectors[i]); err != nil {
			return nil, fmt.Errorf("term %s: %w", t.ID, err)
		}
		idx.ids = append(idx.ids, t.ID)
		idx.vectors = append(idx.vectors, vectors[i])
		idx.terms[t.ID] = t
	}

	return idx, nil
}

// Load reads an index file written by the build-index command
func Load(ctx context.Context, path string) (*Index, error) {
	file, err := storage.ReadIndexFile(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrIndexFileMissing) {
			return nil, fmt.Errorf("%w: %s", ErrIndexMissing, path)
		}
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	meta := Meta{
		Provider: file.Meta[storage.MetaProvider],
		Model:    file.Meta[storage.MetaModel],
		Source:   file.Meta[storage.MetaSource],
	}
	if d, err := strconv.Atoi(file.Meta[storage.MetaDimension]); err == nil {
		meta.Dimension = d
	}
	if ts, err := time.Parse(time.RFC3339, file.Meta[storage.MetaBuiltAt]); err == nil {
		meta.BuiltAt = ts
	}

	terms := make([]Term, len(file.Vectors))
	vectors := make([][]float32, len(file.Vectors))
	for i, tv := range file.Vectors {
		terms[i] = Term{ID: tv.HPOID, Label: tv.Label, Content: tv.Content}
		vectors[i] = tv.Vector
	}

	return Build(terms, vectors, meta)
}

// Query returns the k terms closest to vector, best first. k <= 0 returns
// every term.
func (idx *Index) Query(vector []float32, k int) ([]Hit, error) {
	if len(idx.ids) == 0 {
		return []Hit{}, nil
	}
	if len(vector) != idx.meta.Dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), idx.meta.Dimension)
	}
	if err := CheckFinite(vector); err != nil {
		return nil, err
	}

	ranked := storage.RankBySimilarity(vector, idx.ids, idx.vectors, k)
	hits := make([]Hit, len(ranked))
	for i, r := range ranked {
		hits[i] = Hit{Term: idx.terms[r.ID], Score: r.Score}
	}
	return hits, nil
}

// CheckFinite reports the first NaN or Inf component of v
func CheckFinite(v []float32) error {
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrNonFiniteVector, i, x)
		}
	}
	return nil
}

// Term looks up an indexed term by id
func (idx *Index) Term(id string) (Term, bool) {
	t, ok := idx.terms[id]
	return t, ok
}

// Label returns the display label of an indexed term
func (idx *Index) Label(id string) (string, bool) {
	t, ok := idx.terms[id]
	if !ok || t.Label == "" {
		return "", false
	}
	return t.Label, true
}

// Len returns the number of indexed terms
func (idx *Index) Len() int {
	return len(idx.ids)
}

// Meta returns build metadata
func (idx *Index) Meta() Meta {
	return idx.meta
}
