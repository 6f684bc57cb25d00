package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/phenotype-mcp/internal/embedder"
	"github.com/dshills/phenotype-mcp/internal/logging"
	"github.com/dshills/phenotype-mcp/internal/ontology"
	"github.com/dshills/phenotype-mcp/internal/storage"
)

// ErrBuildInProgress is returned when a build is already running on this Indexer
var ErrBuildInProgress = errors.New("index build already in progress")

// Indexer coordinates the index pipeline: parse -> compose -> embed -> write
type Indexer struct {
	embedder embedder.Embedder
	log      *logging.Logger
	lock     IndexLock

	// Worker pool configuration
	workers int
}

// Config contains configuration for a build
type Config struct {
	Workers   int  // Number of concurrent embedding batches (default: runtime.NumCPU())
	BatchSize int  // Documents per embedding request (default: embedder.MaxBatchSize)
	Force     bool // Re-embed every term, ignoring an existing index file
	Ontology  ontology.Options
}

// Progress tracks build progress. Fields are updated atomically.
type Progress struct {
	TotalTerms    atomic.Int32
	EmbeddedTerms atomic.Int32
	ReusedTerms   atomic.Int32
}

// Statistics contains statistics about a finished build
type Statistics struct {
	TermsParsed   int
	TermsSkipped  int
	TermsEmbedded int
	TermsReused   int
	Batches       int
	Dimension     int
	OutputPath    string
	Duration      time.Duration
}

// New creates an Indexer that embeds documents with emb
func New(emb embedder.Embedder, log *logging.Logger) *Indexer {
	if log == nil {
		log = logging.Nop()
	}
	return &Indexer{
		embedder: emb,
		log:      log,
		workers:  runtime.NumCPU(),
	}
}

// BuildIndex parses the ontology at ontologyPath, embeds every term document
// and writes the index file to outputPath. Terms whose document text and
// embedding model are unchanged since the previous build keep their vectors
// unless Force is set.
func (idx *Indexer) BuildIndex(ctx context.Context, ontologyPath, outputPath string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrBuildInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 || config.BatchSize > embedder.MaxBatchSize {
		config.BatchSize = embedder.MaxBatchSize
	}
	idx.workers = config.Workers

	startTime := time.Now()

	parsed, err := ontology.ParseFile(ontologyPath, config.Ontology)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ontology: %w", err)
	}
	docs := ontology.Documents(parsed.Terms)

	stats := &Statistics{
		TermsParsed:  len(docs),
		TermsSkipped: parsed.Skipped,
		OutputPath:   outputPath,
	}
	idx.log.Info("ontology parsed", "path", ontologyPath, "terms", len(docs), "skipped", parsed.Skipped)

	var previous map[string]storage.TermVector
	if !config.Force {
		previous = idx.loadPrevious(ctx, outputPath)
	}

	vectors := make([]storage.TermVector, len(docs))
	var pending []int
	for i, d := range docs {
		vectors[i] = storage.TermVector{HPOID: d.ID, Label: d.Label, Content: d.Content}
		if prev, ok := previous[d.ID]; ok && prev.Content == d.Content {
			vectors[i].Vector = prev.Vector
			stats.TermsReused++
			continue
		}
		pending = append(pending, i)
	}

	var progress Progress
	progress.TotalTerms.Store(int32(len(docs)))
	progress.ReusedTerms.Store(int32(stats.TermsReused))

	batches, err := idx.embedPending(ctx, docs, pending, vectors, config.BatchSize, &progress)
	if err != nil {
		return nil, err
	}
	stats.Batches = batches
	stats.TermsEmbedded = int(progress.EmbeddedTerms.Load())

	if len(vectors) > 0 {
		stats.Dimension = len(vectors[0].Vector)
	}
	meta := map[string]string{
		storage.MetaProvider:  idx.embedder.Provider(),
		storage.MetaModel:     idx.embedder.Model(),
		storage.MetaDimension: strconv.Itoa(stats.Dimension),
		storage.MetaBuiltAt:   time.Now().UTC().Format(time.RFC3339),
		storage.MetaSource:    ontologyPath,
		storage.MetaTerms:     strconv.Itoa(len(vectors)),
	}
	if err := storage.WriteIndexFile(ctx, outputPath, meta, vectors); err != nil {
		return nil, fmt.Errorf("failed to write index: %w", err)
	}

	stats.Duration = time.Since(startTime)
	idx.log.Info("index written",
		"path", outputPath,
		"embedded", stats.TermsEmbedded,
		"reused", stats.TermsReused,
		"duration", stats.Duration,
	)
	return stats, nil
}

// embedPending embeds the documents at the pending positions in batches,
// writing each vector into its slot. Any failed batch aborts the build.
func (idx *Indexer) embedPending(ctx context.Context, docs []ontology.Document, pending []int,
	vectors []storage.TermVector, batchSize int, progress *Progress) (int, error) {

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	batches := 0
	for start := 0; start < len(pending); start += batchSize {
		end := min(start+batchSize, len(pending))
		batch := pending[start:end]
		batches++

		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, pos := range batch {
				texts[j] = docs[pos].Content
			}

			resp, err := idx.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{
				Texts:     texts,
				InputType: embedder.InputDocument,
			})
			if err != nil {
				return fmt.Errorf("failed to embed terms %s..%s: %w", docs[batch[0]].ID, docs[batch[len(batch)-1]].ID, err)
			}
			if len(resp.Embeddings) != len(batch) {
				return fmt.Errorf("provider returned %d embeddings for %d terms", len(resp.Embeddings), len(batch))
			}

			// Each goroutine owns the slots of its batch
			for j, pos := range batch {
				vectors[pos].Vector = resp.Embeddings[j].Vector
			}
			done := progress.EmbeddedTerms.Add(int32(len(batch)))
			idx.log.Debug("batch embedded", "terms", len(batch), "done", done, "pending", len(pending))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return batches, err
	}
	return batches, nil
}

// loadPrevious returns the vectors of an existing index file when it was
// built with the same provider and model. Any read problem yields nil.
func (idx *Indexer) loadPrevious(ctx context.Context, path string) map[string]storage.TermVector {
	file, err := storage.ReadIndexFile(ctx, path)
	if err != nil {
		if !errors.Is(err, storage.ErrIndexFileMissing) {
			idx.log.Warn("ignoring unreadable index file", "path", path, "error", err)
		}
		return nil
	}
	if file.Meta[storage.MetaProvider] != idx.embedder.Provider() || file.Meta[storage.MetaModel] != idx.embedder.Model() {
		idx.log.Info("embedding model changed, re-embedding all terms",
			"previous_model", file.Meta[storage.MetaModel],
			"model", idx.embedder.Model(),
		)
		return nil
	}

	prev := make(map[string]storage.TermVector, len(file.Vectors))
	for _, tv := range file.Vectors {
		if len(tv.Vector) == idx.embedder.Dimension() {
			prev[tv.HPOID] = tv
		}
	}
	return prev
}
