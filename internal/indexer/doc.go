// Package indexer builds the vector index file from the HPO ontology.
//
// The indexer orchestrates parsing, document composition, embedding and
// writing, running embedding batches concurrently.
//
// # Basic Usage
//
//	idx := indexer.New(emb, log)
//
//	stats, err := idx.BuildIndex(ctx, "data/hp.json", "embeddings/voyage_3/hpo_index.db", &indexer.Config{
//	    BatchSize: 128,
//	})
//
//	fmt.Printf("Embedded %d terms in %v\n", stats.TermsEmbedded, stats.Duration)
//
// # Pipeline
//
//  1. Parse: read hp.json, keep non-deprecated HP classes
//  2. Compose: one document per term (ID, Label, Definition, Synonyms, Comments)
//  3. Reuse: keep vectors of unchanged documents from the previous index file
//  4. Embed: send the remaining documents in batches (input_type=document)
//  5. Write: store meta and vectors in a temp file, then rename into place
//
// # Incremental Builds
//
// A rebuild with the same provider and model only embeds terms whose
// document text changed:
//
//	// First build: every term is embedded
//	stats1, _ := idx.BuildIndex(ctx, src, dst, nil)
//	// Embedded: 19000, reused: 0
//
//	// After a minor ontology release
//	stats2, _ := idx.BuildIndex(ctx, src, dst, nil)
//	// Embedded: 212, reused: 18788
//
// Force a full rebuild with:
//
//	cfg.Force = true
//
// # Concurrency
//
// Batches run on an errgroup limited to Config.Workers. Each batch owns
// the output slots of its terms, so no locking is needed. The first failing
// batch cancels the rest and the build returns its error; a partial index
// is never written. Only one build may run per Indexer at a time
// (ErrBuildInProgress).
package indexer
