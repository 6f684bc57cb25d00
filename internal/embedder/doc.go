// Package embedder generates vector embeddings for phenotype text.
//
// Two providers exist: Voyage AI (voyage-3, 1024 dimensions), which the
// production index is built with, and a local feature-hashing provider for
// offline use and tests. Query vectors must come from the same provider and
// model as the index they are compared against.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  embedder.ProviderVoyage,
//	    APIKey:    os.Getenv("VOYAGE_API_KEY"),
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text:      "seizures",
//	    InputType: embedder.InputQuery,
//	})
//
// # Batch Processing
//
// Index building embeds ontology documents in batches of up to MaxBatchSize:
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts:     docs,
//	    InputType: embedder.InputDocument,
//	})
//
// # Provider Selection
//
//  1. If PHENOTYPE_EMBEDDING_PROVIDER is set, use it
//  2. Else if VOYAGE_API_KEY is set, use Voyage AI
//  3. Else fall back to the local provider
//
// # Caching
//
// Embeddings are cached in an LRU keyed by SHA-256 of model, input type
// and text. Cached vectors are copied on read.
//
// # Error Handling
//
// Transient API failures (network errors, 429, 5xx) are retried with
// exponential backoff; other client errors fail immediately. Both surface
// as ErrProviderFailed:
//
//	emb, err := e.GenerateEmbedding(ctx, req)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // report the query as failed
//	}
//
// A missing VOYAGE_API_KEY is reported as ErrNoProviderEnabled.
package embedder
