// Package matcher maps free-text symptom descriptions to candidate HPO terms.
//
// A query is embedded with the configured provider and compared against the
// in-memory index by cosine similarity. Results keep the index order; no
// threshold is applied. The advisory threshold (0.7 by default) is returned
// as metadata for the caller to act on.
//
// # Basic Usage
//
//	m := matcher.New(matcher.Config{
//	    Index:    idx,
//	    Embedder: emb,
//	})
//
//	res := m.Match(ctx, "developmental delay", 5)
//	if res.Status == matcher.StatusUnavailable {
//	    switch res.Reason {
//	    case matcher.ReasonIndexMissing:
//	        // run build-index
//	    case matcher.ReasonCredentialMissing:
//	        // set VOYAGE_API_KEY
//	    case matcher.ReasonQueryFailed:
//	        // res.Detail carries the diagnostic
//	    }
//	}
//
// # Caching
//
// Successful results are cached per (trimmed text, k) for CacheTTL.
// A negative CacheTTL disables caching.
package matcher
