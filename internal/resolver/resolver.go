// Package resolver maps HPO term ids to display names.
package resolver

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/phenotype-mcp/internal/storage"
)

// DefaultCacheSize bounds the number of cached resolutions
const DefaultCacheSize = 20000

// NameStore is the part of the relationship store the resolver reads
type NameStore interface {
	TermNames(ctx context.Context, hpoIDs []string) (map[string]string, error)
}

// LabelSource supplies fallback labels, typically from the vector index
type LabelSource interface {
	Label(id string) (string, bool)
}

// Resolution is the result of resolving one term id
type Resolution struct {
	HPOID   string `json:"hpo_id"`
	HPOName string `json:"hpo_name"`
	Found   bool   `json:"found"`
}

// Resolver looks names up in the store, then in the label source. The
// store and index are immutable for the process lifetime, so misses are
// cached too.
type Resolver struct {
	store  NameStore
	labels LabelSource
	cache  *lru.Cache[string, Resolution]
}

// New creates a Resolver. store and labels may each be nil.
func New(store NameStore, labels LabelSource, cacheSize int) *Resolver {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, Resolution](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Resolver{store: store, labels: labels, cache: cache}
}

// Resolve returns the display name of id, or storage.UnknownName
func (r *Resolver) Resolve(ctx context.Context, id string) (Resolution, error) {
	res, err := r.ResolveMany(ctx, []string{id})
	if err != nil {
		return Resolution{HPOID: id, HPOName: storage.UnknownName}, err
	}
	return res[id], nil
}

// ResolveMany resolves every id with at most one store round trip per table.
// On a store error the returned map still holds an entry for every id, with
// unresolved ids set to the unknown sentinel.
func (r *Resolver) ResolveMany(ctx context.Context, ids []string) (map[string]Resolution, error) {
	out := make(map[string]Resolution, len(ids))
	var pending []string
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		if res, ok := r.cache.Get(id); ok {
			out[id] = res
			continue
		}
		out[id] = Resolution{HPOID: id, HPOName: storage.UnknownName}
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		return out, nil
	}

	var names map[string]string
	if r.store != nil {
		var err error
		names, err = r.store.TermNames(ctx, pending)
		if err != nil {
			// Leave the sentinel in place without caching it
			return out, fmt.Errorf("failed to resolve term names: %w", err)
		}
	}

	for _, id := range pending {
		res := Resolution{HPOID: id, HPOName: storage.UnknownName}
		if name, ok := names[id]; ok {
			res.HPOName, res.Found = name, true
		} else if r.labels != nil {
			if label, ok := r.labels.Label(id); ok {
				res.HPOName, res.Found = label, true
			}
		}
		out[id] = res
		r.cache.Add(id, res)
	}
	return out, nil
}

// Name is Resolve reduced to the display name
func (r *Resolver) Name(ctx context.Context, id string) string {
	res, _ := r.Resolve(ctx, id)
	return res.HPOName
}
