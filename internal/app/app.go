// Package app wires the process-wide handles every request handler reads:
// the relationship store, the vector index, the embedding provider and the
// components built on them. Handles are opened once and only read after.
package app

import (
	"context"
	"errors"

	"github.com/dshills/phenotype-mcp/internal/config"
	"github.com/dshills/phenotype-mcp/internal/embedder"
	"github.com/dshills/phenotype-mcp/internal/health"
	"github.com/dshills/phenotype-mcp/internal/index"
	"github.com/dshills/phenotype-mcp/internal/logging"
	"github.com/dshills/phenotype-mcp/internal/matcher"
	"github.com/dshills/phenotype-mcp/internal/metrics"
	"github.com/dshills/phenotype-mcp/internal/relations"
	"github.com/dshills/phenotype-mcp/internal/resolver"
	"github.com/dshills/phenotype-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "phenotype-mcp"
)

// Version is overridden at build time with -ldflags "-X .../internal/app.Version=..."
var Version = "dev"

// App holds the handles. A component that failed to open is nil and its
// error is kept alongside for status reporting.
type App struct {
	Config  *config.Config
	Log     *logging.Logger
	Metrics *metrics.Metrics

	Store    storage.Storage
	StoreErr error

	Index    *index.Index
	IndexErr error

	Embedder    embedder.Embedder
	EmbedderErr error

	Resolver  *resolver.Resolver
	Relations *relations.Service
	Matcher   *matcher.Matcher
	Health    *health.Reporter
}

// New opens every handle. Missing components are logged and reported
// through the health snapshot; New itself never fails on them.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) *App {
	if log == nil {
		log = logging.Nop()
	}
	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}

	if store, err := storage.NewSQLiteStorage(cfg.StorePath); err != nil {
		a.StoreErr = err
		log.Warn("relationship store unavailable", "path", cfg.StorePath, "error", err)
	} else {
		a.Store = store
	}

	if idx, err := index.Load(ctx, cfg.IndexPath); err != nil {
		a.IndexErr = err
		if errors.Is(err, index.ErrIndexMissing) {
			log.Warn("vector index not built; symptom search disabled", "path", cfg.IndexPath)
		} else {
			log.Error("failed to load vector index", "path", cfg.IndexPath, "error", err)
		}
	} else {
		a.Index = idx
		log.Info("vector index loaded", "path", cfg.IndexPath, "terms", idx.Len(), "model", idx.Meta().Model)
	}

	provider, model := a.queryProvider()
	if emb, err := embedder.New(embedder.Config{
		Provider:  provider,
		APIKey:    cfg.Embedding.APIKey,
		Model:     model,
		BaseURL:   cfg.Embedding.BaseURL,
		CacheSize: cfg.Embedding.CacheSize,
	}); err != nil {
		a.EmbedderErr = err
		log.Warn("embedding provider unavailable", "provider", provider, "error", err)
	} else {
		a.Embedder = emb
	}

	a.wire(provider, model)
	return a
}

// queryProvider picks the provider and model used to embed queries: the
// configured ones, else whatever the index was built with, else Voyage.
func (a *App) queryProvider() (string, string) {
	provider, model := a.Config.Embedding.Provider, a.Config.Embedding.Model
	if provider == "" && a.Index != nil {
		provider = a.Index.Meta().Provider
	}
	if provider == "" {
		provider = embedder.ProviderVoyage
	}
	if model == "" && a.Index != nil && a.Index.Meta().Provider == provider {
		model = a.Index.Meta().Model
	}
	return provider, model
}

func (a *App) wire(provider, model string) {
	// Interfaces stay nil rather than holding typed nil pointers
	var names resolver.NameStore
	if a.Store != nil {
		names = a.Store
	}
	var labels resolver.LabelSource
	if a.Index != nil {
		labels = a.Index
	}

	a.Resolver = resolver.New(names, labels, resolver.DefaultCacheSize)
	a.Relations = relations.New(a.Store, a.Resolver, a.Log.With("component", "relations"))
	a.Matcher = matcher.New(matcher.Config{
		Index:             a.Index,
		IndexErr:          a.IndexErr,
		Embedder:          a.Embedder,
		EmbedderErr:       a.EmbedderErr,
		Timeout:           a.Config.Embedding.Timeout,
		CacheTTL:          a.Config.Search.CacheTTL,
		CacheSize:         a.Config.Search.CacheSize,
		AdvisoryThreshold: a.Config.Search.AdvisoryThreshold,
		Logger:            a.Log.With("component", "matcher"),
	})
	if model == "" && a.Embedder != nil {
		model = a.Embedder.Model()
	}
	a.Health = health.New(health.Config{
		StorePath:     a.Config.StorePath,
		Store:         a.Store,
		StoreErr:      a.StoreErr,
		IndexPath:     a.Config.IndexPath,
		Index:         a.Index,
		IndexErr:      a.IndexErr,
		Provider:      provider,
		Model:         model,
		APIKeyPresent: a.Config.APIKeyPresent(),
		ProviderErr:   a.EmbedderErr,
		ServerName:    ServerName,
		Version:       Version,
		Transport:     a.Config.Server.Transport,
	})
}

// Close releases the store and the embedder
func (a *App) Close() error {
	var errs []error
	if a.Embedder != nil {
		errs = append(errs, a.Embedder.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
