package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/phenotype-mcp/internal/config"
	"github.com/dshills/phenotype-mcp/internal/embedder"
	"github.com/dshills/phenotype-mcp/internal/indexer"
)

func newBuildIndexCmd(v *viper.Viper) *cobra.Command {
	var opts indexer.Config

	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Embed the HPO ontology into a vector index file",
		Long: `Parse hp.json, compose one document per HPO term and embed the documents
in batches. Terms whose text, provider and model are unchanged since the last
build are copied from the existing index instead of being embedded again.

The provider defaults to voyage when VOYAGE_API_KEY is set and local
otherwise.`,
		Example: `  phenotype-mcp build-index --ontology data/hp.json --index embeddings/voyage_3/hpo_index.db`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(v)
			if err != nil {
				return err
			}
			defer log.Sync()

			provider := cfg.Embedding.Provider
			if provider == "" {
				provider = embedder.DetectProvider()
			}
			emb, err := embedder.New(embedder.Config{
				Provider:  provider,
				APIKey:    cfg.Embedding.APIKey,
				Model:     cfg.Embedding.Model,
				BaseURL:   cfg.Embedding.BaseURL,
				CacheSize: cfg.Embedding.CacheSize,
			})
			if err != nil {
				return fmt.Errorf("failed to create %s embedder: %w", provider, err)
			}
			defer func() { _ = emb.Close() }()

			stats, err := indexer.New(emb, log).BuildIndex(cmd.Context(), cfg.OntologyPath, cfg.IndexPath, &opts)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"index":          stats.OutputPath,
				"provider":       emb.Provider(),
				"model":          emb.Model(),
				"dimension":      stats.Dimension,
				"terms_parsed":   stats.TermsParsed,
				"terms_skipped":  stats.TermsSkipped,
				"terms_embedded": stats.TermsEmbedded,
				"terms_reused":   stats.TermsReused,
				"batches":        stats.Batches,
				"duration_ms":    stats.Duration.Milliseconds(),
			})
		},
	}

	cmd.Flags().String("ontology", "", "Path to hp.json (default data/hp.json)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent embedding batches (default: number of CPUs)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, fmt.Sprintf("Documents per embedding request (max %d)", embedder.MaxBatchSize))
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Re-embed every term, ignoring the existing index")
	cmd.Flags().BoolVar(&opts.Ontology.IncludeDeprecated, "include-deprecated", false, "Embed deprecated terms too")
	cmd.Flags().BoolVar(&opts.Ontology.AllPrefixes, "all-prefixes", false, "Embed nodes from imported ontologies, not only HP terms")

	mustBind(v, config.KeyOntologyPath, cmd.Flags().Lookup("ontology"))
	return cmd
}
