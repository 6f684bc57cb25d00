package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/phenotype-mcp/internal/config"
	"github.com/dshills/phenotype-mcp/internal/loader"
	"github.com/dshills/phenotype-mcp/internal/storage"
)

func newLoadCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load HPO release files into the annotation database",
		Long: `Read phenotype.hpoa, genes_to_disease.txt, genes_to_phenotype.txt and
phenotype_to_genes.txt from the release directory and replace the contents
of the annotation database with them.

Run this while no server has the database open.`,
		Example: `  phenotype-mcp load --dir ./data --store hpo_annotations.db`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(v)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			w, err := storage.NewWriter(ctx, cfg.StorePath)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", cfg.StorePath, err)
			}

			stats, err := loader.New(log).Load(ctx, w, loader.FilesIn(cfg.ReleaseDir))
			if cerr := w.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close %s: %w", cfg.StorePath, cerr)
			}
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"store":               cfg.StorePath,
				"rows":                stats.Rows,
				"normalized_gene_ids": stats.NormalizedGeneIDs,
				"duration_ms":         stats.Duration.Milliseconds(),
			})
		},
	}

	cmd.Flags().String("dir", "", "Directory holding the HPO release files (default data)")
	mustBind(v, config.KeyReleaseDir, cmd.Flags().Lookup("dir"))
	return cmd
}
