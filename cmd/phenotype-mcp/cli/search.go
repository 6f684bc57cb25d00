package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/phenotype-mcp/internal/app"
	"github.com/dshills/phenotype-mcp/internal/matcher"
)

func newSearchCmd(v *viper.Viper) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search <symptom>",
		Short: "Search HPO terms for an English symptom",
		Long: `Embed the symptom text and print the closest HPO terms from the vector
index, exactly as search_hpo_for_symptom would return them.`,
		Example: `  phenotype-mcp search "recurrent seizures" --k 10`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(v)
			if err != nil {
				return err
			}
			defer log.Sync()

			a := app.New(cmd.Context(), cfg, log)
			defer func() { _ = a.Close() }()

			res := a.Matcher.Match(cmd.Context(), strings.Join(args, " "), k)
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().IntVar(&k, "k", matcher.DefaultK, "Number of candidates to return (1-100)")
	return cmd
}
