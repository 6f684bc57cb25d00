package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/phenotype-mcp/internal/app"
)

func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the server health report",
		Long:  "Open the configured database and vector index and print the same report get_server_status returns.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(v)
			if err != nil {
				return err
			}
			defer log.Sync()

			a := app.New(cmd.Context(), cfg, log)
			defer func() { _ = a.Close() }()

			return printJSON(cmd.OutOrStdout(), a.Health.Report(cmd.Context()))
		},
	}
}
