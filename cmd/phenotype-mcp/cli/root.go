// Package cli implements the phenotype-mcp command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dshills/phenotype-mcp/internal/config"
	"github.com/dshills/phenotype-mcp/internal/logging"
)

const defaultEnvFile = ".env"

// NewRootCmd creates the root command with every subcommand attached. Each
// call gets its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:               "phenotype-mcp",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "MCP server for Human Phenotype Ontology lookups and symptom search",
		Long: `phenotype-mcp serves gene, disease and HPO term relationships from a
local annotation database, plus semantic symptom search over a prebuilt
vector index, to MCP clients over stdio or streamable HTTP.

Settings come from flags, PHENOTYPE_* environment variables and an optional
.env file, in that order of precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadDotEnv(envFile)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("env-file", defaultEnvFile, "Dotenv file to read before the environment")
	flags.String("store", "", "Path to the HPO annotation database (default hpo_annotations.db)")
	flags.String("index", "", "Path to the vector index file (default embeddings/voyage_3/hpo_index.db)")
	flags.String("provider", "", "Embedding provider: voyage or local (default: the provider the index was built with)")
	flags.String("model", "", "Embedding model override")
	flags.String("log-level", "", "Log level: debug, info, warn, error (default info)")
	flags.String("log-mode", "", "Log encoder: development or production (default production)")

	mustBind(v, config.KeyStorePath, flags.Lookup("store"))
	mustBind(v, config.KeyIndexPath, flags.Lookup("index"))
	mustBind(v, config.KeyEmbeddingProvider, flags.Lookup("provider"))
	mustBind(v, config.KeyEmbeddingModel, flags.Lookup("model"))
	mustBind(v, config.KeyLogLevel, flags.Lookup("log-level"))
	mustBind(v, config.KeyLogMode, flags.Lookup("log-mode"))

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newStatusCmd(v))
	rootCmd.AddCommand(newSearchCmd(v))
	rootCmd.AddCommand(newLoadCmd(v))
	rootCmd.AddCommand(newBuildIndexCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// mustBind binds a flag to a setting key. Binding only fails for a nil
// flag, which is a programming error.
func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", key, err))
	}
}

// setup loads the configuration and builds the logger
func setup(v *viper.Viper) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
