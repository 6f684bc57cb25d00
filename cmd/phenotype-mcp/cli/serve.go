package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/phenotype-mcp/internal/app"
	"github.com/dshills/phenotype-mcp/internal/config"
	"github.com/dshills/phenotype-mcp/internal/httpapi"
	"github.com/dshills/phenotype-mcp/internal/mcp"
	"github.com/dshills/phenotype-mcp/internal/storage"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server on stdio (default) or streamable HTTP.

With --transport http the REST routes, /metrics and /mcp are served on the
same listener. Missing data files do not stop the server: the affected tools
report the component as unavailable and get_server_status explains why.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	cmd.Flags().String("transport", "", "Transport: stdio or http (default stdio)")
	cmd.Flags().String("host", "", "HTTP listen host (default 0.0.0.0)")
	cmd.Flags().Int("port", 0, "HTTP listen port (default 8000, or $PORT)")

	mustBind(v, config.KeyServerTransport, cmd.Flags().Lookup("transport"))
	mustBind(v, config.KeyServerHost, cmd.Flags().Lookup("host"))
	mustBind(v, config.KeyServerPort, cmd.Flags().Lookup("port"))

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, log, err := setup(v)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("phenotype MCP server starting",
		"version", app.Version,
		"transport", cfg.Server.Transport,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
	)

	a := app.New(ctx, cfg, log)
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("failed to release resources", "error", err)
		}
	}()
	srv := mcp.NewServer(a)

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		handler := httpapi.NewRouter(a, srv.HTTPHandler())
		err = httpapi.NewServer(cfg.Server.Addr(), handler, log).Run(ctx)
	default:
		log.Info("MCP server ready, listening on stdio")
		err = srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("server stopped")
	return nil
}
