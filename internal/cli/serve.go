package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/railops/config"
	"github.com/jonwraymond/railops/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the bus consumers and the cache evictor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions) error {
	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return err
	}
	if cfg.Service.Version == "dev" && opts.version != "" {
		cfg.Service.Version = opts.version
		cfg.Observe.Version = opts.version
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := a.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Service.ShutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return runErr
}
