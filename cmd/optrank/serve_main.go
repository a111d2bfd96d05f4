package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/optrank/optrank/internal/config"
	"github.com/optrank/optrank/internal/httpapi"
	"github.com/optrank/optrank/internal/metrics"
	"github.com/optrank/optrank/internal/pipeline"
)

func newServeCmd() *cobra.Command {
	var opts scanOptions
	var addr string
	var scanOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scan results over HTTP",
		Long: `Serve exposes the latest scan over a JSON API with Prometheus
metrics. POST /api/v1/scan triggers a fresh scan of the configured
tickers.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			opts.apply(&cfg)
			if addr != "" {
				cfg.Server.Addr = addr
			}

			reg := metrics.NewRegistry()
			p, cleanup, err := buildPipeline(cfg, opts, reg)
			if err != nil {
				return err
			}
			defer cleanup()

			runner := func(ctx context.Context) (*pipeline.RunResult, error) {
				return p.Run(ctx, opts.pipelineConfig(cfg))
			}
			server := httpapi.NewServer(cfg.Server.Addr, reg, runner)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if scanOnStart {
				res, err := runner(ctx)
				if err != nil {
					log.Error().Err(err).Msg("initial scan failed")
				} else {
					server.SetResult(res)
				}
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Info().Msg("shutting down")
			return server.Shutdown(shutdownCtx)
		},
	}

	registerScanFlags(cmd, &opts)
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&scanOnStart, "scan-on-start", true, "Run one scan before serving")
	return cmd
}
