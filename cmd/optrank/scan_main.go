package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/optrank/optrank/internal/artifacts"
	"github.com/optrank/optrank/internal/config"
	"github.com/optrank/optrank/internal/domain"
	"github.com/optrank/optrank/internal/metrics"
	"github.com/optrank/optrank/internal/pipeline"
)

func newScanCmd() *cobra.Command {
	var opts scanOptions
	var output string
	var top int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan option chains and rank opportunities",
		Long: `Scan fetches quotes, option chains, and headlines for each ticker,
prices every contract, scores it against the ticker's sentiment, and
writes ranked CSV/JSON artifacts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			opts.apply(&cfg)

			p, cleanup, err := buildPipeline(cfg, opts, metrics.NewRegistry())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := p.Run(cmd.Context(), opts.pipelineConfig(cfg))
			if err != nil {
				return err
			}

			writer, err := artifacts.NewWriter(output)
			if err != nil {
				return err
			}
			paths, err := writer.WriteRun(res, top)
			if err != nil {
				return err
			}
			for _, path := range paths {
				log.Info().Str("path", path).Msg("wrote artifact")
			}

			printRun(cmd.OutOrStdout(), res, top)
			return nil
		},
	}

	registerScanFlags(cmd, &opts)
	cmd.Flags().StringVarP(&output, "output", "o", "out", "Artifact output directory")
	cmd.Flags().IntVarP(&top, "top", "n", 20, "Rows in the printed and simplified shortlist")
	return cmd
}

func printRun(w io.Writer, res *pipeline.RunResult, top int) {
	for _, st := range res.Ordered() {
		if st.State != domain.TickerOK {
			fmt.Fprintf(w, "%-6s %s: %s\n", st.Ticker, st.State, st.Reason)
		}
	}

	ranked := res.Ranked
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tKIND\tSTRIKE\tEXPIRY\tMARKET\tFAIR\tSCORE\tBUCKET\tSIDE")
	for _, r := range ranked {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%.2f\t%.2f\t%+.4f\t%s\t%s\n",
			r.Ticker, r.Kind, r.Strike, r.Expiration.UTC().Format("2006-01-02"),
			r.MarketPrice, r.FairValue, r.Score, r.Bucket, r.Side)
	}
	tw.Flush()
}
