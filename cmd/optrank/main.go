package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/optrank/optrank/internal/pricing"
)

const (
	appName = "optrank"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	// The pricing engine self-verifies against known values before any
	// scan is allowed to produce numbers.
	if err := pricing.SelfCheck(); err != nil {
		log.Fatal().Err(err).Msg("pricing self-check failed")
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Options opportunity scanner",
		Version: version,
		Long: `optrank scans option chains, prices each contract with Black-Scholes,
folds in news and social sentiment, and ranks contracts by a composite
opportunity score.`,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		raw, _ := cmd.Flags().GetString("log-level")
		level, err := zerolog.ParseLevel(raw)
		if err != nil {
			log.Warn().Str("level", raw).Msg("unknown log level, using info")
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
	}

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSocialCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
