package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/optrank/optrank/internal/config"
	"github.com/optrank/optrank/internal/social"
)

func newSocialCmd() *cobra.Command {
	var dbPath string
	var feeds []string
	var windowHours int
	var ticker string

	cmd := &cobra.Command{
		Use:   "social",
		Short: "Collect RSS sentiment into the rolling store",
		Long: `Social pulls the configured RSS feeds, scores each entry with the
sentiment lexicon, extracts cashtags, and appends the results to the
SQLite rolling store used by scan's social blend.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Social.DBPath
			}
			if len(feeds) == 0 {
				feeds = cfg.Social.Feeds
			}
			if windowHours <= 0 {
				windowHours = cfg.Social.WindowHours
			}

			store, err := social.OpenStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			collector := social.NewCollector(feeds)
			items := collector.Collect(cmd.Context())
			if err := store.Insert(items); err != nil {
				return err
			}
			log.Info().Int("items", len(items)).Str("db", dbPath).Msg("social items stored")

			window := time.Duration(windowHours) * time.Hour
			now := time.Now().UTC()
			out := cmd.OutOrStdout()

			if ticker != "" {
				mean, ok, err := store.TickerSentiment(ticker, window, now)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "%s: no items in the last %dh\n", ticker, windowHours)
					return nil
				}
				fmt.Fprintf(out, "%s rolling sentiment (%dh): %+.4f\n", ticker, windowHours, mean)
				return nil
			}

			mean, ok, err := store.RollingSentiment(window, now)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(out, "no items in the last %dh\n", windowHours)
				return nil
			}
			fmt.Fprintf(out, "rolling sentiment (%dh): %+.4f\n", windowHours, mean)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite store path (defaults to config)")
	cmd.Flags().StringSliceVar(&feeds, "feeds", nil, "Feed URLs (defaults to config, then built-ins)")
	cmd.Flags().IntVar(&windowHours, "window-hours", 0, "Rolling window in hours")
	cmd.Flags().StringVar(&ticker, "ticker", "", "Report sentiment for one cashtag only")
	return cmd
}
