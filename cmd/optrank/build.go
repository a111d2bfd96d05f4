package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/optrank/optrank/internal/config"
	"github.com/optrank/optrank/internal/marketdata"
	"github.com/optrank/optrank/internal/metrics"
	"github.com/optrank/optrank/internal/news"
	"github.com/optrank/optrank/internal/pipeline"
	"github.com/optrank/optrank/internal/sentiment"
	"github.com/optrank/optrank/internal/social"
)

// scanOptions are the flag-level overrides shared by scan and serve.
type scanOptions struct {
	tickers      []string
	query        string
	expirations  int
	riskFreeRate float64
	headlines    int
	model        string
	newsSource   string
	socialWeight float64
	socialHours  int
	noSocial     bool
	topPerTicker int
	workers      int
	offline      bool
}

// apply folds non-zero flag overrides into the loaded config.
func (o scanOptions) apply(cfg *config.Config) {
	if o.newsSource != "" {
		cfg.News.Source = o.newsSource
	}
	if o.offline {
		cfg.News.Source = "static"
		cfg.News.Cache.Addr = ""
	}
	if o.expirations > 0 {
		cfg.Pipeline.MaxExpirations = o.expirations
	}
	if o.headlines > 0 {
		cfg.Pipeline.HeadlineLimit = o.headlines
	}
	if o.topPerTicker > 0 {
		cfg.Pipeline.TopPerTicker = o.topPerTicker
	}
	if o.workers > 0 {
		cfg.Pipeline.Workers = o.workers
	}
	if o.riskFreeRate > 0 {
		cfg.Pipeline.RiskFreeRate = o.riskFreeRate
	}
	if o.socialWeight >= 0 {
		cfg.Social.Weight = o.socialWeight
	}
	if o.socialHours > 0 {
		cfg.Social.WindowHours = o.socialHours
	}
	if o.noSocial {
		cfg.Social.Enabled = false
	} else if o.socialWeight > 0 {
		cfg.Social.Enabled = true
	}
}

// pipelineConfig derives the per-run bounds from config plus flags.
func (o scanOptions) pipelineConfig(cfg config.Config) pipeline.Config {
	pc := pipeline.Config{
		Tickers:        o.tickers,
		Query:          o.query,
		Workers:        cfg.Pipeline.Workers,
		MaxExpirations: cfg.Pipeline.MaxExpirations,
		HeadlineLimit:  cfg.Pipeline.HeadlineLimit,
		TopPerTicker:   cfg.Pipeline.TopPerTicker,
		RiskFreeRate:   cfg.Pipeline.RiskFreeRate,
		FetchTimeout:   cfg.Pipeline.FetchTimeout(),
		RunTimeout:     cfg.Pipeline.RunTimeout(),
	}
	if cfg.Social.Enabled {
		pc.SocialWeight = cfg.Social.Weight
		pc.SocialWindow = time.Duration(cfg.Social.WindowHours) * time.Hour
	}
	return pc
}

// buildPipeline wires the scan collaborators from the effective config.
// The returned cleanup closes any opened stores.
func buildPipeline(cfg config.Config, opts scanOptions, reg *metrics.Registry) (*pipeline.Pipeline, func(), error) {
	source, err := buildNewsSource(cfg, reg)
	if err != nil {
		return nil, nil, err
	}

	var store *social.Store
	cleanup := func() {}
	if cfg.Social.Enabled {
		store, err = social.OpenStore(cfg.Social.DBPath)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() {
			if cerr := store.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("closing social store")
			}
		}
	}

	p, err := pipeline.New(pipeline.Options{
		Market:     marketdata.NewSyntheticProvider(time.Now()),
		Headlines:  source,
		Aggregator: buildAggregator(cfg, opts),
		Social:     store,
		Weights:    cfg.Scoring.Weights,
		Thresholds: cfg.Scoring.Thresholds,
		Metrics:    reg,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}

func buildNewsSource(cfg config.Config, reg *metrics.Registry) (news.Source, error) {
	var source news.Source
	switch cfg.News.Source {
	case "ticker":
		source = news.NewTickerSource(cfg.News.Ticker, http.DefaultClient)
	case "query":
		source = news.NewQuerySource(cfg.News.Query, http.DefaultClient)
	case "static":
		source = news.NewStaticSource()
	default:
		return nil, fmt.Errorf("unknown news source %q", cfg.News.Source)
	}

	if cfg.News.Cache.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.News.Cache.Addr})
		source = news.NewCachedSource(source, rdb, cfg.News.Cache.TTL(), reg)
	}
	return source, nil
}

func buildAggregator(cfg config.Config, opts scanOptions) *sentiment.Aggregator {
	mode := sentiment.ModeAuto
	if opts.model == "lexicon" || cfg.Classifier.Endpoint == "" {
		mode = sentiment.ModeFallbackOnly
	}

	var classifier sentiment.HeadlineScorer
	if mode == sentiment.ModeAuto {
		classifier = sentiment.NewClassifierScorer(cfg.Classifier, http.DefaultClient)
	}
	return sentiment.NewAggregator(classifier, mode)
}

func registerScanFlags(cmd *cobra.Command, opts *scanOptions) {
	cmd.Flags().StringSliceVarP(&opts.tickers, "tickers", "t", []string{"AAPL"}, "Tickers to scan")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Free-text news query (query source only)")
	cmd.Flags().IntVarP(&opts.expirations, "expirations", "e", 0, "Max expirations per chain")
	cmd.Flags().Float64VarP(&opts.riskFreeRate, "rate", "r", 0, "Risk-free rate")
	cmd.Flags().IntVar(&opts.headlines, "headlines", 0, "Max headlines per ticker")
	cmd.Flags().StringVar(&opts.model, "model", "auto", "Sentiment model (auto|lexicon)")
	cmd.Flags().StringVar(&opts.newsSource, "news-source", "", "News source (ticker|query|static)")
	cmd.Flags().Float64Var(&opts.socialWeight, "social-weight", -1, "Social sentiment blend weight [0,1]")
	cmd.Flags().IntVar(&opts.socialHours, "social-hours", 0, "Social sentiment window in hours")
	cmd.Flags().BoolVar(&opts.noSocial, "no-social", false, "Disable the social sentiment blend")
	cmd.Flags().IntVar(&opts.topPerTicker, "top-per-ticker", 0, "Keep only the top N contracts per ticker")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Concurrent ticker workers")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "No external calls: static news, no cache")
}
