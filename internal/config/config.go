package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/optrank/optrank/internal/news"
	"github.com/optrank/optrank/internal/scoring"
	"github.com/optrank/optrank/internal/sentiment"
)

// Config is the full application configuration. Defaults live in code;
// a YAML file overrides them field by field.
type Config struct {
	Scoring  ScoringConfig  `yaml:"scoring"`
	News     NewsConfig     `yaml:"news"`
	Social   SocialConfig   `yaml:"social"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Server   ServerConfig   `yaml:"server"`

	Classifier sentiment.ClassifierConfig `yaml:"classifier"`
}

// ScoringConfig holds the composite score policy constants.
type ScoringConfig struct {
	Weights    scoring.Weights    `yaml:"weights"`
	Thresholds scoring.Thresholds `yaml:"thresholds"`
}

// NewsConfig selects and configures the headline source.
type NewsConfig struct {
	// Source selects the provider: "ticker", "query", or "static".
	Source string            `yaml:"source"`
	Ticker news.SourceConfig `yaml:"ticker_source"`
	Query  news.SourceConfig `yaml:"query_source"`

	Cache news.CacheConfig `yaml:"cache"`
}

// SocialConfig configures the RSS sentiment blend.
type SocialConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Feeds       []string `yaml:"feeds"`
	DBPath      string   `yaml:"db_path"`
	Weight      float64  `yaml:"weight"`
	WindowHours int      `yaml:"window_hours"`
}

// PipelineConfig bounds a scan run.
type PipelineConfig struct {
	Workers          int     `yaml:"workers"`
	FetchTimeoutSecs int     `yaml:"fetch_timeout_secs"`
	RunTimeoutSecs   int     `yaml:"run_timeout_secs"`
	MaxExpirations   int     `yaml:"max_expirations"`
	HeadlineLimit    int     `yaml:"headline_limit"`
	TopPerTicker     int     `yaml:"top_per_ticker"`
	RiskFreeRate     float64 `yaml:"risk_free_rate"`
}

// FetchTimeout bounds a single provider call.
func (p PipelineConfig) FetchTimeout() time.Duration {
	if p.FetchTimeoutSecs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(p.FetchTimeoutSecs) * time.Second
}

// RunTimeout bounds a whole scan.
func (p PipelineConfig) RunTimeout() time.Duration {
	if p.RunTimeoutSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.RunTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Scoring: ScoringConfig{
			Weights:    scoring.DefaultWeights(),
			Thresholds: scoring.DefaultThresholds(),
		},
		News: NewsConfig{
			Source: "ticker",
		},
		Social: SocialConfig{
			Enabled:     false,
			DBPath:      "social_sentiment.db",
			Weight:      0.25,
			WindowHours: 24,
		},
		Pipeline: PipelineConfig{
			Workers:        4,
			MaxExpirations: 6,
			HeadlineLimit:  100,
			TopPerTicker:   25,
			RiskFreeRate:   0.045,
		},
		Server: ServerConfig{
			Addr: ":8090",
		},
	}
}

// Load reads defaults, then overrides them from the YAML file at path.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if s := c.Scoring.Weights.Sum(); s < scoring.WeightSum-1e-9 || s > scoring.WeightSum+1e-9 {
		return fmt.Errorf("scoring weights must sum to %.1f, got %.4f", scoring.WeightSum, s)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline workers must be positive")
	}
	if c.Pipeline.MaxExpirations <= 0 {
		return fmt.Errorf("max expirations must be positive")
	}
	switch c.News.Source {
	case "ticker", "query", "static":
	default:
		return fmt.Errorf("unknown news source %q", c.News.Source)
	}
	if c.Social.Weight < 0 || c.Social.Weight > 1 {
		return fmt.Errorf("social weight must be in [0, 1]")
	}
	return nil
}
