package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/optrank/optrank/internal/domain"
	"github.com/optrank/optrank/internal/marketdata"
	"github.com/optrank/optrank/internal/metrics"
	"github.com/optrank/optrank/internal/news"
	"github.com/optrank/optrank/internal/pricing"
	"github.com/optrank/optrank/internal/scoring"
	"github.com/optrank/optrank/internal/sentiment"
	"github.com/optrank/optrank/internal/social"
)

// Config bounds one scan run.
type Config struct {
	Tickers        []string
	Query          string
	Workers        int
	MaxExpirations int
	HeadlineLimit  int
	TopPerTicker   int
	RiskFreeRate   float64
	FetchTimeout   time.Duration
	RunTimeout     time.Duration

	// SocialWeight blends the RSS rolling sentiment into each ticker's
	// headline mean. Zero disables the blend even when a store is attached.
	SocialWeight float64
	SocialWindow time.Duration
}

// RunResult is the full output of one scan.
type RunResult struct {
	RunID      string    `json:"run_id"`
	AsOf       time.Time `json:"as_of"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Ranked    []domain.OpportunityRecord         `json:"opportunities"`
	Statuses  []domain.TickerStatus              `json:"tickers"`
	Summaries map[string]domain.SentimentSummary `json:"sentiment"`
}

// Pipeline orchestrates one scan: market data and headlines per ticker,
// sentiment once per ticker, then valuation and scoring per contract.
type Pipeline struct {
	market     marketdata.Provider
	headlines  news.Source
	aggregator *sentiment.Aggregator
	socialDB   *social.Store

	weights    scoring.Weights
	thresholds scoring.Thresholds
	metrics    *metrics.Registry

	// now is swappable so runs can be pinned to a fixed clock.
	now func() time.Time
}

// Options wires the pipeline's collaborators. Market, Headlines, and
// Aggregator are required; Social and Metrics are optional.
type Options struct {
	Market     marketdata.Provider
	Headlines  news.Source
	Aggregator *sentiment.Aggregator
	Social     *social.Store
	Weights    scoring.Weights
	Thresholds scoring.Thresholds
	Metrics    *metrics.Registry
	Now        func() time.Time
}

// New builds a pipeline from its collaborators.
func New(opts Options) (*Pipeline, error) {
	if opts.Market == nil {
		return nil, fmt.Errorf("pipeline: market provider is required")
	}
	if opts.Headlines == nil {
		return nil, fmt.Errorf("pipeline: headline source is required")
	}
	if opts.Aggregator == nil {
		return nil, fmt.Errorf("pipeline: sentiment aggregator is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		market:     opts.Market,
		headlines:  opts.Headlines,
		aggregator: opts.Aggregator,
		socialDB:   opts.Social,
		weights:    opts.Weights,
		thresholds: opts.Thresholds,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}, nil
}

// tickerOutcome is one worker's result, merged single-threaded afterwards.
type tickerOutcome struct {
	status  domain.TickerStatus
	summary domain.SentimentSummary
	records []domain.OpportunityRecord
}

// Run scans every configured ticker and returns the globally ranked result.
// Per-ticker failures degrade or skip that ticker only; Run fails as a
// whole only on invalid configuration or a cancelled context.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (*RunResult, error) {
	tickers := normalizeTickers(cfg.Tickers)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("pipeline: no tickers to scan")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	asOf := p.now().UTC()
	scorer, err := scoring.NewScorer(p.weights, p.thresholds, asOf)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:     uuid.NewString(),
		AsOf:      asOf,
		StartedAt: p.now().UTC(),
		Summaries: make(map[string]domain.SentimentSummary, len(tickers)),
	}
	p.metrics.ScanStarted()

	log.Info().Str("run_id", result.RunID).Int("tickers", len(tickers)).
		Int("workers", cfg.Workers).Msg("scan started")

	outcomes := make([]tickerOutcome, len(tickers))
	sem := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup
	for i, ticker := range tickers {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = p.evaluateTicker(ctx, cfg, scorer, asOf, ticker)
		}(i, ticker)
	}
	wg.Wait()

	var all []domain.OpportunityRecord
	for _, out := range outcomes {
		result.Statuses = append(result.Statuses, out.status)
		if out.status.State != domain.TickerSkipped {
			result.Summaries[out.status.Ticker] = out.summary
		}
		all = append(all, out.records...)
	}
	result.Ranked = scoring.Rank(all)
	result.FinishedAt = p.now().UTC()
	p.metrics.ScanFinished(result.FinishedAt.Sub(result.StartedAt))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan %s aborted: %w", result.RunID, err)
	}

	log.Info().Str("run_id", result.RunID).
		Int("opportunities", len(result.Ranked)).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
		Msg("scan finished")
	return result, nil
}

func (p *Pipeline) evaluateTicker(ctx context.Context, cfg Config, scorer *scoring.Scorer, asOf time.Time, ticker string) tickerOutcome {
	timer := p.metrics.StartTicker()

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	quote, err := p.market.GetQuote(fetchCtx, ticker)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("quote fetch failed, skipping ticker")
		timer.Stop(string(domain.TickerSkipped))
		return tickerOutcome{status: domain.TickerStatus{
			Ticker: ticker,
			State:  domain.TickerSkipped,
			Reason: fmt.Sprintf("quote: %v", err),
		}}
	}

	if quote.Spot <= 0 {
		log.Warn().Str("ticker", ticker).Float64("spot", quote.Spot).Msg("invalid spot, skipping ticker")
		timer.Stop(string(domain.TickerSkipped))
		return tickerOutcome{status: domain.TickerStatus{
			Ticker: ticker,
			State:  domain.TickerSkipped,
			Reason: fmt.Sprintf("invalid spot %.4f", quote.Spot),
		}}
	}

	fetchCtx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
	chain, err := p.market.GetOptionChain(fetchCtx, ticker, cfg.MaxExpirations)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("chain fetch failed, skipping ticker")
		timer.Stop(string(domain.TickerSkipped))
		return tickerOutcome{status: domain.TickerStatus{
			Ticker: ticker,
			State:  domain.TickerSkipped,
			Reason: fmt.Sprintf("option chain: %v", err),
		}}
	}

	state := domain.TickerOK
	summary, reason := p.tickerSentiment(ctx, cfg, ticker)
	if reason != "" {
		// Headlines are an enrichment, not a prerequisite: score on with a
		// neutral summary but mark the ticker degraded.
		state = domain.TickerDegraded
	}
	p.metrics.RecordSentiment(summary.MethodUsed)

	records := make([]domain.OpportunityRecord, 0, len(chain))
	rejected := 0
	for _, c := range chain {
		tYears := pricing.YearsToExpiry(c.Expiration, asOf)
		if err := pricing.ValidateInputs(quote.Spot, c.Strike, tYears, c.ImpliedVol); err != nil {
			log.Warn().Err(err).Str("contract", c.ID()).Msg("rejecting contract")
			rejected++
			continue
		}
		fair, delta, vega := pricing.Price(quote.Spot, c.Strike, tYears, c.ImpliedVol, cfg.RiskFreeRate, c.Kind)
		theo := domain.TheoreticalResult{FairValue: fair, Delta: delta, Vega: vega}
		records = append(records, scorer.Score(c, &theo, &summary))
	}
	p.metrics.ContractsScored.Add(float64(len(records)))
	if rejected > 0 {
		// Dropped contracts don't fail the ticker, but the caller gets told.
		note := fmt.Sprintf("%d contracts rejected", rejected)
		if reason == "" {
			reason = note
		} else {
			reason = reason + "; " + note
		}
	}
	if cfg.TopPerTicker > 0 {
		records = scoring.TopN(records, cfg.TopPerTicker)
	}

	timer.Stop(string(state))
	return tickerOutcome{
		status:  domain.TickerStatus{Ticker: ticker, State: state, Reason: reason},
		summary: summary,
		records: records,
	}
}

// tickerSentiment fetches headlines, summarizes them, and blends in the
// social rolling average when a store is attached. A non-empty degraded
// reason means the headline fetch failed and the summary is neutral.
func (p *Pipeline) tickerSentiment(ctx context.Context, cfg Config, ticker string) (domain.SentimentSummary, string) {
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	headlines, err := p.headlines.Fetch(fetchCtx, news.Request{
		Ticker: ticker,
		Query:  cfg.Query,
		Limit:  cfg.HeadlineLimit,
	})
	cancel()

	set := domain.HeadlineSet{Ticker: ticker}
	if err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("headline fetch failed")
		summary := p.aggregator.Summarize(ctx, set)
		summary.Warning = fmt.Sprintf("headline fetch failed: %v", err)
		return summary, summary.Warning
	}
	set.Headlines = headlines

	wasDegraded := p.aggregator.Degraded()
	summary := p.aggregator.Summarize(ctx, set)
	if !wasDegraded && p.aggregator.Degraded() {
		p.metrics.ClassifierFallback.Inc()
	}

	if p.socialDB != nil && cfg.SocialWeight > 0 {
		window := cfg.SocialWindow
		if window <= 0 {
			window = 24 * time.Hour
		}
		now := p.now().UTC()
		socialMean, ok, serr := p.socialDB.TickerSentiment(ticker, window, now)
		if serr == nil && !ok {
			socialMean, ok, serr = p.socialDB.RollingSentiment(window, now)
		}
		switch {
		case serr != nil:
			log.Warn().Err(serr).Str("ticker", ticker).Msg("social sentiment lookup failed")
		case ok:
			summary.Mean = social.Blend(summary.Mean, socialMean, cfg.SocialWeight)
		}
	}
	return summary, ""
}

func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Ordered returns the statuses grouped by state for reporting.
func (r *RunResult) Ordered() []domain.TickerStatus {
	statuses := make([]domain.TickerStatus, len(r.Statuses))
	copy(statuses, r.Statuses)
	sort.SliceStable(statuses, func(i, j int) bool {
		return statuses[i].State < statuses[j].State
	})
	return statuses
}
