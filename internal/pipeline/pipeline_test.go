package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optrank/optrank/internal/domain"
	"github.com/optrank/optrank/internal/marketdata"
	"github.com/optrank/optrank/internal/news"
	"github.com/optrank/optrank/internal/scoring"
	"github.com/optrank/optrank/internal/sentiment"
	"github.com/optrank/optrank/internal/social"
)

var testNow = time.Date(2026, 8, 1, 14, 30, 0, 0, time.UTC)

func testHeadlines() *news.StaticSource {
	src := news.NewStaticSource()
	src.Add("AAPL",
		domain.Headline{Title: "Apple beats expectations with record profit", Source: "test"},
		domain.Headline{Title: "Analysts upgrade Apple on strong growth", Source: "test"},
	)
	src.Add("MSFT",
		domain.Headline{Title: "Microsoft misses estimates, shares plunge", Source: "test"},
	)
	return src
}

func testPipeline(t *testing.T, market marketdata.Provider, headlines news.Source, store *social.Store) *Pipeline {
	t.Helper()
	p, err := New(Options{
		Market:     market,
		Headlines:  headlines,
		Aggregator: sentiment.NewAggregator(nil, sentiment.ModeFallbackOnly),
		Social:     store,
		Weights:    scoring.DefaultWeights(),
		Thresholds: scoring.DefaultThresholds(),
		Now:        func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return p
}

func testConfig(tickers ...string) Config {
	return Config{
		Tickers:        tickers,
		Workers:        3,
		MaxExpirations: 2,
		HeadlineLimit:  10,
		RiskFreeRate:   0.045,
		FetchTimeout:   time.Second,
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorContains(t, err, "market provider")

	_, err = New(Options{Market: marketdata.NewSyntheticProvider(testNow)})
	assert.ErrorContains(t, err, "headline source")
}

func TestRun_NoTickers(t *testing.T) {
	p := testPipeline(t, marketdata.NewSyntheticProvider(testNow), testHeadlines(), nil)
	_, err := p.Run(context.Background(), testConfig())
	assert.ErrorContains(t, err, "no tickers")
}

func TestRun_ScoresAllTickers(t *testing.T) {
	p := testPipeline(t, marketdata.NewSyntheticProvider(testNow), testHeadlines(), nil)

	res, err := p.Run(context.Background(), testConfig("aapl", "msft", "AAPL"))
	require.NoError(t, err)

	// Duplicates dedupe case-insensitively.
	require.Len(t, res.Statuses, 2)
	assert.Equal(t, "AAPL", res.Statuses[0].Ticker)
	assert.Equal(t, "MSFT", res.Statuses[1].Ticker)
	for _, st := range res.Statuses {
		assert.Equal(t, domain.TickerOK, st.State)
	}

	assert.NotEmpty(t, res.Ranked)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, testNow, res.AsOf)

	// Summaries carry the lexicon verdicts per ticker.
	require.Contains(t, res.Summaries, "AAPL")
	require.Contains(t, res.Summaries, "MSFT")
	assert.Greater(t, res.Summaries["AAPL"].Mean, 0.0)
	assert.Less(t, res.Summaries["MSFT"].Mean, 0.0)
	assert.Equal(t, sentiment.MethodLexicon, res.Summaries["AAPL"].MethodUsed)

	// Global ranking is by descending absolute score.
	for i := 1; i < len(res.Ranked); i++ {
		assert.GreaterOrEqual(t, abs(res.Ranked[i-1].Score), abs(res.Ranked[i].Score))
	}
}

func TestRun_SkipsTickerOnChainFailure(t *testing.T) {
	market := marketdata.NewSyntheticProvider(testNow)
	market.FailChain("MSFT", errors.New("vendor outage"))
	p := testPipeline(t, market, testHeadlines(), nil)

	res, err := p.Run(context.Background(), testConfig("AAPL", "MSFT"))
	require.NoError(t, err)

	byTicker := map[string]domain.TickerStatus{}
	for _, st := range res.Statuses {
		byTicker[st.Ticker] = st
	}
	assert.Equal(t, domain.TickerOK, byTicker["AAPL"].State)
	assert.Equal(t, domain.TickerSkipped, byTicker["MSFT"].State)
	assert.Contains(t, byTicker["MSFT"].Reason, "vendor outage")

	// Skipped tickers contribute nothing downstream.
	assert.NotContains(t, res.Summaries, "MSFT")
	for _, rec := range res.Ranked {
		assert.NotEqual(t, "MSFT", rec.Ticker)
	}
}

func TestRun_SkipsTickerOnQuoteFailure(t *testing.T) {
	market := marketdata.NewSyntheticProvider(testNow)
	market.FailQuote("AAPL", errors.New("quote feed down"))
	p := testPipeline(t, market, testHeadlines(), nil)

	res, err := p.Run(context.Background(), testConfig("AAPL"))
	require.NoError(t, err)
	require.Len(t, res.Statuses, 1)
	assert.Equal(t, domain.TickerSkipped, res.Statuses[0].State)
	assert.Empty(t, res.Ranked)
}

func TestRun_DegradesOnHeadlineFailure(t *testing.T) {
	headlines := testHeadlines()
	headlines.SetFailure(errors.New("news api 500"))
	p := testPipeline(t, marketdata.NewSyntheticProvider(testNow), headlines, nil)

	res, err := p.Run(context.Background(), testConfig("AAPL"))
	require.NoError(t, err)

	require.Len(t, res.Statuses, 1)
	assert.Equal(t, domain.TickerDegraded, res.Statuses[0].State)
	assert.Contains(t, res.Statuses[0].Reason, "news api 500")

	// Scoring proceeds on a neutral summary.
	assert.NotEmpty(t, res.Ranked)
	sum := res.Summaries["AAPL"]
	assert.Zero(t, sum.Count)
	assert.Zero(t, sum.Mean)
}

func TestRun_EmptyHeadlineSetIsNotDegraded(t *testing.T) {
	// GOOG has no fixture headlines: a successful fetch of nothing is OK.
	p := testPipeline(t, marketdata.NewSyntheticProvider(testNow), testHeadlines(), nil)

	res, err := p.Run(context.Background(), testConfig("GOOG"))
	require.NoError(t, err)
	require.Len(t, res.Statuses, 1)
	assert.Equal(t, domain.TickerOK, res.Statuses[0].State)
	assert.Zero(t, res.Summaries["GOOG"].Count)
}

func TestRun_TopPerTicker(t *testing.T) {
	p := testPipeline(t, marketdata.NewSyntheticProvider(testNow), testHeadlines(), nil)

	cfg := testConfig("AAPL", "MSFT")
	cfg.TopPerTicker = 5
	res, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, rec := range res.Ranked {
		counts[rec.Ticker]++
	}
	assert.Equal(t, 5, counts["AAPL"])
	assert.Equal(t, 5, counts["MSFT"])
}

func TestRun_Deterministic(t *testing.T) {
	cfg := testConfig("AAPL", "MSFT", "GOOG")

	run := func() *RunResult {
		p := testPipeline(t, marketdata.NewSyntheticProvider(testNow), testHeadlines(), nil)
		res, err := p.Run(context.Background(), cfg)
		require.NoError(t, err)
		return res
	}

	first, second := run(), run()
	assert.Equal(t, first.Ranked, second.Ranked)
	assert.Equal(t, first.Statuses, second.Statuses)
	assert.Equal(t, first.Summaries, second.Summaries)
}

func TestRun_CancelledContext(t *testing.T) {
	p := testPipeline(t, marketdata.NewSyntheticProvider(testNow), testHeadlines(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, testConfig("AAPL"))
	assert.ErrorIs(t, err, context.Canceled)
}

// fixedProvider serves one hand-built quote and chain for any ticker.
type fixedProvider struct {
	quote domain.Quote
	chain []domain.Contract
}

func (f *fixedProvider) GetQuote(_ context.Context, ticker string) (domain.Quote, error) {
	q := f.quote
	q.Ticker = ticker
	return q, nil
}

func (f *fixedProvider) GetOptionChain(_ context.Context, _ string, _ int) ([]domain.Contract, error) {
	return f.chain, nil
}

func TestRun_RejectsInvalidContracts(t *testing.T) {
	exp := testNow.AddDate(0, 1, 0)
	market := &fixedProvider{
		quote: domain.Quote{Spot: 100, ObservedAt: testNow},
		chain: []domain.Contract{
			{Ticker: "AAPL", Kind: domain.KindCall, Strike: -5, Expiration: exp, ImpliedVol: 0.2, Bid: 1, Ask: 1.2},
			{Ticker: "AAPL", Kind: domain.KindCall, Strike: 100, Expiration: exp, ImpliedVol: 0.2, Bid: 2.5, Ask: 2.7},
		},
	}
	p := testPipeline(t, market, testHeadlines(), nil)

	res, err := p.Run(context.Background(), testConfig("AAPL"))
	require.NoError(t, err)

	// The malformed strike is dropped; the valid contract still scores and
	// the ticker status carries the rejection count.
	require.Len(t, res.Ranked, 1)
	assert.Equal(t, 100.0, res.Ranked[0].Strike)
	assert.Equal(t, domain.TickerOK, res.Statuses[0].State)
	assert.Contains(t, res.Statuses[0].Reason, "1 contracts rejected")
}

func TestRun_SkipsTickerOnInvalidSpot(t *testing.T) {
	market := &fixedProvider{quote: domain.Quote{Spot: 0}}
	p := testPipeline(t, market, testHeadlines(), nil)

	res, err := p.Run(context.Background(), testConfig("AAPL"))
	require.NoError(t, err)
	require.Len(t, res.Statuses, 1)
	assert.Equal(t, domain.TickerSkipped, res.Statuses[0].State)
	assert.Contains(t, res.Statuses[0].Reason, "invalid spot")
}

func TestRun_SocialBlendShiftsMean(t *testing.T) {
	store, err := social.OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Insert([]social.Item{
		{FetchedAt: testNow.Add(-time.Hour), Source: "rss", Title: "bearish", Sentiment: -1.0, Tickers: "AAPL"},
	}))

	cfg := testConfig("AAPL")
	cfg.SocialWeight = 0.5
	cfg.SocialWindow = 24 * time.Hour

	withSocial := testPipeline(t, marketdata.NewSyntheticProvider(testNow), testHeadlines(), store)
	without := testPipeline(t, marketdata.NewSyntheticProvider(testNow), testHeadlines(), nil)

	blended, err := withSocial.Run(context.Background(), cfg)
	require.NoError(t, err)
	plain, err := without.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Less(t, blended.Summaries["AAPL"].Mean, plain.Summaries["AAPL"].Mean)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
