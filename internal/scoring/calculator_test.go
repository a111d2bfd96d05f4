package scoring

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optrank/optrank/internal/domain"
)

var testAsOf = time.Date(2026, 8, 1, 14, 30, 0, 0, time.UTC)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultWeights(), DefaultThresholds(), testAsOf)
	require.NoError(t, err)
	return s
}

func liquidCall() domain.Contract {
	return domain.Contract{
		Ticker:       "AAPL",
		Kind:         domain.KindCall,
		Strike:       190,
		Expiration:   testAsOf.AddDate(0, 1, 0),
		Symbol:       "AAPL260901C00190000",
		LastPrice:    5.10,
		Bid:          5.00,
		Ask:          5.20,
		ImpliedVol:   0.25,
		OpenInterest: 4000,
		Volume:       1200,
	}
}

func TestNewScorer_RejectsBadWeights(t *testing.T) {
	w := DefaultWeights()
	w.Gap = 0.9
	_, err := NewScorer(w, DefaultThresholds(), testAsOf)
	assert.ErrorContains(t, err, "sum")
}

func TestScore_UnderpricedCallWithAgreeingSentiment(t *testing.T) {
	s := newTestScorer(t)
	c := liquidCall()
	theo := &domain.TheoreticalResult{FairValue: 7.0, Delta: 0.55, Vega: 30}
	sent := &domain.SentimentSummary{Ticker: "AAPL", Mean: 0.6, Count: 20, MethodUsed: "lexicon"}

	rec := s.Score(c, theo, sent)

	assert.Greater(t, rec.PricingGap, 0.0)
	assert.Greater(t, rec.Alignment, 0.0)
	assert.Greater(t, rec.Score, 0.0)
	assert.Equal(t, domain.SideBuy, rec.Side)
	assert.False(t, rec.RiskFlag)
	assert.Equal(t, 7.0, rec.FairValue)
	assert.InDelta(t, 5.10, rec.MarketPrice, 1e-9)
}

func TestScore_DisagreementReducesNotFlips(t *testing.T) {
	s := newTestScorer(t)
	c := liquidCall()
	theo := &domain.TheoreticalResult{FairValue: 7.0}

	agree := s.Score(c, theo, &domain.SentimentSummary{Mean: 0.8, Count: 10, MethodUsed: "lexicon"})
	disagree := s.Score(c, theo, &domain.SentimentSummary{Mean: -0.8, Count: 10, MethodUsed: "lexicon"})

	assert.Less(t, disagree.Score, agree.Score)
	assert.GreaterOrEqual(t, disagree.Score, 0.0, "disagreement must not flip the sign")
}

func TestScore_PutDirectionality(t *testing.T) {
	s := newTestScorer(t)
	c := liquidCall()
	c.Kind = domain.KindPut

	// Underpriced put is a bearish bet: negative sentiment agrees.
	theo := &domain.TheoreticalResult{FairValue: 7.0}
	rec := s.Score(c, theo, &domain.SentimentSummary{Mean: -0.5, Count: 5, MethodUsed: "lexicon"})
	assert.Greater(t, rec.Alignment, 0.0)

	rec = s.Score(c, theo, &domain.SentimentSummary{Mean: 0.5, Count: 5, MethodUsed: "lexicon"})
	assert.Less(t, rec.Alignment, 0.0)
}

func TestScore_MissingQuoteGetsConservativeSpreadPenalty(t *testing.T) {
	s := newTestScorer(t)
	c := liquidCall()
	c.Bid = 0
	c.Ask = 0

	rec := s.Score(c, &domain.TheoreticalResult{FairValue: 5.5}, &domain.SentimentSummary{MethodUsed: "lexicon"})
	assert.Equal(t, DefaultThresholds().MissingSpreadPenalty, rec.SpreadPenalty)
	assert.True(t, rec.RiskFlag, "max spread penalty exceeds the ceiling")
}

func TestScore_RiskFlags(t *testing.T) {
	s := newTestScorer(t)
	theo := &domain.TheoreticalResult{FairValue: 5.5}
	sent := &domain.SentimentSummary{MethodUsed: "lexicon"}

	illiquid := liquidCall()
	illiquid.Volume = 0
	illiquid.OpenInterest = 1
	assert.True(t, s.Score(illiquid, theo, sent).RiskFlag)

	nearExpiry := liquidCall()
	nearExpiry.Expiration = testAsOf.Add(6 * time.Hour)
	assert.True(t, s.Score(nearExpiry, theo, sent).RiskFlag)

	wide := liquidCall()
	wide.Bid = 1.00
	wide.Ask = 9.00
	assert.True(t, s.Score(wide, theo, sent).RiskFlag)
}

func TestScore_SpreadCeilingBoundary(t *testing.T) {
	s := newTestScorer(t)
	theo := &domain.TheoreticalResult{FairValue: 5.5}
	sent := &domain.SentimentSummary{MethodUsed: "lexicon"}

	// bid 1.00 / ask 9.00: mid 5.00, rel spread 1.6, normalized 0.80 —
	// exactly the ceiling. Landing on the ceiling flags.
	atCeiling := liquidCall()
	atCeiling.Bid = 1.00
	atCeiling.Ask = 9.00
	rec := s.Score(atCeiling, theo, sent)
	assert.InDelta(t, 0.80, rec.SpreadPenalty, 1e-12)
	assert.True(t, rec.RiskFlag)

	// Just under the ceiling stays unflagged.
	under := liquidCall()
	under.Bid = 1.10
	under.Ask = 9.00
	rec = s.Score(under, theo, sent)
	assert.Less(t, rec.SpreadPenalty, 0.80)
	assert.False(t, rec.RiskFlag)
}

func TestScore_FlaggedContractExcludedFromFavor(t *testing.T) {
	s := newTestScorer(t)
	c := liquidCall()
	c.Volume = 0
	c.OpenInterest = 0 // flagged

	rec := s.Score(c, &domain.TheoreticalResult{FairValue: 50}, &domain.SentimentSummary{Mean: 1, MethodUsed: "lexicon"})
	assert.True(t, rec.RiskFlag)
	assert.NotEqual(t, domain.BucketFavor, rec.Bucket)
}

func TestScore_Buckets(t *testing.T) {
	s := newTestScorer(t)
	sent := &domain.SentimentSummary{MethodUsed: "lexicon"}
	c := liquidCall()

	favor := s.Score(c, &domain.TheoreticalResult{FairValue: 15}, &domain.SentimentSummary{Mean: 0.9, MethodUsed: "lexicon"})
	assert.Equal(t, domain.BucketFavor, favor.Bucket)

	avoid := s.Score(c, &domain.TheoreticalResult{FairValue: 0.5}, &domain.SentimentSummary{Mean: -0.9, MethodUsed: "lexicon"})
	assert.Equal(t, domain.BucketAvoid, avoid.Bucket)
	assert.Equal(t, domain.SideSell, avoid.Side)

	neutral := s.Score(c, &domain.TheoreticalResult{FairValue: c.MidPrice()}, sent)
	assert.Equal(t, domain.BucketNeutral, neutral.Bucket)
}

func TestScore_Idempotent(t *testing.T) {
	s := newTestScorer(t)
	c := liquidCall()
	theo := &domain.TheoreticalResult{FairValue: 6.2, Delta: 0.51, Vega: 28.4}
	sent := &domain.SentimentSummary{Ticker: "AAPL", Mean: 0.31, StdDev: 0.2, Count: 14, MethodUsed: "lexicon"}

	first := s.Score(c, theo, sent)
	second := s.Score(c, theo, sent)
	assert.Equal(t, first, second, "identical inputs must yield bit-identical records")
}

func TestScore_PanicsOnMissingInputs(t *testing.T) {
	s := newTestScorer(t)
	c := liquidCall()
	assert.Panics(t, func() { s.Score(c, nil, &domain.SentimentSummary{}) })
	assert.Panics(t, func() { s.Score(c, &domain.TheoreticalResult{}, nil) })
}

// Regression pin for the current composite constants. If the weights or
// thresholds change deliberately, update these values.
func TestScore_RegressionPin(t *testing.T) {
	s := newTestScorer(t)
	c := liquidCall()
	theo := &domain.TheoreticalResult{FairValue: 7.0, Delta: 0.55, Vega: 30}
	sent := &domain.SentimentSummary{Mean: 0.6, Count: 20, MethodUsed: "lexicon"}

	rec := s.Score(c, theo, sent)

	assert.InDelta(t, 0.3562, rec.PricingGap, 1e-4)
	assert.InDelta(t, 0.9290, rec.Liquidity, 1e-4)
	assert.InDelta(t, 0.0196, rec.SpreadPenalty, 1e-4)
	assert.InDelta(t, 0.6, rec.Alignment, 1e-9)
	assert.InDelta(t, 0.4444, rec.Score, 1e-4)
}

func TestRank_StableUnderShuffle(t *testing.T) {
	s := newTestScorer(t)
	sent := &domain.SentimentSummary{Mean: 0.2, MethodUsed: "lexicon"}

	var records []domain.OpportunityRecord
	for i := 0; i < 30; i++ {
		c := liquidCall()
		c.Strike = 150 + float64(i)*5
		c.Volume = int64(100 * (i + 1))
		theo := &domain.TheoreticalResult{FairValue: c.MidPrice() * (1 + 0.03*float64(i%7))}
		records = append(records, s.Score(c, theo, sent))
	}

	want := Rank(records)

	rng := rand.New(rand.NewSource(42))
	shuffled := make([]domain.OpportunityRecord, len(records))
	copy(shuffled, records)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	assert.Equal(t, want, Rank(shuffled), "ranking must depend on content, not arrival order")

	for i := 1; i < len(want); i++ {
		assert.GreaterOrEqual(t, math.Abs(want[i-1].Score), math.Abs(want[i].Score))
	}
}

func TestRank_TieBreaks(t *testing.T) {
	base := domain.OpportunityRecord{
		Ticker: "SPY", Kind: domain.KindCall, Score: 0.5,
		Expiration: testAsOf.AddDate(0, 2, 0),
	}

	moreLiquid := base
	moreLiquid.Strike = 400
	moreLiquid.Liquidity = 0.9

	lessLiquid := base
	lessLiquid.Strike = 410
	lessLiquid.Liquidity = 0.4

	nearer := lessLiquid
	nearer.Strike = 420
	nearer.Expiration = testAsOf.AddDate(0, 1, 0)

	ranked := Rank([]domain.OpportunityRecord{lessLiquid, nearer, moreLiquid})
	require.Len(t, ranked, 3)
	assert.Equal(t, 400.0, ranked[0].Strike, "higher liquidity wins the tie")
	assert.Equal(t, 420.0, ranked[1].Strike, "nearer expiration wins the next tie")
	assert.Equal(t, 410.0, ranked[2].Strike)
}

func TestTopN(t *testing.T) {
	recs := []domain.OpportunityRecord{
		{Strike: 1, Score: 0.1},
		{Strike: 2, Score: -0.9},
		{Strike: 3, Score: 0.5},
	}
	top := TopN(recs, 2)
	require.Len(t, top, 2)
	assert.Equal(t, 2.0, top[0].Strike)
	assert.Equal(t, 3.0, top[1].Strike)

	assert.Len(t, TopN(recs, 0), 3)
	assert.Len(t, TopN(recs, 10), 3)
}
