package domain

import (
	"fmt"
	"time"
)

// OptionKind distinguishes calls from puts.
type OptionKind string

const (
	KindCall OptionKind = "call"
	KindPut  OptionKind = "put"
)

// Quote is an immutable spot snapshot for an underlying, taken once per run.
type Quote struct {
	Ticker     string    `json:"ticker"`
	Spot       float64   `json:"spot"`
	ObservedAt time.Time `json:"observed_at"`
}

// Contract is one option contract as fetched from the chain. Identity is
// (Ticker, Kind, Strike, Expiration); market fields are a snapshot and are
// never mutated after construction.
type Contract struct {
	Ticker     string     `json:"ticker"`
	Kind       OptionKind `json:"kind"`
	Strike     float64    `json:"strike"`
	Expiration time.Time  `json:"expiration"`
	Symbol     string     `json:"symbol"`

	LastPrice    float64 `json:"last_price"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	ImpliedVol   float64 `json:"implied_volatility"` // 0 when unavailable
	OpenInterest int64   `json:"open_interest"`
	Volume       int64   `json:"volume"`
}

// ID returns the contract identity key used for stable ordering.
func (c Contract) ID() string {
	return fmt.Sprintf("%s-%s-%.2f-%s", c.Ticker, c.Kind, c.Strike, c.Expiration.UTC().Format("2006-01-02"))
}

// MidPrice returns (bid+ask)/2 when both sides are quoted, otherwise the
// last trade price.
func (c Contract) MidPrice() float64 {
	if c.Bid > 0 && c.Ask > 0 {
		return (c.Bid + c.Ask) / 2.0
	}
	return c.LastPrice
}

// Spread returns ask-bid and whether both sides are quoted.
func (c Contract) Spread() (float64, bool) {
	if c.Bid > 0 && c.Ask > 0 {
		return c.Ask - c.Bid, true
	}
	return 0, false
}

// TheoreticalResult is the model valuation for one contract. Derived,
// recomputed every run, never persisted on its own.
type TheoreticalResult struct {
	FairValue float64 `json:"fair_value"`
	Delta     float64 `json:"delta"`
	Vega      float64 `json:"vega"`
}

// Headline is one news item as returned by a news source.
type Headline struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// HeadlineSet is the ordered batch of headlines for a ticker. Order is
// fixed at fetch time; sentiment tie-breaks depend on it.
type HeadlineSet struct {
	Ticker    string     `json:"ticker"`
	Headlines []Headline `json:"headlines"`
}

// ScoredHeadline pairs a headline with its sentiment score in [-1, 1].
type ScoredHeadline struct {
	Headline
	Score float64 `json:"score"`
}

// SentimentSummary aggregates headline sentiment for one ticker.
// Count == 0 is a valid state (no headlines found) and is distinct from a
// fetch failure, which the pipeline records in the ticker status instead.
type SentimentSummary struct {
	Ticker      string           `json:"ticker"`
	Mean        float64          `json:"sentiment_mean"`
	StdDev      float64          `json:"sentiment_std"`
	Count       int              `json:"sentiment_count"`
	TopPositive []ScoredHeadline `json:"top_positive"`
	TopNegative []ScoredHeadline `json:"top_negative"`
	MethodUsed  string           `json:"method_used"`
	Warning     string           `json:"warning,omitempty"`
}

// Side is the trade direction implied by the pricing gap.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
	SideNone Side = ""
)

// Bucket is the recommendation bucket derived from the composite score.
type Bucket string

const (
	BucketFavor   Bucket = "favor"
	BucketNeutral Bucket = "neutral"
	BucketAvoid   Bucket = "avoid"
)

// OpportunityRecord is the unit emitted to callers: one scored contract.
type OpportunityRecord struct {
	Ticker     string     `json:"ticker"`
	Kind       OptionKind `json:"kind"`
	Strike     float64    `json:"strike"`
	Expiration time.Time  `json:"expiration"`
	Symbol     string     `json:"symbol"`

	MarketPrice float64 `json:"market_price"`
	FairValue   float64 `json:"fair_value"`
	Delta       float64 `json:"delta"`
	Vega        float64 `json:"vega"`
	ImpliedVol  float64 `json:"implied_volatility"`

	PricingGap    float64 `json:"pricing_gap"`
	Liquidity     float64 `json:"liquidity"`
	SpreadPenalty float64 `json:"spread_penalty"`
	Alignment     float64 `json:"sentiment_alignment"`
	Score         float64 `json:"opportunity_score"`

	RiskFlag bool   `json:"risk_flag"`
	Side     Side   `json:"side"`
	Bucket   Bucket `json:"bucket"`
}

// TickerState reports how a ticker fared within a run.
type TickerState string

const (
	TickerOK       TickerState = "ok"
	TickerSkipped  TickerState = "skipped"
	TickerDegraded TickerState = "degraded"
)

// TickerStatus is the per-ticker annotation in a run report.
type TickerStatus struct {
	Ticker string      `json:"ticker"`
	State  TickerState `json:"state"`
	Reason string      `json:"reason,omitempty"`
}
