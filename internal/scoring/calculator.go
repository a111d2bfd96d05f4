package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/optrank/optrank/internal/domain"
)

// Scorer combines one contract's market quote, its theoretical valuation,
// and its ticker's sentiment summary into an OpportunityRecord. It is a
// pure function of its inputs plus the fixed run timestamp taken at
// construction; identical inputs produce bit-identical records.
type Scorer struct {
	weights    Weights
	thresholds Thresholds
	asOf       time.Time
}

// NewScorer builds a scorer for one run. asOf is the run timestamp used to
// evaluate time-to-expiry so every contract in the run sees the same clock.
func NewScorer(weights Weights, thresholds Thresholds, asOf time.Time) (*Scorer, error) {
	if math.Abs(weights.Sum()-WeightSum) > 1e-9 {
		return nil, fmt.Errorf("score weights must sum to %.1f, got %.4f", WeightSum, weights.Sum())
	}
	return &Scorer{weights: weights, thresholds: thresholds, asOf: asOf.UTC()}, nil
}

// Score computes the composite opportunity score for one contract.
//
// A nil theoretical or sentiment input is an orchestration bug, not a data
// condition: the pipeline always computes both before scoring. It panics
// rather than emit a silently wrong score.
func (s *Scorer) Score(c domain.Contract, theo *domain.TheoreticalResult, sent *domain.SentimentSummary) domain.OpportunityRecord {
	if theo == nil {
		panic(fmt.Sprintf("scoring: nil theoretical result for %s", c.ID()))
	}
	if sent == nil {
		panic(fmt.Sprintf("scoring: nil sentiment summary for %s", c.ID()))
	}

	market := c.MidPrice()
	gap := s.pricingGap(theo.FairValue, market)
	liquidity := s.liquidityTerm(c)
	spreadPen := s.spreadPenalty(c, market)
	alignment := s.alignmentTerm(c.Kind, gap, sent.Mean)

	score := s.composite(gap, liquidity, spreadPen, alignment)
	risk := s.riskFlag(c, liquidity, spreadPen)

	return domain.OpportunityRecord{
		Ticker:     c.Ticker,
		Kind:       c.Kind,
		Strike:     c.Strike,
		Expiration: c.Expiration,
		Symbol:     c.Symbol,

		MarketPrice: market,
		FairValue:   theo.FairValue,
		Delta:       theo.Delta,
		Vega:        theo.Vega,
		ImpliedVol:  c.ImpliedVol,

		PricingGap:    gap,
		Liquidity:     liquidity,
		SpreadPenalty: spreadPen,
		Alignment:     alignment,
		Score:         score,

		RiskFlag: risk,
		Side:     side(gap),
		Bucket:   s.bucket(score, risk),
	}
}

// pricingGap is (fair - market) / max(market, eps), squashed by tanh to
// [-1, 1]. Positive means the market underprices the contract.
func (s *Scorer) pricingGap(fair, market float64) float64 {
	denom := market
	if denom < s.thresholds.Epsilon {
		denom = s.thresholds.Epsilon
	}
	return math.Tanh((fair - market) / denom)
}

// liquidityTerm grows with volume and open interest and saturates at 1.0
// so extremely liquid names cannot dominate the composite.
func (s *Scorer) liquidityTerm(c domain.Contract) float64 {
	activity := float64(c.Volume + c.OpenInterest)
	if activity < 0 {
		activity = 0
	}
	term := math.Log1p(activity) / math.Log1p(s.thresholds.LiquiditySaturation)
	if term > 1 {
		term = 1
	}
	return term
}

// spreadPenalty normalizes (ask-bid)/mid into [0, 1]. Contracts without a
// two-sided quote get the fixed conservative penalty, never zero.
func (s *Scorer) spreadPenalty(c domain.Contract, mid float64) float64 {
	spread, ok := c.Spread()
	if !ok || mid <= 0 {
		return s.thresholds.MissingSpreadPenalty
	}
	rel := spread / math.Max(mid, s.thresholds.Epsilon)
	if rel < 0 {
		rel = 0
	}
	if rel > s.thresholds.SpreadCap {
		rel = s.thresholds.SpreadCap
	}
	return rel / s.thresholds.SpreadCap
}

// alignmentTerm measures agreement between the sentiment sign and the
// directional bet implied by the gap for this option kind. An underpriced
// call is a bullish bet; an underpriced put is a bearish one.
func (s *Scorer) alignmentTerm(kind domain.OptionKind, gap, sentimentMean float64) float64 {
	dir := sign(gap)
	if kind == domain.KindPut {
		dir = -dir
	}
	align := sentimentMean * dir
	if align > 1 {
		align = 1
	}
	if align < -1 {
		align = -1
	}
	return align
}

// composite is the weighted sum of the four terms. The sign comes from the
// pricing gap alone; sentiment disagreement and wide spreads shrink the
// magnitude toward zero but never flip it.
func (s *Scorer) composite(gap, liquidity, spreadPen, alignment float64) float64 {
	magnitude := s.weights.Gap*math.Abs(gap) +
		s.weights.Liquidity*liquidity -
		s.weights.Spread*spreadPen +
		s.weights.Sentiment*alignment
	if magnitude < 0 {
		magnitude = 0
	}
	return sign(gap) * magnitude
}

func (s *Scorer) riskFlag(c domain.Contract, liquidity, spreadPen float64) bool {
	if liquidity < s.thresholds.LiquidityFloor {
		return true
	}
	// Reaching the ceiling already flags: the flag is conservative.
	if spreadPen >= s.thresholds.SpreadCeiling {
		return true
	}
	minExpiry := time.Duration(s.thresholds.MinExpiryHours * float64(time.Hour))
	return c.Expiration.Sub(s.asOf) < minExpiry
}

func (s *Scorer) bucket(score float64, risk bool) domain.Bucket {
	switch {
	case score >= s.thresholds.FavorThreshold && !risk:
		return domain.BucketFavor
	case score <= s.thresholds.AvoidThreshold:
		return domain.BucketAvoid
	default:
		return domain.BucketNeutral
	}
}

func side(gap float64) domain.Side {
	switch {
	case gap > 0:
		return domain.SideBuy
	case gap < 0:
		return domain.SideSell
	default:
		return domain.SideNone
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
