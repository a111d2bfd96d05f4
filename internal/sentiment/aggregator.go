package sentiment

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/optrank/optrank/internal/domain"
)

// topK is the number of most-positive and most-negative headlines kept in
// each summary.
const topK = 3

// MethodNone is the MethodUsed value when nothing was scored (empty
// headline set). Naming a scorer there would claim an inference that
// never ran.
const MethodNone = "none"

// Aggregator turns a HeadlineSet into a SentimentSummary. It owns the
// classifier/fallback selection for a run: the classifier is tried at most
// once; its first failure switches the aggregator to the lexicon for the
// remainder of the run. Classifier failure is recorded, never fatal.
type Aggregator struct {
	classifier HeadlineScorer
	lexicon    *LexiconScorer
	mode       Mode

	mu       sync.Mutex
	degraded bool
}

// NewAggregator builds an aggregator. The classifier may be nil, which
// behaves like ModeFallbackOnly regardless of mode.
func NewAggregator(classifier HeadlineScorer, mode Mode) *Aggregator {
	if mode != ModeFallbackOnly {
		mode = ModeAuto
	}
	return &Aggregator{
		classifier: classifier,
		lexicon:    NewLexiconScorer(),
		mode:       mode,
	}
}

// Degraded reports whether the classifier has failed this run.
func (a *Aggregator) Degraded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.degraded
}

// Summarize scores every headline in the set and aggregates mean, stddev,
// and top-k lists. An empty set yields mean 0, std 0, count 0 with
// MethodUsed still populated for auditability.
func (a *Aggregator) Summarize(ctx context.Context, set domain.HeadlineSet) domain.SentimentSummary {
	summary := domain.SentimentSummary{Ticker: set.Ticker}

	if len(set.Headlines) == 0 {
		summary.MethodUsed = MethodNone
		summary.Warning = "no headlines provided"
		return summary
	}
	scorer := a.pickScorer()

	texts := make([]string, len(set.Headlines))
	for i, h := range set.Headlines {
		texts[i] = h.Title
	}

	scores, err := scorer.ScoreBatch(ctx, texts)
	if err != nil {
		// One attempt per run: flip to the lexicon permanently and rescore
		// this batch with it. The lexicon never errors.
		log.Warn().Err(err).Str("ticker", set.Ticker).
			Str("scorer", scorer.Name()).
			Msg("classifier unavailable, falling back to lexicon")
		a.markDegraded()
		scorer = a.lexicon
		scores, _ = scorer.ScoreBatch(ctx, texts)
	}

	summary.MethodUsed = scorer.Name()
	summary.Count = len(scores)
	summary.Mean, summary.StdDev = meanStd(scores)

	scored := make([]domain.ScoredHeadline, len(scores))
	for i, s := range scores {
		scored[i] = domain.ScoredHeadline{Headline: set.Headlines[i], Score: s}
	}
	summary.TopPositive, summary.TopNegative = topHeadlines(scored)
	return summary
}

func (a *Aggregator) pickScorer() HeadlineScorer {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == ModeFallbackOnly || a.degraded || a.classifier == nil {
		return a.lexicon
	}
	return a.classifier
}

func (a *Aggregator) markDegraded() {
	a.mu.Lock()
	a.degraded = true
	a.mu.Unlock()
}

func meanStd(scores []float64) (mean, std float64) {
	n := float64(len(scores))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean = sum / n

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= n
	if variance > 0 {
		std = math.Sqrt(variance)
	}
	return mean, std
}

// topHeadlines selects the k most positive and k most negative headlines.
// Ties keep original fetch order (stable sort) so output is deterministic.
func topHeadlines(scored []domain.ScoredHeadline) (topPos, topNeg []domain.ScoredHeadline) {
	desc := make([]domain.ScoredHeadline, len(scored))
	copy(desc, scored)
	sort.SliceStable(desc, func(i, j int) bool { return desc[i].Score > desc[j].Score })

	k := topK
	if len(desc) < k {
		k = len(desc)
	}
	topPos = append([]domain.ScoredHeadline(nil), desc[:k]...)

	// Most negative first.
	asc := make([]domain.ScoredHeadline, len(scored))
	copy(asc, scored)
	sort.SliceStable(asc, func(i, j int) bool { return asc[i].Score < asc[j].Score })
	topNeg = append([]domain.ScoredHeadline(nil), asc[:k]...)
	return topPos, topNeg
}
