package sentiment

import (
	"context"
	"strings"
	"unicode"
)

// MethodLexicon is the MethodUsed value for lexicon scoring.
const MethodLexicon = "lexicon"

// Finance-specific and general terms. A few matched words should be able
// to move the score, so the normalized count is scaled before clamping.
var positiveWords = wordSet(
	"bullish", "moon", "mooning", "rally", "rallies", "rallying", "buy", "long",
	"breakout", "breakouts", "surge", "surges", "soar", "soaring", "gain", "gains",
	"profit", "profits", "win", "winning", "growth", "strong", "recovery",
	"optimistic", "bull", "bulls", "green", "undervalued",
	"breakthrough", "beat", "beats", "beating", "outperform", "upgrade", "upgraded",
)

var negativeWords = wordSet(
	"bearish", "dump", "dumps", "dumping", "crash", "crashes", "crashing",
	"sell", "short", "shorts", "collapse", "plunge", "plunges",
	"drop", "drops", "fall", "falls", "loss", "losses", "bear", "bears",
	"red", "overvalued", "recession", "fear", "panic",
	"miss", "misses", "missing", "downgrade", "downgraded", "weak", "weakness",
)

const lexiconScale = 5.0

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// LexiconScorer is the deterministic fallback: a rule-based word-list
// scorer that never fails and needs no external resources.
type LexiconScorer struct{}

// NewLexiconScorer returns the fallback scorer.
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{}
}

func (s *LexiconScorer) Name() string { return MethodLexicon }

// ScoreBatch scores each text independently. Empty texts score 0.
func (s *LexiconScorer) ScoreBatch(_ context.Context, texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))
	for i, text := range texts {
		scores[i] = s.ScoreText(text)
	}
	return scores, nil
}

// ScoreText returns (pos - neg) / tokens, scaled and clamped to [-1, 1].
func (s *LexiconScorer) ScoreText(text string) float64 {
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}
	var pos, neg int
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	raw := float64(pos-neg) / float64(len(words)) * lexiconScale
	if raw > 1 {
		return 1
	}
	if raw < -1 {
		return -1
	}
	return raw
}

// tokenize lowercases and splits on anything that is not a letter.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
