package sentiment

import "context"

// Mode selects how headline batches are scored.
type Mode string

const (
	// ModeAuto tries the classifier first and falls back to the lexicon.
	ModeAuto Mode = "auto"
	// ModeFallbackOnly skips the classifier entirely.
	ModeFallbackOnly Mode = "fallback-only"
)

// HeadlineScorer scores a batch of headline texts, one signed score in
// [-1, 1] per input, preserving input order.
type HeadlineScorer interface {
	ScoreBatch(ctx context.Context, texts []string) ([]float64, error)

	// Name identifies the scoring method for the MethodUsed audit field.
	Name() string
}
