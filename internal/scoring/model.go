package scoring

// Weights combine the four normalized score terms. They must sum to
// WeightSum so composite magnitudes stay comparable across runs; the
// current split favors mispricing over the microstructure and sentiment
// terms.
type Weights struct {
	Gap       float64 `yaml:"gap"`
	Liquidity float64 `yaml:"liquidity"`
	Spread    float64 `yaml:"spread"`
	Sentiment float64 `yaml:"sentiment"`
}

// WeightSum is the required sum of the four weights.
const WeightSum = 1.0

// DefaultWeights returns the documented weight split.
func DefaultWeights() Weights {
	return Weights{
		Gap:       0.40,
		Liquidity: 0.20,
		Spread:    0.20,
		Sentiment: 0.20,
	}
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Gap + w.Liquidity + w.Spread + w.Sentiment
}

// Thresholds hold the normalization and policy constants of the scorer.
// Directions are fixed (liquidity helps, spread hurts); magnitudes are
// tunable and pinned by regression tests.
type Thresholds struct {
	// LiquiditySaturation is the volume+open-interest level at which the
	// liquidity term reaches 1.0; extremely liquid names gain nothing more.
	LiquiditySaturation float64 `yaml:"liquidity_saturation"`

	// SpreadCap caps (ask-bid)/mid before normalization to [0, 1].
	SpreadCap float64 `yaml:"spread_cap"`

	// MissingSpreadPenalty is the normalized penalty for contracts with no
	// two-sided quote. Conservative: a missing quote is never a tight one.
	MissingSpreadPenalty float64 `yaml:"missing_spread_penalty"`

	// Risk flag floors and ceilings.
	LiquidityFloor float64 `yaml:"liquidity_floor"`
	SpreadCeiling  float64 `yaml:"spread_ceiling"`
	MinExpiryHours float64 `yaml:"min_expiry_hours"`

	// Bucket thresholds on the composite, identical for calls and puts.
	FavorThreshold float64 `yaml:"favor_threshold"`
	AvoidThreshold float64 `yaml:"avoid_threshold"`

	// Epsilon guards division by near-zero market prices.
	Epsilon float64 `yaml:"epsilon"`
}

// DefaultThresholds returns the documented scorer constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LiquiditySaturation:  10000,
		SpreadCap:            2.0,
		MissingSpreadPenalty: 1.0,
		LiquidityFloor:       0.10,
		SpreadCeiling:        0.80,
		MinExpiryHours:       24,
		FavorThreshold:       0.15,
		AvoidThreshold:       -0.15,
		Epsilon:              0.01,
	}
}
