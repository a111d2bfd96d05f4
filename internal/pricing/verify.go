package pricing

import (
	"fmt"
	"math"

	"github.com/optrank/optrank/internal/domain"
)

// Fixed-input regression pins. These are the correctness contract for the
// engine: process startup refuses to proceed if any drifts beyond tolerance.
const (
	checkTolerance = 1e-2

	// spot=100 strike=100 T=0.5y vol=0.20 r=0.05
	refCallHalfYear = 6.8887
	refPutHalfYear  = 4.4197

	// spot=100 strike=100 T=1y vol=0.20 r=0.05
	refCallOneYear = 10.4506
	refPutOneYear  = 5.5735
)

type checkCase struct {
	name                       string
	spot, strike, t, vol, rate float64
	kind                       domain.OptionKind
	want                       float64
}

// SelfCheck revalidates the engine against known reference values and the
// degenerate-boundary policy. Called once at process startup.
func SelfCheck() error {
	cases := []checkCase{
		{"call_half_year_atm", 100, 100, 0.5, 0.20, 0.05, domain.KindCall, refCallHalfYear},
		{"put_half_year_atm", 100, 100, 0.5, 0.20, 0.05, domain.KindPut, refPutHalfYear},
		{"call_one_year_atm", 100, 100, 1.0, 0.20, 0.05, domain.KindCall, refCallOneYear},
		{"put_one_year_atm", 100, 100, 1.0, 0.20, 0.05, domain.KindPut, refPutOneYear},
	}
	for _, c := range cases {
		got, _, _ := Price(c.spot, c.strike, c.t, c.vol, c.rate, c.kind)
		if math.Abs(got-c.want) > checkTolerance {
			return fmt.Errorf("pricing self-check %s: got %.4f, want %.4f ± %.0e", c.name, got, c.want, checkTolerance)
		}
	}

	// Expired contracts must price at exact intrinsic.
	if fair, _, _ := Price(110, 100, 0, 0.20, 0.05, domain.KindCall); fair != 10 {
		return fmt.Errorf("pricing self-check: expired call intrinsic got %.4f, want 10", fair)
	}
	if fair, _, _ := Price(90, 100, 0, 0.20, 0.05, domain.KindPut); fair != 10 {
		return fmt.Errorf("pricing self-check: expired put intrinsic got %.4f, want 10", fair)
	}
	return nil
}
