package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/optrank/optrank/internal/domain"
)

// Expirations quote a date only; contracts stop trading at the exchange
// close, so time-to-expiry is measured to a fixed daily cutoff rather than
// whatever wall clock the caller happens to hold.
const (
	CutoffHour     = 16 // 16:00 exchange-local
	cutoffZone     = "America/New_York"
	cutoffUTCHour  = 20 // fallback when the zone database is missing
	secondsPerYear = 365 * 24 * 3600
)

// Price returns the closed-form lognormal fair value of one contract plus
// its delta and vega. Pure: no I/O, no randomness, always finite.
//
// Degenerate policy: expired (tYears <= 0) or zero-volatility contracts are
// worth exactly their intrinsic value, with indicator delta and zero vega.
func Price(spot, strike, tYears, vol, rate float64, kind domain.OptionKind) (fair, delta, vega float64) {
	if tYears <= 0 || vol <= 0 {
		return intrinsic(spot, strike, kind)
	}

	sqrtT := math.Sqrt(tYears)
	d1 := (math.Log(spot/strike) + (rate+0.5*vol*vol)*tYears) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT
	discount := math.Exp(-rate * tYears)

	if kind == domain.KindCall {
		fair = spot*normCDF(d1) - strike*discount*normCDF(d2)
		delta = normCDF(d1)
	} else {
		fair = strike*discount*normCDF(-d2) - spot*normCDF(-d1)
		delta = normCDF(d1) - 1
	}
	vega = spot * normPDF(d1) * sqrtT

	// Deep in/out-of-the-money inputs can round fair value a hair below
	// zero; the model price is never negative.
	if fair < 0 {
		fair = 0
	}
	return fair, delta, vega
}

func intrinsic(spot, strike float64, kind domain.OptionKind) (fair, delta, vega float64) {
	if kind == domain.KindCall {
		fair = math.Max(spot-strike, 0)
		if spot > strike {
			delta = 1
		}
	} else {
		fair = math.Max(strike-spot, 0)
		if spot < strike {
			delta = -1
		}
	}
	return fair, delta, 0
}

// ValidateInputs rejects inputs that never belong in the model. Degenerate
// but valid inputs (zero time, zero vol) pass; they take the intrinsic path.
func ValidateInputs(spot, strike, tYears, vol float64) error {
	if spot <= 0 {
		return fmt.Errorf("spot must be positive, got %.6f", spot)
	}
	if strike <= 0 {
		return fmt.Errorf("strike must be positive, got %.6f", strike)
	}
	if tYears < 0 {
		return fmt.Errorf("time to expiry must be >= 0, got %.6f", tYears)
	}
	if vol < 0 {
		return fmt.Errorf("volatility must be >= 0, got %.6f", vol)
	}
	return nil
}

// NormalizeExpiration pins a quoted expiration date to the daily cutoff so
// repeated computations on the same date agree regardless of call time. The
// argument carries a calendar date; its clock and zone are ignored.
func NormalizeExpiration(day time.Time) time.Time {
	y, m, d := day.Date()
	if loc, err := time.LoadLocation(cutoffZone); err == nil {
		return time.Date(y, m, d, CutoffHour, 0, 0, 0, loc).UTC()
	}
	return time.Date(y, m, d, cutoffUTCHour, 0, 0, 0, time.UTC)
}

// YearsToExpiry measures normalized expiration minus now in years, clamped
// at zero for already-expired contracts.
func YearsToExpiry(expiration, now time.Time) float64 {
	secs := expiration.Sub(now).Seconds()
	if secs <= 0 {
		return 0
	}
	return secs / secondsPerYear
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
