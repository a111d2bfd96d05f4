package scoring

import (
	"math"
	"sort"

	"github.com/optrank/optrank/internal/domain"
)

// Rank orders records by descending absolute composite score. Ties go to
// the more liquid contract, then the nearer expiration, then the contract
// identity so the order is total and content-only: shuffling the input
// never changes the output.
func Rank(records []domain.OpportunityRecord) []domain.OpportunityRecord {
	ranked := make([]domain.OpportunityRecord, len(records))
	copy(ranked, records)

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		absA, absB := math.Abs(a.Score), math.Abs(b.Score)
		if absA != absB {
			return absA > absB
		}
		if a.Liquidity != b.Liquidity {
			return a.Liquidity > b.Liquidity
		}
		if !a.Expiration.Equal(b.Expiration) {
			return a.Expiration.Before(b.Expiration)
		}
		return recordID(a) < recordID(b)
	})
	return ranked
}

// TopN returns the first n ranked records (all of them when n <= 0 or
// exceeds the count).
func TopN(records []domain.OpportunityRecord, n int) []domain.OpportunityRecord {
	ranked := Rank(records)
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

func recordID(r domain.OpportunityRecord) string {
	return domain.Contract{
		Ticker:     r.Ticker,
		Kind:       r.Kind,
		Strike:     r.Strike,
		Expiration: r.Expiration,
	}.ID()
}
