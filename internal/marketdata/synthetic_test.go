package marketdata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optrank/optrank/internal/domain"
)

func TestSyntheticProvider_Deterministic(t *testing.T) {
	now := time.Date(2026, 8, 1, 15, 0, 0, 0, time.UTC)
	a := NewSyntheticProvider(now)
	b := NewSyntheticProvider(now)
	ctx := context.Background()

	qa, err := a.GetQuote(ctx, "nvda")
	require.NoError(t, err)
	qb, err := b.GetQuote(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, qa, qb)
	assert.Greater(t, qa.Spot, 0.0)

	ca, err := a.GetOptionChain(ctx, "NVDA", 2)
	require.NoError(t, err)
	cb, err := b.GetOptionChain(ctx, "NVDA", 2)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
	assert.NotEmpty(t, ca)
}

func TestSyntheticProvider_ChainShape(t *testing.T) {
	p := NewSyntheticProvider(time.Date(2026, 8, 1, 15, 0, 0, 0, time.UTC))
	chain, err := p.GetOptionChain(context.Background(), "SPY", 3)
	require.NoError(t, err)

	expirations := map[time.Time]bool{}
	var calls, puts int
	for _, c := range chain {
		expirations[c.Expiration] = true
		require.Greater(t, c.Strike, 0.0)
		require.True(t, c.Expiration.After(p.now))
		switch c.Kind {
		case domain.KindCall:
			calls++
		case domain.KindPut:
			puts++
		}
	}
	assert.Len(t, expirations, 3)
	assert.Equal(t, calls, puts)
}

func TestSyntheticProvider_InjectedFailures(t *testing.T) {
	p := NewSyntheticProvider(time.Now())
	p.FailQuote("TSLA", fmt.Errorf("provider down"))
	p.FailChain("TSLA", fmt.Errorf("no chain"))

	_, err := p.GetQuote(context.Background(), "TSLA")
	assert.ErrorContains(t, err, "provider down")
	_, err = p.GetOptionChain(context.Background(), "TSLA", 1)
	assert.ErrorContains(t, err, "no chain")

	_, err = p.GetQuote(context.Background(), "AAPL")
	assert.NoError(t, err)
}
