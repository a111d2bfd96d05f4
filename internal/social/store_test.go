package social

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RollingSentiment(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert([]Item{
		{FetchedAt: now.Add(-1 * time.Hour), Source: "r/stocks", Title: "a", Sentiment: 0.5, Tickers: "AAPL"},
		{FetchedAt: now.Add(-2 * time.Hour), Source: "r/stocks", Title: "b", Sentiment: -0.1, Tickers: "TSLA"},
		{FetchedAt: now.Add(-48 * time.Hour), Source: "r/stocks", Title: "old", Sentiment: -1.0, Tickers: "AAPL"},
	}))

	avg, ok, err := store.RollingSentiment(24*time.Hour, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.2, avg, 1e-9, "old items fall outside the window")

	_, ok, err = store.RollingSentiment(time.Minute, now)
	require.NoError(t, err)
	assert.False(t, ok, "empty window reports no data")
}

func TestStore_TickerSentiment(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert([]Item{
		{FetchedAt: now.Add(-time.Hour), Source: "s", Title: "a", Sentiment: 0.8, Tickers: "AAPL,MSFT"},
		{FetchedAt: now.Add(-time.Hour), Source: "s", Title: "b", Sentiment: -0.4, Tickers: "AAPL"},
		{FetchedAt: now.Add(-time.Hour), Source: "s", Title: "c", Sentiment: 1.0, Tickers: "AA"}, // must not match AAPL
	}))

	avg, ok, err := store.TickerSentiment("aapl", 24*time.Hour, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.2, avg, 1e-9)

	_, ok, err = store.TickerSentiment("NVDA", 24*time.Hour, now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = store.TickerSentiment("  ", 24*time.Hour, now)
	assert.Error(t, err)
}

func TestExtractCashtags(t *testing.T) {
	tags := ExtractCashtags("Loaded up on $AAPL and $tsla, sold $AAPL calls. $SPY250 is not a tag? $SPY yes")
	assert.Equal(t, []string{"AAPL", "TSLA", "SPY"}, tags)
	assert.Empty(t, ExtractCashtags("no tags here"))
}

func TestBlend(t *testing.T) {
	assert.InDelta(t, 0.25, Blend(0.0, 1.0, 0.25), 1e-9)
	assert.InDelta(t, 0.5, Blend(0.5, -1.0, 0), 1e-9)
	assert.InDelta(t, -1.0, Blend(0.5, -1.0, 2.0), 1e-9, "weight clamps to 1")
}
