package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hungkhanh0709/trading-filter/internal/analysis"
	"github.com/hungkhanh0709/trading-filter/internal/cache"
)

func newPriceService(t *testing.T, scriptBody string) *PriceService {
	t.Helper()
	logger := testLogger()
	fetcher := analysis.NewPriceFetcher("/bin/sh", writeScript(t, scriptBody), logger)
	priceCache := cache.NewShared[analysis.Price](5*time.Minute, nil)
	return NewPriceService(fetcher, priceCache, logger, nil)
}

// quoteScript quotes exactly the symbols it was asked for, so tests can
// distinguish a genuine refetch from a cache hit on leftover symbols.
const quoteScript = `
out=""
for sym in "$@"; do
  [ -n "$out" ] && out="$out, "
  out="$out\"$sym\": {\"price\": 65.4, \"changePercent\": 0.5}"
done
echo "{$out}"
`

func TestPriceServiceFetchAndCache(t *testing.T) {
	skipWithoutShell(t)

	s := newPriceService(t, quoteScript)

	first, err := s.Prices(context.Background(), []string{"vnm", "FPT"}, false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.Contains(t, first.Prices, "VNM")

	second, err := s.Prices(context.Background(), []string{"VNM", "FPT"}, false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Prices, second.Prices)
}

func TestPriceServicePartialCacheMissRefetches(t *testing.T) {
	skipWithoutShell(t)

	s := newPriceService(t, quoteScript)

	first, err := s.Prices(context.Background(), []string{"VNM"}, false)
	require.NoError(t, err)
	require.Len(t, first.Prices, 1, "only the requested symbol is fetched")

	// Asking for a symbol outside the cached set refetches everything.
	resp, err := s.Prices(context.Background(), []string{"VNM", "FPT"}, false)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Contains(t, resp.Prices, "FPT")
}

func TestPriceServiceRefreshBypassesCache(t *testing.T) {
	skipWithoutShell(t)

	s := newPriceService(t, quoteScript)

	_, err := s.Prices(context.Background(), []string{"VNM", "FPT"}, false)
	require.NoError(t, err)

	resp, err := s.Prices(context.Background(), []string{"VNM", "FPT"}, true)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
}

func TestPriceServiceInvalidate(t *testing.T) {
	skipWithoutShell(t)

	s := newPriceService(t, quoteScript)

	_, err := s.Prices(context.Background(), []string{"VNM", "FPT"}, false)
	require.NoError(t, err)

	s.Invalidate()
	resp, err := s.Prices(context.Background(), []string{"VNM", "FPT"}, false)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
}

func TestPriceServiceScriptFailure(t *testing.T) {
	skipWithoutShell(t)

	s := newPriceService(t, `exit 1`)

	_, err := s.Prices(context.Background(), []string{"VNM"}, false)
	assert.Error(t, err)
}
