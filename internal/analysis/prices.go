package analysis

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Price is one symbol's quote as reported by the price fetcher script.
// Price and ChangePercent are nil when the script reported an error for
// the symbol.
type Price struct {
	Price         *float64 `json:"price"`
	ChangePercent *float64 `json:"changePercent"`
	Error         string   `json:"error,omitempty"`
}

// PriceFetcher runs the batch price script. Unlike the analyzer, one
// process handles the whole symbol list; the script does its own
// per-symbol throttling and emits a single JSON map on stdout.
type PriceFetcher struct {
	pythonBin  string
	scriptPath string
	strategies []ParseStrategy
	logger     *slog.Logger
}

// NewPriceFetcher creates a price fetcher.
func NewPriceFetcher(pythonBin, scriptPath string, logger *slog.Logger) *PriceFetcher {
	return &PriceFetcher{
		pythonBin:  pythonBin,
		scriptPath: scriptPath,
		strategies: DefaultStrategies,
		logger:     logger.With(slog.String("component", "price_fetcher")),
	}
}

// Fetch runs the script with the symbols as arguments and parses the
// final JSON map from stdout. As with the analyzer, a started process
// runs to completion regardless of context cancellation.
func (f *PriceFetcher) Fetch(ctx context.Context, symbols []string) (map[string]Price, error) {
	if len(symbols) == 0 {
		return map[string]Price{}, nil
	}

	start := time.Now()

	args := append([]string{f.scriptPath}, symbols...)
	cmd := exec.Command(f.pythonBin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.logger.InfoContext(ctx, "fetching prices",
		slog.Int("symbols", len(symbols)))

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("price fetch failed: %w: %s", err, lastLine(stderr.String()))
	}

	payload, err := ExtractJSON(stdout.String(), f.strategies)
	if err != nil {
		return nil, fmt.Errorf("price fetch produced no parsable output: %w", err)
	}

	prices := make(map[string]Price, len(payload))
	for symbol, raw := range payload {
		quote, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		var p Price
		if v, ok := quote["price"].(float64); ok {
			p.Price = &v
		}
		if v, ok := quote["changePercent"].(float64); ok {
			p.ChangePercent = &v
		}
		if v, ok := quote["error"].(string); ok {
			p.Error = v
		}
		prices[symbol] = p
	}

	f.logger.InfoContext(ctx, "prices fetched",
		slog.Int("symbols", len(prices)),
		slog.Duration("elapsed", time.Since(start)))

	return prices, nil
}
