package services

import (
	"context"
	"log/slog"

	"github.com/hungkhanh0709/trading-filter/internal/analysis"
	"github.com/hungkhanh0709/trading-filter/internal/cache"
	"github.com/hungkhanh0709/trading-filter/internal/infrastructure"
)

// PriceService fronts the batch price script with a shared-timestamp
// cache: one fetch covers a whole symbol set, and all quotes expire
// together. A request is only served from the cache when every asked-for
// symbol is present and the fetch is still fresh.
type PriceService struct {
	fetcher *analysis.PriceFetcher
	cache   *cache.SharedCache[analysis.Price]
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// NewPriceService creates a price service.
func NewPriceService(fetcher *analysis.PriceFetcher, priceCache *cache.SharedCache[analysis.Price], logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *PriceService {
	return &PriceService{
		fetcher: fetcher,
		cache:   priceCache,
		logger:  logger.With(slog.String("component", "price_service")),
		metrics: metrics,
	}
}

// PricesResponse maps symbols to quotes and reports cache provenance.
type PricesResponse struct {
	Prices map[string]analysis.Price `json:"prices"`
	Cached bool                      `json:"cached"`
}

// Prices returns quotes for the symbols. A partial cache hit counts as a
// miss: the whole set is refetched so every quote carries the same
// timestamp.
func (s *PriceService) Prices(ctx context.Context, symbols []string, refresh bool) (PricesResponse, error) {
	normalized := dedupePreservingOrder(NormalizeSymbols(symbols))

	if !refresh {
		if cached, ok := s.cache.GetAll(normalized); ok {
			s.metrics.RecordCacheLookup(ctx, "prices", true)
			return PricesResponse{Prices: cached, Cached: true}, nil
		}
		s.metrics.RecordCacheLookup(ctx, "prices", false)
	}

	prices, err := s.fetcher.Fetch(ctx, normalized)
	if err != nil {
		return PricesResponse{}, err
	}

	s.cache.PutAll(prices)

	s.logger.InfoContext(ctx, "prices fetched",
		slog.Int("symbols", len(normalized)),
		slog.Int("quotes", len(prices)))

	return PricesResponse{Prices: prices, Cached: false}, nil
}

// Invalidate expires the whole price cache.
func (s *PriceService) Invalidate() {
	s.cache.Invalidate()
}

func dedupePreservingOrder(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}
