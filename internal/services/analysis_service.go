package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hungkhanh0709/trading-filter/internal/analysis"
	"github.com/hungkhanh0709/trading-filter/internal/cache"
	"github.com/hungkhanh0709/trading-filter/internal/infrastructure"
)

// AnalysisService fronts the external analyzer with a per-symbol TTL
// cache and drives batch runs through the orchestrator. Batch runs
// bypass the cache on read but write results through, so a follow-up
// single-symbol request is served from memory.
type AnalysisService struct {
	runner       *analysis.Runner
	orchestrator *analysis.Orchestrator
	cache        *cache.Cache[analysis.Result]
	logger       *slog.Logger
	metrics      *infrastructure.BusinessMetrics
}

// NewAnalysisService creates an analysis service.
func NewAnalysisService(runner *analysis.Runner, orchestrator *analysis.Orchestrator, resultCache *cache.Cache[analysis.Result], logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *AnalysisService {
	return &AnalysisService{
		runner:       runner,
		orchestrator: orchestrator,
		cache:        resultCache,
		logger:       logger.With(slog.String("component", "analysis_service")),
		metrics:      metrics,
	}
}

// AnalysisResponse is a cached or fresh analyzer result.
type AnalysisResponse struct {
	analysis.Result
	Cached bool `json:"cached"`
}

// Analyze returns the analyzer result for one symbol, serving from the
// cache unless refresh forces a new run. Only successful results are
// cached; soft failures are returned but never stored.
func (s *AnalysisService) Analyze(ctx context.Context, symbol string, refresh bool) (AnalysisResponse, error) {
	symbol = NormalizeSymbol(symbol)

	if !refresh {
		if result, ok := s.cache.Get(symbol); ok {
			s.metrics.RecordCacheLookup(ctx, "analysis", true)
			s.logger.DebugContext(ctx, "analysis cache hit",
				slog.String("symbol", symbol))
			return AnalysisResponse{Result: result, Cached: true}, nil
		}
		s.metrics.RecordCacheLookup(ctx, "analysis", false)
	}

	result, err := s.runner.Analyze(ctx, symbol)
	if err != nil {
		return AnalysisResponse{}, err
	}

	if result.OK() {
		s.cache.Put(symbol, result)
	}

	return AnalysisResponse{Result: result, Cached: false}, nil
}

// RunBatch analyzes the symbols sequentially, streaming events to the
// sink. Every symbol hits the analyzer regardless of cache state;
// successful results are written through to the cache.
func (s *AnalysisService) RunBatch(ctx context.Context, symbols []string, sink analysis.Sink) (*analysis.Summary, error) {
	normalized := NormalizeSymbols(symbols)

	caching := analysis.SinkFunc(func(ctx context.Context, event analysis.Event) error {
		if event.Type == analysis.EventTypeProgress && event.Result != nil && event.Result.OK() {
			s.cache.Put(event.Result.Symbol, *event.Result)
		}
		return sink.Emit(ctx, event)
	})

	return s.orchestrator.Run(ctx, normalized, caching)
}

// InvalidateSymbol drops one symbol's cached result.
func (s *AnalysisService) InvalidateSymbol(symbol string) {
	s.cache.Invalidate(NormalizeSymbol(symbol))
}

// CacheSize returns the number of live cache entries, expired included
// until their next lookup.
func (s *AnalysisService) CacheSize() int {
	return s.cache.Len()
}

// NormalizeSymbol canonicalizes a ticker for cache keys and analyzer
// arguments.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NormalizeSymbols canonicalizes a ticker list, dropping empties while
// preserving input order and duplicates. Batch order is contractual.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		normalized := NormalizeSymbol(symbol)
		if normalized == "" {
			continue
		}
		out = append(out, normalized)
	}
	return out
}
