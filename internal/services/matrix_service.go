package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hungkhanh0709/trading-filter/internal/catalog"
	"github.com/hungkhanh0709/trading-filter/internal/config"
	apierrors "github.com/hungkhanh0709/trading-filter/internal/errors"
	"github.com/hungkhanh0709/trading-filter/internal/matrix"
	"github.com/hungkhanh0709/trading-filter/internal/snapshot"
)

// MatrixService builds symbol-by-date presence matrices from the
// snapshot store. It normalizes and validates the query parameters and
// caps the window at the configured maximum.
type MatrixService struct {
	store   *snapshot.Store
	builder *matrix.Builder
	catalog *catalog.Catalog
	cfg     config.MatrixConfig
	logger  *slog.Logger
}

// NewMatrixService creates a matrix service.
func NewMatrixService(store *snapshot.Store, builder *matrix.Builder, cat *catalog.Catalog, cfg config.MatrixConfig, logger *slog.Logger) *MatrixService {
	return &MatrixService{
		store:   store,
		builder: builder,
		catalog: cat,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "matrix_service")),
	}
}

// MatrixRequest carries the normalized matrix query.
type MatrixRequest struct {
	// List selects the symbol universe: a reference list name (vn30,
	// vn100) or empty for the union of snapshot symbols.
	List string
	// Exchange restricts snapshot symbols to one exchange. Empty means
	// no restriction.
	Exchange string
	// Days is the look-back window. Zero or negative falls back to the
	// configured maximum; values beyond the maximum are capped.
	Days int
}

// Matrix builds the presence matrix for the request.
func (s *MatrixService) Matrix(ctx context.Context, req MatrixRequest) (*matrix.Matrix, error) {
	list := strings.ToLower(strings.TrimSpace(req.List))
	if list != "" {
		if _, ok := s.catalog.List(list); !ok {
			return nil, apierrors.ErrListNotFound
		}
	}

	exchange := strings.ToUpper(strings.TrimSpace(req.Exchange))

	days := req.Days
	if days <= 0 || days > s.cfg.MaxWindowDays {
		days = s.cfg.MaxWindowDays
	}

	// An empty store yields a well-formed empty matrix, not an error.
	m := s.builder.Build(s.store.Snapshots(), matrix.Universe{ListName: list, Exchange: exchange}, days)

	s.logger.InfoContext(ctx, "matrix built",
		slog.String("list", list),
		slog.String("exchange", exchange),
		slog.Int("days", days),
		slog.Int("dates", len(m.Dates)),
		slog.Int("rows", len(m.Rows)))

	return m, nil
}

// Watchlist builds the matrix restricted to the curated watch-list. The
// snapshot union is intersected with the watched symbols; exchanges come
// from the watch-list itself.
func (s *MatrixService) Watchlist(ctx context.Context, days int) (*matrix.Matrix, error) {
	if days <= 0 || days > s.cfg.MaxWindowDays {
		days = s.cfg.MaxWindowDays
	}

	m := s.builder.Build(s.store.Snapshots(), matrix.Universe{}, days)

	watched := make(map[string]struct{})
	for _, symbol := range s.catalog.WatchedSymbols() {
		watched[symbol] = struct{}{}
	}

	filtered := m.Rows[:0]
	stats := matrix.Stats{}
	for _, row := range m.Rows {
		if _, ok := watched[row.Symbol]; !ok {
			continue
		}
		filtered = append(filtered, row)
		stats.Total++
		if len(row.Statuses) > 0 && row.Statuses[0] == matrix.StatusNew {
			stats.New++
		}
		if matrix.RowRemoved(row.Statuses) {
			stats.Removed++
		}
		if row.VN30 {
			stats.VN30++
		}
		if row.VN100 {
			stats.VN100++
		}
	}
	m.Rows = filtered
	m.Stats = stats

	s.logger.InfoContext(ctx, "watchlist matrix built",
		slog.Int("days", days),
		slog.Int("rows", len(m.Rows)))

	return m, nil
}
