package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hungkhanh0709/trading-filter/internal/catalog"
	"github.com/hungkhanh0709/trading-filter/internal/config"
	apierrors "github.com/hungkhanh0709/trading-filter/internal/errors"
	"github.com/hungkhanh0709/trading-filter/internal/matrix"
	"github.com/hungkhanh0709/trading-filter/internal/snapshot"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedPaths(t *testing.T, snapshots []snapshot.DailySnapshot) *config.Paths {
	t.Helper()
	dir := t.TempDir()

	paths := &config.Paths{
		DataDir:             dir,
		SnapshotsFile:       filepath.Join(dir, config.SnapshotsFileName),
		LegacySnapshotsFile: filepath.Join(dir, config.LegacySnapshotsFileName),
		WatchlistFile:       filepath.Join(dir, config.WatchlistFileName),
		VN30File:            filepath.Join(dir, config.VN30FileName),
		VN100File:           filepath.Join(dir, config.VN100FileName),
	}

	require.NoError(t, os.WriteFile(paths.VN30File, []byte(`["B"]`), 0644))
	require.NoError(t, os.WriteFile(paths.VN100File, []byte(`["B", "C"]`), 0644))
	require.NoError(t, os.WriteFile(paths.WatchlistFile, []byte(`{"HOSE": "A,B"}`), 0644))

	if snapshots != nil {
		data, err := json.Marshal(snapshots)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(paths.SnapshotsFile, data, 0644))
	}

	return paths
}

func newMatrixService(t *testing.T, snapshots []snapshot.DailySnapshot) *MatrixService {
	t.Helper()
	paths := seedPaths(t, snapshots)
	logger := testLogger()

	cat := catalog.Load(paths, logger)
	store := snapshot.NewStore(paths, cat, logger, time.Now)
	builder := matrix.NewBuilder(cat, "HOSE")
	cfg := config.MatrixConfig{MaxWindowDays: 30, DefaultExchange: "HOSE"}

	return NewMatrixService(store, builder, cat, cfg, logger)
}

func threeDaySnapshots() []snapshot.DailySnapshot {
	return []snapshot.DailySnapshot{
		{Date: "20260203", Exchanges: map[string]string{"HOSE": "A,B,C"}},
		{Date: "20260202", Exchanges: map[string]string{"HOSE": "B,C"}},
		{Date: "20260201", Exchanges: map[string]string{"HOSE": "B"}},
	}
}

func TestMatrixServiceBuild(t *testing.T) {
	s := newMatrixService(t, threeDaySnapshots())

	m, err := s.Matrix(context.Background(), MatrixRequest{})
	require.NoError(t, err)
	assert.Len(t, m.Dates, 3)
	assert.Len(t, m.Rows, 3)
	assert.Equal(t, 1, m.Stats.New)
}

func TestMatrixServiceNormalizesParameters(t *testing.T) {
	s := newMatrixService(t, threeDaySnapshots())

	m, err := s.Matrix(context.Background(), MatrixRequest{List: " VN100 ", Exchange: "hose"})
	require.NoError(t, err)
	require.Len(t, m.Rows, 2, "list name and exchange are case-insensitive")
	assert.Equal(t, "B", m.Rows[0].Symbol)
}

func TestMatrixServiceUnknownList(t *testing.T) {
	s := newMatrixService(t, threeDaySnapshots())

	_, err := s.Matrix(context.Background(), MatrixRequest{List: "vn500"})
	assert.ErrorIs(t, err, apierrors.ErrListNotFound)
}

func TestMatrixServiceUnionSpansExchanges(t *testing.T) {
	s := newMatrixService(t, []snapshot.DailySnapshot{
		{Date: "20260203", Exchanges: map[string]string{"HOSE": "A", "HNX": "Z"}},
	})

	m, err := s.Matrix(context.Background(), MatrixRequest{})
	require.NoError(t, err)
	symbols := make([]string, 0, len(m.Rows))
	for _, row := range m.Rows {
		symbols = append(symbols, row.Symbol)
	}
	assert.ElementsMatch(t, []string{"A", "Z"}, symbols,
		"union without an exchange filter covers every exchange")

	m, err = s.Matrix(context.Background(), MatrixRequest{Exchange: "HNX"})
	require.NoError(t, err)
	require.Len(t, m.Rows, 1)
	assert.Equal(t, "Z", m.Rows[0].Symbol)
}

func TestMatrixServiceNoSnapshots(t *testing.T) {
	s := newMatrixService(t, nil)

	m, err := s.Matrix(context.Background(), MatrixRequest{})
	require.NoError(t, err, "an empty store degrades to an empty matrix")
	assert.Empty(t, m.Dates)
	assert.Empty(t, m.Rows)
	assert.Equal(t, 0, m.Stats.Total)

	m, err = s.Watchlist(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, m.Rows)
}

func TestMatrixServiceWindowCap(t *testing.T) {
	snaps := make([]snapshot.DailySnapshot, 0, 40)
	for d := 1; d <= 40; d++ {
		snaps = append(snaps, snapshot.DailySnapshot{
			Date:      time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC).Format(snapshot.DateKey),
			Exchanges: map[string]string{"HOSE": "A"},
		})
	}
	s := newMatrixService(t, snaps)

	m, err := s.Matrix(context.Background(), MatrixRequest{Days: 100})
	require.NoError(t, err)
	assert.Len(t, m.Dates, 30, "window is capped at the configured maximum")

	m, err = s.Matrix(context.Background(), MatrixRequest{Days: 5})
	require.NoError(t, err)
	assert.Len(t, m.Dates, 5)
}

func TestMatrixServiceWatchlist(t *testing.T) {
	s := newMatrixService(t, threeDaySnapshots())

	m, err := s.Watchlist(context.Background(), 0)
	require.NoError(t, err)

	// Only watch-listed symbols (A and B) survive the filter.
	require.Len(t, m.Rows, 2)
	symbols := []string{m.Rows[0].Symbol, m.Rows[1].Symbol}
	assert.ElementsMatch(t, []string{"A", "B"}, symbols)
	assert.Equal(t, 2, m.Stats.Total)
	assert.Equal(t, 1, m.Stats.New, "A is new on the latest date")
}
