// Package snapshot persists and reconciles the daily symbol-set snapshots
// that feed the appearance matrix. One file holds the ordered snapshot
// array; mutations rewrite the whole file.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/hungkhanh0709/trading-filter/internal/catalog"
	"github.com/hungkhanh0709/trading-filter/internal/config"
)

// DateKey is the layout of the snapshot date key.
const DateKey = "20060102"

// DailySnapshot is the recorded symbol set per exchange for one date.
// Each exchange's value is the deduplicated, sorted, comma-joined symbol
// string; an empty string means "ingested with no symbols", which is
// distinct from the exchange key being absent.
type DailySnapshot struct {
	Date      string            `json:"date"`
	Exchanges map[string]string `json:"exchanges"`
}

// Record is the per-symbol expansion of a snapshot used by API responses.
type Record struct {
	Symbol      string `json:"symbol"`
	Exchange    string `json:"exchange"`
	Date        string `json:"date"`
	DisplayDate string `json:"displayDate"`
	VN30        bool   `json:"isVN30"`
	VN100       bool   `json:"isVN100"`
}

// IngestAction describes what happened to one exchange during an ingest.
type IngestAction struct {
	Action string `json:"action"` // "added" or "replaced"
	Count  int    `json:"count"`
}

// IngestSummary reports the outcome of one ingestion. Failures are
// reported through the Error field, never as a Go error: a missing or
// malformed raw file must not take the process down.
type IngestSummary struct {
	Date      string                  `json:"date"`
	Exchanges map[string]IngestAction `json:"exchanges,omitempty"`
	NoSymbols bool                    `json:"noSymbols,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Store reads and mutates the persisted snapshot file. The file is
// re-read on demand rather than held in memory; mutations are
// read-modify-write of the whole file and expect a single writer.
type Store struct {
	path       string
	legacyPath string
	rawPath    string
	catalog    *catalog.Catalog
	logger     *slog.Logger
	now        func() time.Time
}

// NewStore creates a snapshot store over the configured files.
// A nil now defaults to time.Now.
func NewStore(paths *config.Paths, cat *catalog.Catalog, logger *slog.Logger, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		path:       paths.SnapshotsFile,
		legacyPath: paths.LegacySnapshotsFile,
		rawPath:    paths.WatchlistFile,
		catalog:    cat,
		logger:     logger.With(slog.String("component", "snapshot_store")),
		now:        now,
	}
}

// Ingest reads today's raw watch-list file and merges it into the store
// under today's date key. Per-exchange semantics are full replace: a
// re-ingest of the same day discards that exchange's previous set. The
// whole store is re-sorted and rewritten afterwards.
func (s *Store) Ingest() *IngestSummary {
	date := s.now().Format(DateKey)

	raw, err := catalog.ParseExchangeFile(s.rawPath)
	if err != nil {
		s.logger.Warn("ingest failed to read raw file",
			slog.String("path", s.rawPath),
			slog.String("error", err.Error()))
		return &IngestSummary{Date: date, Error: err.Error()}
	}

	snapshots := s.readAll()

	var today *DailySnapshot
	for i := range snapshots {
		if snapshots[i].Date == date {
			today = &snapshots[i]
			break
		}
	}
	if today == nil {
		snapshots = append(snapshots, DailySnapshot{
			Date:      date,
			Exchanges: make(map[string]string),
		})
		today = &snapshots[len(snapshots)-1]
	}
	if today.Exchanges == nil {
		today.Exchanges = make(map[string]string)
	}

	summary := &IngestSummary{Date: date, Exchanges: make(map[string]IngestAction)}
	total := 0

	for exchange, joined := range raw {
		symbols := catalog.SplitSymbols(joined)
		_, existed := today.Exchanges[exchange]

		action := "added"
		if existed {
			action = "replaced"
		}

		today.Exchanges[exchange] = catalog.JoinSymbols(symbols)
		summary.Exchanges[exchange] = IngestAction{Action: action, Count: len(symbols)}
		total += len(symbols)
	}

	if total == 0 {
		summary.NoSymbols = true
	}

	sortByDateDesc(snapshots)

	if err := s.writeAll(snapshots); err != nil {
		s.logger.Error("ingest failed to persist snapshots",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return &IngestSummary{Date: date, Error: err.Error()}
	}

	s.logger.Info("snapshot ingested",
		slog.String("date", date),
		slog.Int("symbols", total),
		slog.Int("exchanges", len(summary.Exchanges)))

	return summary
}

// Snapshots returns every persisted DailySnapshot, most recent first.
// A missing or unparseable file yields an empty slice; callers treat
// "no data" and "error" identically.
func (s *Store) Snapshots() []DailySnapshot {
	return s.readAll()
}

// Records expands the persisted snapshots into per-symbol records with
// membership flags, deduplicated per date across exchanges, most recent
// date first.
func (s *Store) Records() []Record {
	snapshots := s.readAll()

	var records []Record
	for _, snap := range snapshots {
		seen := make(map[string]struct{})
		for _, exchange := range sortedKeys(snap.Exchanges) {
			for _, symbol := range catalog.SplitSymbols(snap.Exchanges[exchange]) {
				if _, dup := seen[symbol]; dup {
					continue
				}
				seen[symbol] = struct{}{}

				m := s.catalog.MembershipOf(symbol)
				records = append(records, Record{
					Symbol:      symbol,
					Exchange:    exchange,
					Date:        snap.Date,
					DisplayDate: DisplayDate(snap.Date),
					VN30:        m.VN30,
					VN100:       m.VN100,
				})
			}
		}
	}

	return records
}

// readAll loads the persisted snapshot file, falling back to the legacy
// filename when the primary is absent. It accepts either a single object
// or an array for backward compatibility. Any failure yields nil.
func (s *Store) readAll() []DailySnapshot {
	path := s.path
	if !config.FileExists(path) && config.FileExists(s.legacyPath) {
		path = s.legacyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read snapshots",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	}

	var snapshots []DailySnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		// Older versions persisted a single object instead of an array.
		var single DailySnapshot
		if err2 := json.Unmarshal(data, &single); err2 != nil || single.Date == "" {
			s.logger.Warn("failed to parse snapshots",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		snapshots = []DailySnapshot{single}
	}

	sortByDateDesc(snapshots)
	return snapshots
}

// writeAll rewrites the snapshot file in full.
func (s *Store) writeAll(snapshots []DailySnapshot) error {
	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshots: %w", err)
	}
	return nil
}

// sortByDateDesc keeps the store ordered most recent first.
func sortByDateDesc(snapshots []DailySnapshot) {
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Date > snapshots[j].Date
	})
}

// sortedKeys returns map keys in a stable order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DisplayDate converts a YYYYMMDD date key to the DD/MM form used in
// responses. Malformed keys are returned unchanged.
func DisplayDate(date string) string {
	t, err := time.Parse(DateKey, date)
	if err != nil {
		return date
	}
	return t.Format("02/01")
}
