// Package matrix derives the symbol × date appearance matrix from the
// snapshot store and the reference catalog.
package matrix

import (
	"sort"

	"github.com/hungkhanh0709/trading-filter/internal/catalog"
	"github.com/hungkhanh0709/trading-filter/internal/snapshot"
)

// DayStatus classifies a symbol's appearance on one date of the window.
type DayStatus string

const (
	// StatusNew marks a symbol present on the newest date but absent on
	// the second-newest (or when there is no second-newest date).
	StatusNew DayStatus = "new"
	// StatusNormal marks plain presence.
	StatusNormal DayStatus = "normal"
	// StatusAbsent marks absence.
	StatusAbsent DayStatus = "absent"
)

// Universe selects the symbol set a matrix covers: either a named
// reference list (the full index, absent symbols included) or the union
// of all symbols appearing in the selected snapshots, optionally
// restricted to one exchange.
type Universe struct {
	ListName string
	Exchange string
}

// Row is one symbol's line in the matrix. Statuses run newest to oldest,
// parallel to Matrix.Dates.
type Row struct {
	Symbol         string      `json:"symbol"`
	Exchange       string      `json:"exchange"`
	VN30           bool        `json:"isVN30"`
	VN100          bool        `json:"isVN100"`
	TradingViewURL string      `json:"tradingViewUrl"`
	Statuses       []DayStatus `json:"statuses"`
}

// DateSummary carries per-date aggregate counts.
type DateSummary struct {
	Date        string `json:"date"`
	DisplayDate string `json:"displayDate"`
	Total       int    `json:"total"`
	VN30Count   int    `json:"vn30Count"`
	VN100Count  int    `json:"vn100Count"`
}

// Stats are the whole-matrix aggregates.
type Stats struct {
	Total   int `json:"total"`
	New     int `json:"new"`
	Removed int `json:"removed"`
	VN30    int `json:"vn30"`
	VN100   int `json:"vn100"`
}

// Matrix is the assembled response structure.
type Matrix struct {
	Dates []DateSummary `json:"dates"`
	Rows  []Row         `json:"rows"`
	Stats Stats         `json:"stats"`
}

// Builder constructs matrices against a fixed catalog.
type Builder struct {
	catalog          *catalog.Catalog
	fallbackExchange string
}

// NewBuilder creates a matrix builder. fallbackExchange is used for
// symbols that never appear in the selected window (reference-list mode).
func NewBuilder(cat *catalog.Catalog, fallbackExchange string) *Builder {
	return &Builder{catalog: cat, fallbackExchange: fallbackExchange}
}

// day is one selected date's symbol set, symbol -> exchange.
type day struct {
	date    string
	symbols map[string]string
}

// Build produces the matrix over the window most recent snapshots. A
// window of zero or negative means all available. Empty inputs early-
// return a well-formed empty matrix, never an error.
func (b *Builder) Build(snapshots []snapshot.DailySnapshot, universe Universe, window int) *Matrix {
	if window > 0 && window < len(snapshots) {
		snapshots = snapshots[:window]
	}

	days := make([]day, 0, len(snapshots))
	for _, snap := range snapshots {
		d := day{date: snap.Date, symbols: make(map[string]string)}
		for exchange, joined := range snap.Exchanges {
			if universe.Exchange != "" && exchange != universe.Exchange {
				continue
			}
			for _, symbol := range catalog.SplitSymbols(joined) {
				// Last write wins when the same symbol appears under
				// two exchanges on one date.
				d.symbols[symbol] = exchange
			}
		}
		days = append(days, d)
	}

	symbols := b.universeSymbols(days, universe)

	m := &Matrix{
		Dates: make([]DateSummary, 0, len(days)),
		Rows:  make([]Row, 0, len(symbols)),
	}

	for _, d := range days {
		summary := DateSummary{
			Date:        d.date,
			DisplayDate: snapshot.DisplayDate(d.date),
			Total:       len(d.symbols),
		}
		for symbol := range d.symbols {
			mem := b.catalog.MembershipOf(symbol)
			if mem.VN30 {
				summary.VN30Count++
			}
			if mem.VN100 {
				summary.VN100Count++
			}
		}
		m.Dates = append(m.Dates, summary)
	}

	for _, symbol := range symbols {
		row := b.buildRow(symbol, days)
		m.Rows = append(m.Rows, row)

		m.Stats.Total++
		if len(row.Statuses) > 0 && row.Statuses[0] == StatusNew {
			m.Stats.New++
		}
		if RowRemoved(row.Statuses) {
			m.Stats.Removed++
		}
		if row.VN30 {
			m.Stats.VN30++
		}
		if row.VN100 {
			m.Stats.VN100++
		}
	}

	return m
}

// universeSymbols resolves the symbol universe for the selected days.
func (b *Builder) universeSymbols(days []day, universe Universe) []string {
	if universe.ListName != "" {
		list, ok := b.catalog.List(universe.ListName)
		if !ok {
			return nil
		}
		// The reference list is authoritative: absent symbols are still
		// rows, so the matrix always shows the complete index.
		return list.Symbols
	}

	seen := make(map[string]struct{})
	var symbols []string
	for _, d := range days {
		for symbol := range d.symbols {
			if _, dup := seen[symbol]; dup {
				continue
			}
			seen[symbol] = struct{}{}
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// buildRow computes one symbol's per-date statuses, newest to oldest.
//
// Only the newest date gets the look-back comparison: present there and
// absent on the second-newest date is "new", present on both is
// "normal". Older dates are "normal" iff present, with no comparison.
func (b *Builder) buildRow(symbol string, days []day) Row {
	mem := b.catalog.MembershipOf(symbol)
	row := Row{
		Symbol:   symbol,
		Exchange: b.resolveExchange(symbol, days),
		VN30:     mem.VN30,
		VN100:    mem.VN100,
		Statuses: make([]DayStatus, 0, len(days)),
	}
	row.TradingViewURL = catalog.TradingViewURL(row.Exchange, row.Symbol)

	for i, d := range days {
		_, has := d.symbols[symbol]

		var status DayStatus
		switch {
		case !has:
			status = StatusAbsent
		case i == 0:
			prevHas := false
			if len(days) > 1 {
				_, prevHas = days[1].symbols[symbol]
			}
			if prevHas {
				status = StatusNormal
			} else {
				status = StatusNew
			}
		default:
			status = StatusNormal
		}
		row.Statuses = append(row.Statuses, status)
	}

	return row
}

// resolveExchange scans the selected dates newest-first and takes the
// exchange of the first snapshot containing the symbol, falling back to
// the configured default when it never appears.
func (b *Builder) resolveExchange(symbol string, days []day) string {
	for _, d := range days {
		if exchange, ok := d.symbols[symbol]; ok {
			return exchange
		}
	}
	if exchange, ok := b.catalog.TrackedExchange(symbol); ok {
		return exchange
	}
	return b.fallbackExchange
}

// RowRemoved reports whether a symbol dropped off the list: present on
// at least one older date of the window but absent on the newest.
func RowRemoved(statuses []DayStatus) bool {
	if len(statuses) < 2 || statuses[0] != StatusAbsent {
		return false
	}
	for _, s := range statuses[1:] {
		if s == StatusNormal {
			return true
		}
	}
	return false
}
