// Package catalog loads the static reference data the service works
// against: the VN30 and VN100 index membership lists and the manually
// curated watch-list. All of it is immutable after startup.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/hungkhanh0709/trading-filter/internal/config"
)

// Reference list names accepted by the matrix API.
const (
	ListVN30  = "vn30"
	ListVN100 = "vn100"
)

// Membership carries the index membership flags of a symbol.
type Membership struct {
	VN30  bool `json:"isVN30"`
	VN100 bool `json:"isVN100"`
}

// ReferenceList is a static, ordered membership list (e.g. the VN100).
type ReferenceList struct {
	Name    string
	Symbols []string

	index map[string]struct{}
}

// Contains reports whether the list includes the symbol.
func (l *ReferenceList) Contains(symbol string) bool {
	if l == nil {
		return false
	}
	_, ok := l.index[symbol]
	return ok
}

// Catalog holds the reference lists and the watch-list mapping of
// tracked symbol to preferred exchange.
type Catalog struct {
	lists  map[string]*ReferenceList
	watch  map[string]string // symbol -> exchange code
	logger *slog.Logger
}

// Load reads the reference list files and the watch-list file. Missing or
// malformed files degrade to empty lists with a logged warning; they are
// never fatal.
func Load(paths *config.Paths, logger *slog.Logger) *Catalog {
	logger = logger.With(slog.String("component", "catalog"))

	c := &Catalog{
		lists:  make(map[string]*ReferenceList),
		watch:  make(map[string]string),
		logger: logger,
	}

	c.lists[ListVN30] = loadReferenceList(ListVN30, paths.VN30File, logger)
	c.lists[ListVN100] = loadReferenceList(ListVN100, paths.VN100File, logger)
	c.watch = loadWatchlist(paths.WatchlistFile, logger)

	logger.Info("catalog loaded",
		slog.Int("vn30", len(c.lists[ListVN30].Symbols)),
		slog.Int("vn100", len(c.lists[ListVN100].Symbols)),
		slog.Int("watchlist", len(c.watch)))

	return c
}

// loadReferenceList parses a plain JSON symbol array.
func loadReferenceList(name, path string, logger *slog.Logger) *ReferenceList {
	list := &ReferenceList{Name: name, index: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("reference list unavailable",
			slog.String("list", name),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return list
	}

	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		logger.Warn("reference list malformed",
			slog.String("list", name),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return list
	}

	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := list.index[s]; dup {
			continue
		}
		list.index[s] = struct{}{}
		list.Symbols = append(list.Symbols, s)
	}

	return list
}

// loadWatchlist parses the curated watch-list file: a mapping of exchange
// code to a comma-joined symbol string, the same shape as one snapshot day.
func loadWatchlist(path string, logger *slog.Logger) map[string]string {
	watch := make(map[string]string)

	raw, err := ParseExchangeFile(path)
	if err != nil {
		logger.Warn("watch-list unavailable",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return watch
	}

	for exchange, joined := range raw {
		for _, symbol := range SplitSymbols(joined) {
			watch[symbol] = exchange
		}
	}

	return watch
}

// List returns a reference list by name.
func (c *Catalog) List(name string) (*ReferenceList, bool) {
	list, ok := c.lists[strings.ToLower(name)]
	if !ok || list == nil {
		return nil, false
	}
	return list, true
}

// MembershipOf returns the index membership flags of the symbol.
func (c *Catalog) MembershipOf(symbol string) Membership {
	return Membership{
		VN30:  c.lists[ListVN30].Contains(symbol),
		VN100: c.lists[ListVN100].Contains(symbol),
	}
}

// TrackedExchange returns the preferred exchange of a watch-listed symbol.
func (c *Catalog) TrackedExchange(symbol string) (string, bool) {
	exchange, ok := c.watch[symbol]
	return exchange, ok
}

// WatchedSymbols returns all watch-listed symbols in sorted order.
func (c *Catalog) WatchedSymbols() []string {
	symbols := make([]string, 0, len(c.watch))
	for s := range c.watch {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// TradingViewURL derives the chart URL for a symbol on an exchange.
func TradingViewURL(exchange, symbol string) string {
	return fmt.Sprintf("https://www.tradingview.com/chart/?symbol=%s",
		url.QueryEscape(exchange+":"+symbol))
}

// ParseExchangeFile reads a JSON file mapping exchange code to a
// comma-joined symbol string, normalizing exchange codes to upper case.
func ParseExchangeFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for exchange, joined := range raw {
		out[strings.ToUpper(strings.TrimSpace(exchange))] = joined
	}
	return out, nil
}

// SplitSymbols splits a comma-joined symbol string into trimmed,
// upper-cased symbols, dropping empties.
func SplitSymbols(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// JoinSymbols deduplicates, sorts, and comma-joins a symbol slice — the
// canonical persisted form of one exchange's daily set.
func JoinSymbols(symbols []string) string {
	seen := make(map[string]struct{}, len(symbols))
	unique := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		unique = append(unique, s)
	}
	sort.Strings(unique)
	return strings.Join(unique, ",")
}
