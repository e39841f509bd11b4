package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/hungkhanh0709/trading-filter/internal/matrix"
)

// utf8BOM makes Excel detect the encoding when a file is saved from the
// browser download.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV rendering.
type WriteOptions struct {
	// BOMPrefix prepends a UTF-8 BOM for Excel compatibility.
	BOMPrefix bool
}

// WriteMatrix streams the matrix as CSV: one row per symbol, one column
// per snapshot date (newest first), statuses spelled out.
func WriteMatrix(w io.Writer, m *matrix.Matrix, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)

	headers := []string{"Symbol", "Exchange", "VN30", "VN100", "TradingView"}
	for _, date := range m.Dates {
		headers = append(headers, date.DisplayDate)
	}
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, row := range m.Rows {
		record := []string{
			row.Symbol,
			row.Exchange,
			formatBool(row.VN30),
			formatBool(row.VN100),
			row.TradingViewURL,
		}
		for _, status := range row.Statuses {
			record = append(record, string(status))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record for %s: %w", row.Symbol, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
