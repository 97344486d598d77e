// Package export renders ledgers as CSV files.
package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"tradejournal/src/model"
)

type historyRow struct {
	Time   string `csv:"time"`
	Action string `csv:"action"`
	Price  string `csv:"price"`
	Amount string `csv:"amount"`
}

type summaryRow struct {
	Symbol       string `csv:"symbol"`
	AveragePrice string `csv:"average_price"`
	AssetTotal   string `csv:"asset_total"`
	CapitalTotal string `csv:"capital_total"`
	Events       int    `csv:"events"`
}

// Entry is one symbol's ledger as handed to the exporter.
type Entry struct {
	Symbol string
	Ledger model.Ledger
}

// WriteHistory writes the events of l in insertion order.
func WriteHistory(w io.Writer, l model.Ledger) error {
	src := l.Rows()
	rows := make([]*historyRow, 0, len(src))
	for _, r := range src {
		rows = append(rows, &historyRow{
			Time:   r.Time,
			Action: string(r.Action),
			Price:  r.Price.String(),
			Amount: r.Amount.String(),
		})
	}
	if len(rows) == 0 {
		_, err := io.WriteString(w, "time,action,price,amount\n")
		return err
	}
	return gocsv.Marshal(&rows, w)
}

// WriteSummary writes one row per entry.
func WriteSummary(w io.Writer, entries []Entry) error {
	rows := make([]*summaryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, &summaryRow{
			Symbol:       e.Symbol,
			AveragePrice: e.Ledger.AveragePrice.String(),
			AssetTotal:   e.Ledger.AssetTotal.String(),
			CapitalTotal: e.Ledger.CapitalTotal.String(),
			Events:       len(e.Ledger.History),
		})
	}
	if len(rows) == 0 {
		_, err := io.WriteString(w, "symbol,average_price,asset_total,capital_total,events\n")
		return err
	}
	return gocsv.Marshal(&rows, w)
}

// File is a rendered attachment.
type File struct {
	Name    string
	Content []byte
}

// Report renders a summary file plus one history file per entry.
func Report(entries []Entry) ([]File, error) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, entries); err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}
	files := []File{{Name: "summary.csv", Content: append([]byte(nil), buf.Bytes()...)}}

	for _, e := range entries {
		buf.Reset()
		if err := WriteHistory(&buf, e.Ledger); err != nil {
			return nil, fmt.Errorf("render %s history: %w", e.Symbol, err)
		}
		files = append(files, File{
			Name:    fmt.Sprintf("%s_history.csv", e.Symbol),
			Content: append([]byte(nil), buf.Bytes()...),
		})
	}
	return files, nil
}
