// Package report renders computed records for people and for other tools.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/user/roev/internal/metrics"
)

// Output formats.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// DefaultCSVPath is where the CLI writes CSV output when no path is given.
const DefaultCSVPath = "stock_roev_results.csv"

// Presenter writes records in one format.
type Presenter interface {
	Render(w io.Writer, records []metrics.Record) error
}

// New returns the presenter for format.
func New(format string) (Presenter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatTable:
		return TablePresenter{}, nil
	case FormatCSV:
		return CSVPresenter{}, nil
	case FormatJSON:
		return JSONPresenter{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, csv or json)", format)
	}
}

// Formats lists the accepted format names.
func Formats() []string {
	return []string{FormatTable, FormatCSV, FormatJSON}
}

func header() []string {
	h := make([]string, len(metrics.Columns))
	for i, c := range metrics.Columns {
		h[i] = c.Title
	}
	return h
}

// TablePresenter prints an aligned console table.
type TablePresenter struct{}

// Render implements Presenter.
func (TablePresenter) Render(w io.Writer, records []metrics.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(header(), "\t"))
	for _, r := range records {
		fmt.Fprintln(tw, strings.Join(r.Row(), "\t"))
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	return nil
}

// CSVPresenter writes a header row and one row per record.
type CSVPresenter struct{}

// Render implements Presenter.
func (CSVPresenter) Render(w io.Writer, records []metrics.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", r.Identifier(), err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// JSONPresenter writes an array of flattened records.
type JSONPresenter struct {
	Indent bool
}

// Render implements Presenter.
func (p JSONPresenter) Render(w io.Writer, records []metrics.Record) error {
	flat := make([]map[string]string, 0, len(records))
	for _, r := range records {
		flat = append(flat, r.Flatten())
	}

	enc := json.NewEncoder(w)
	if p.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(flat); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
