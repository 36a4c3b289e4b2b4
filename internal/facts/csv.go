package facts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/user/roev/internal/metrics"
)

// ErrNoIdentifier is reported for rows without a ticker.
var ErrNoIdentifier = errors.New("no identifier found")

// identifierColumns are the normalized headers accepted as the ticker column.
var identifierColumns = []string{"symbol", "ticker", "code", "identifier", "stock"}

// CSVParser parses flat files of raw financial facts, one entity per row.
type CSVParser struct{}

// NewCSVParser creates a new CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads every row into FinancialFacts. Rows that cannot be
// attributed to an entity are skipped; cells that fail to parse leave
// their field N/A. Both are reported in the returned errors, with the
// 1-based data row they came from. A header that cannot be read is
// returned as the only error.
func (p *CSVParser) Parse(reader io.Reader) ([]metrics.FinancialFacts, []error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	// Read header
	header, err := csvReader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read CSV header: %w", err)}
	}

	var (
		facts []metrics.FinancialFacts
		errs  []error
	)

	for row := 1; ; row++ {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: failed to read CSV row: %w", row, err))
			continue
		}

		f, rowErrs := parseRow(header, record)
		for _, e := range rowErrs {
			errs = append(errs, fmt.Errorf("row %d: %w", row, e))
		}
		if f == nil {
			continue
		}
		facts = append(facts, *f)
	}

	return facts, errs
}

// parseRow maps one record onto facts. A nil result means the row was
// skipped.
func parseRow(header, record []string) (*metrics.FinancialFacts, []error) {
	raw := make(map[string]any, len(header))
	var identifier, period string

	for i, col := range header {
		if i >= len(record) {
			break
		}
		cell := strings.TrimSpace(record[i])
		name := normalizeColumnName(col)

		switch {
		case isIdentifierColumn(name):
			if identifier == "" {
				identifier = cell
			}
		case name == "period" || name == "fiscalyear" || name == "year":
			period = cell
		default:
			raw[col] = cell
		}
	}

	if strings.TrimSpace(identifier) == "" {
		return nil, []error{ErrNoIdentifier}
	}

	f, errs := metrics.FactsFromRaw(identifier, raw)
	f.Period = period
	return &f, errs
}

func isIdentifierColumn(name string) bool {
	for _, c := range identifierColumns {
		if name == c {
			return true
		}
	}
	return false
}

// normalizeColumnName normalizes a column name for matching.
func normalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, ".", "")
	name = strings.ReplaceAll(name, "(", "")
	name = strings.ReplaceAll(name, ")", "")
	name = strings.ReplaceAll(name, "%", "")
	name = strings.ReplaceAll(name, "$", "")
	return name
}

// ValidateCSV validates a CSV file before parsing.
func (p *CSVParser) ValidateCSV(reader io.Reader) error {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	hasIdentifier := false
	known := 0
	for _, col := range header {
		name := normalizeColumnName(col)
		if isIdentifierColumn(name) {
			hasIdentifier = true
			continue
		}
		if metrics.FieldFor(col) != "" {
			known++
		}
	}

	if !hasIdentifier {
		return fmt.Errorf("CSV must contain at least one of: Symbol, Ticker, Code")
	}
	if known == 0 {
		return fmt.Errorf("CSV has no recognised fact columns; see supported columns")
	}

	return nil
}

// SupportedColumns returns a list of supported column names.
func (p *CSVParser) SupportedColumns() []string {
	return []string{
		"Symbol / Ticker / Code",
		"Period / Fiscal Year",
		"Enterprise Value / EV",
		"Net Income / Net Income to Common",
		"Revenue / Total Revenue / Revenue Current",
		"Revenue Prior / Prior Revenue / Revenue Last Year",
		"EBITDA",
		"Total Debt / Debt",
		"Cash / Total Cash",
		"Price / Current Price",
		"EPS / Trailing EPS / Diluted EPS",
	}
}
