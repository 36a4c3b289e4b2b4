package metrics

import (
	"fmt"
)

// Record pairs one entity's facts with the metrics derived from them.
type Record struct {
	Facts   FinancialFacts `json:"facts"`
	Metrics DerivedMetrics `json:"metrics"`
}

// Identifier returns the entity symbol.
func (r Record) Identifier() string {
	return r.Facts.Identifier
}

// Column describes one field of a flattened record.
type Column struct {
	Key   string
	Title string
}

// Columns is the fixed field order of a flattened record.
var Columns = []Column{
	{FieldIdentifier, "Ticker"},
	{FieldEnterpriseValue, "Enterprise Value"},
	{FieldNetIncome, "Net Income"},
	{FieldRevenueCurrent, "Revenue"},
	{string(MetricROEV), "RoEV (%)"},
	{string(MetricRevenueGrowth), "Revenue Growth (%)"},
	{string(MetricNetProfitMargin), "Net Profit Margin (%)"},
	{string(MetricNetDebtToEBITDA), "Net Debt/EBITDA"},
	{string(MetricPERatio), "P/E"},
}

// Flatten returns the presentation mapping of field name to text.
// Facts are shown with magnitude markers; metrics are rounded to two
// decimals. Unavailable fields read "N/A".
func (r Record) Flatten() map[string]string {
	return map[string]string{
		FieldIdentifier:               r.Facts.Identifier,
		FieldEnterpriseValue:          r.Facts.EnterpriseValue.Compact(),
		FieldNetIncome:                r.Facts.NetIncome.Compact(),
		FieldRevenueCurrent:           r.Facts.RevenueCurrent.Compact(),
		string(MetricROEV):            r.Metrics.ROEV.String(),
		string(MetricRevenueGrowth):   r.Metrics.RevenueGrowth.String(),
		string(MetricNetProfitMargin): r.Metrics.NetProfitMargin.String(),
		string(MetricNetDebtToEBITDA): r.Metrics.NetDebtToEBITDA.String(),
		string(MetricPERatio):         r.Metrics.PERatio.String(),
	}
}

// Row returns Flatten in Columns order.
func (r Record) Row() []string {
	flat := r.Flatten()
	row := make([]string, len(Columns))
	for i, c := range Columns {
		row[i] = flat[c.Key]
	}
	return row
}

// Values returns the rounded metrics keyed by name, for machine output.
func (r Record) Values() map[string]Value {
	out := make(map[string]Value, len(AllMetrics))
	for _, m := range AllMetrics {
		out[string(m)] = r.Metrics.Get(m).Round(2)
	}
	return out
}

// ComputeBatch computes a record for every valid facts entry. Invalid
// entries are rejected before the engine sees them and reported by
// position; they do not affect the others.
func ComputeBatch(e Engine, facts []FinancialFacts) ([]Record, []error) {
	records := make([]Record, 0, len(facts))
	var errs []error

	for i, f := range facts {
		if err := Validate(f); err != nil {
			errs = append(errs, fmt.Errorf("facts[%d]: %w", i, err))
			continue
		}
		records = append(records, Record{Facts: f, Metrics: e.Compute(f)})
	}

	return records, errs
}

// Index keys records by identifier. Later records win on duplicates.
func Index(records []Record) map[string]Record {
	out := make(map[string]Record, len(records))
	for _, r := range records {
		out[r.Identifier()] = r
	}
	return out
}
