package screen

import (
	"fmt"
	"sort"

	"github.com/user/roev/internal/metrics"
)

// Filter holds optional metric thresholds. A nil bound is not applied;
// a set bound rejects results whose metric is N/A.
type Filter struct {
	MinROEV            *float64 `json:"min_roev,omitempty"`
	MinRevenueGrowth   *float64 `json:"min_revenue_growth,omitempty"`
	MinNetProfitMargin *float64 `json:"min_net_profit_margin,omitempty"`
	MaxNetDebtToEBITDA *float64 `json:"max_net_debt_to_ebitda,omitempty"`
	MaxPERatio         *float64 `json:"max_pe_ratio,omitempty"`
}

// IsZero reports whether no bound is set.
func (f Filter) IsZero() bool {
	return f.MinROEV == nil && f.MinRevenueGrowth == nil && f.MinNetProfitMargin == nil &&
		f.MaxNetDebtToEBITDA == nil && f.MaxPERatio == nil
}

// Passes checks the record against every set bound.
func (f Filter) Passes(rec metrics.Record) bool {
	m := rec.Metrics
	return atLeast(m.ROEV, f.MinROEV) &&
		atLeast(m.RevenueGrowth, f.MinRevenueGrowth) &&
		atLeast(m.NetProfitMargin, f.MinNetProfitMargin) &&
		atMost(m.NetDebtToEBITDA, f.MaxNetDebtToEBITDA) &&
		atMost(m.PERatio, f.MaxPERatio)
}

func atLeast(v metrics.Value, bound *float64) bool {
	if bound == nil {
		return true
	}
	x, ok := v.Float64()
	return ok && x >= *bound
}

func atMost(v metrics.Value, bound *float64) bool {
	if bound == nil {
		return true
	}
	x, ok := v.Float64()
	return ok && x <= *bound
}

// Apply returns the results that pass, in their original order.
func (f Filter) Apply(results []Result) []Result {
	if f.IsZero() {
		return results
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if f.Passes(r.Record) {
			out = append(out, r)
		}
	}
	return out
}

// Rank sorts results by metric, highest first; P/E and net debt/EBITDA
// sort lowest first. A non-positive P/E is a loss, not a cheap price, so
// it ranks after every positive one. N/A values go last. The sort is
// stable.
func Rank(results []Result, by metrics.Metric) error {
	if !validMetric(by) {
		return fmt.Errorf("unknown metric %q", by)
	}
	ascending := by == metrics.MetricPERatio || by == metrics.MetricNetDebtToEBITDA

	tier := func(v float64, ok bool) int {
		switch {
		case !ok:
			return 2
		case by == metrics.MetricPERatio && v <= 0:
			return 1
		default:
			return 0
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, aok := results[i].Record.Metrics.Get(by).Float64()
		b, bok := results[j].Record.Metrics.Get(by).Float64()
		if ta, tb := tier(a, aok), tier(b, bok); ta != tb {
			return ta < tb
		}
		switch {
		case !aok:
			return false
		case ascending:
			return a < b
		default:
			return a > b
		}
	})
	return nil
}

func validMetric(m metrics.Metric) bool {
	for _, known := range metrics.AllMetrics {
		if m == known {
			return true
		}
	}
	return false
}
