package metrics

import (
	"fmt"
	"strings"
)

// Metric names a derived ratio.
type Metric string

const (
	MetricROEV            Metric = "roev"
	MetricRevenueGrowth   Metric = "revenue_growth"
	MetricNetProfitMargin Metric = "net_profit_margin"
	MetricNetDebtToEBITDA Metric = "net_debt_to_ebitda"
	MetricPERatio         Metric = "pe_ratio"
)

// AllMetrics lists the derived ratios in presentation order.
var AllMetrics = []Metric{
	MetricROEV,
	MetricRevenueGrowth,
	MetricNetProfitMargin,
	MetricNetDebtToEBITDA,
	MetricPERatio,
}

// PEBasis selects how the P/E ratio is derived.
type PEBasis string

const (
	// PEBasisPrice divides share price by earnings per share.
	PEBasisPrice PEBasis = "price"
	// PEBasisEnterprise divides enterprise value by net income.
	PEBasisEnterprise PEBasis = "enterprise"
)

// ParsePEBasis accepts "price" and "enterprise" (or "ev").
func ParsePEBasis(s string) (PEBasis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "price":
		return PEBasisPrice, nil
	case "enterprise", "ev":
		return PEBasisEnterprise, nil
	default:
		return "", fmt.Errorf("unknown P/E basis: %s", s)
	}
}

// DerivedMetrics holds unrounded ratios. Percentages are already
// multiplied by 100. Reasons explains every NA field.
type DerivedMetrics struct {
	ROEV            Value `json:"roev"`
	RevenueGrowth   Value `json:"revenue_growth"`
	NetProfitMargin Value `json:"net_profit_margin"`
	NetDebtToEBITDA Value `json:"net_debt_to_ebitda"`
	PERatio         Value `json:"pe_ratio"`

	Reasons map[Metric]error `json:"-"`
}

// Get returns the value for m.
func (d DerivedMetrics) Get(m Metric) Value {
	switch m {
	case MetricROEV:
		return d.ROEV
	case MetricRevenueGrowth:
		return d.RevenueGrowth
	case MetricNetProfitMargin:
		return d.NetProfitMargin
	case MetricNetDebtToEBITDA:
		return d.NetDebtToEBITDA
	case MetricPERatio:
		return d.PERatio
	}
	return NA
}

// Engine computes derived metrics. The zero Engine uses PEBasisPrice.
// It holds no state between calls and is safe for concurrent use.
type Engine struct {
	PEBasis PEBasis
}

// NewEngine returns an engine with the given P/E basis.
func NewEngine(basis PEBasis) Engine {
	return Engine{PEBasis: basis}
}

// Compute derives every metric it can from f. It never fails: each
// metric whose inputs are missing or unusable is NA, with the cause
// recorded in Reasons.
func Compute(f FinancialFacts) DerivedMetrics {
	return Engine{}.Compute(f)
}

// Compute derives every metric it can from f.
func (e Engine) Compute(f FinancialFacts) DerivedMetrics {
	d := DerivedMetrics{Reasons: map[Metric]error{}}

	d.ROEV = d.ratio(MetricROEV,
		operand{FieldNetIncome, f.NetIncome},
		operand{FieldEnterpriseValue, f.EnterpriseValue},
		positive, 100)

	d.NetProfitMargin = d.ratio(MetricNetProfitMargin,
		operand{FieldNetIncome, f.NetIncome},
		operand{FieldRevenueCurrent, f.RevenueCurrent},
		nonZero, 100)

	growth := d.ratio(MetricRevenueGrowth,
		operand{FieldRevenueCurrent, f.RevenueCurrent},
		operand{FieldRevenuePrior, f.RevenuePrior},
		nonZero, 1)
	if g, ok := growth.Float64(); ok {
		growth = Of((g - 1) * 100)
	}
	d.RevenueGrowth = growth

	// Debt and cash read as zero when absent.
	netDebt := Of(f.TotalDebt.OrZero() - f.Cash.OrZero())
	d.NetDebtToEBITDA = d.ratio(MetricNetDebtToEBITDA,
		operand{"net_debt", netDebt},
		operand{FieldEBITDA, f.EBITDA},
		nonZero, 1)

	if e.PEBasis == PEBasisEnterprise {
		d.PERatio = d.ratio(MetricPERatio,
			operand{FieldEnterpriseValue, f.EnterpriseValue},
			operand{FieldNetIncome, f.NetIncome},
			nonZero, 1)
	} else {
		d.PERatio = d.ratio(MetricPERatio,
			operand{FieldPrice, f.Price},
			operand{FieldEPS, f.EPS},
			nonZero, 1)
	}

	return d
}

type operand struct {
	field string
	value Value
}

type denominatorRule func(float64) bool

func positive(f float64) bool { return f > 0 }

func nonZero(f float64) bool { return f != 0 }

// ratio returns num/den*scale, or NA with the reason recorded.
func (d *DerivedMetrics) ratio(m Metric, num, den operand, usable denominatorRule, scale float64) Value {
	n, ok := num.value.Float64()
	if !ok {
		d.Reasons[m] = &MissingInputError{Field: num.field}
		return NA
	}
	dv, ok := den.value.Float64()
	if !ok {
		d.Reasons[m] = &MissingInputError{Field: den.field}
		return NA
	}
	if !usable(dv) {
		d.Reasons[m] = &UnusableInputError{Field: den.field, Value: dv}
		return NA
	}

	v := Of(n / dv * scale)
	if !v.Available() {
		d.Reasons[m] = &UnusableInputError{Field: den.field, Value: dv}
	}
	return v
}
