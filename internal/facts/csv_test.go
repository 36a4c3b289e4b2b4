package facts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/roev/internal/metrics"
)

func TestParse(t *testing.T) {
	input := `Ticker,Period,Enterprise Value ($),Net Income,Revenue,Revenue Prior,EBITDA,Total Debt,Cash,Price,EPS
acgl,FY2023,1B,50M,200M,180M,60M,100M,20M,150,6
IBM,FY2023,"1,500,000",N/A,2.3M,,-,,,,
`
	facts, errs := NewCSVParser().Parse(strings.NewReader(input))
	assert.Empty(t, errs)
	require.Len(t, facts, 2)

	acgl := facts[0]
	assert.Equal(t, "ACGL", acgl.Identifier)
	assert.Equal(t, "FY2023", acgl.Period)
	ev, _ := acgl.EnterpriseValue.Float64()
	assert.Equal(t, 1e9, ev)
	prior, _ := acgl.RevenuePrior.Float64()
	assert.Equal(t, 1.8e8, prior)

	d := metrics.Compute(acgl)
	assert.Equal(t, "5.00", d.ROEV.String())
	assert.Equal(t, "11.11", d.RevenueGrowth.String())

	ibm := facts[1]
	ev, _ = ibm.EnterpriseValue.Float64()
	assert.Equal(t, 1.5e6, ev)
	assert.False(t, ibm.NetIncome.Available())
	assert.False(t, ibm.EBITDA.Available())
	rev, _ := ibm.RevenueCurrent.Float64()
	assert.Equal(t, 2.3e6, rev)
}

func TestParse_ReportsBadRowsAndCells(t *testing.T) {
	input := `symbol,ev,net_income
,1B,2M
ZS,abc,2M
`
	facts, errs := NewCSVParser().Parse(strings.NewReader(input))
	require.Len(t, facts, 1)
	require.Len(t, errs, 2)

	assert.ErrorIs(t, errs[0], ErrNoIdentifier)
	assert.Contains(t, errs[0].Error(), "row 1")

	assert.True(t, metrics.IsParseError(errs[1]))
	assert.Contains(t, errs[1].Error(), "row 2")

	assert.Equal(t, "ZS", facts[0].Identifier)
	assert.False(t, facts[0].EnterpriseValue.Available())
	ni, _ := facts[0].NetIncome.Float64()
	assert.Equal(t, 2e6, ni)
}

func TestParse_EmptyInput(t *testing.T) {
	facts, errs := NewCSVParser().Parse(strings.NewReader(""))
	assert.Nil(t, facts)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "failed to read CSV header")
}

func TestNormalizeColumnName(t *testing.T) {
	tests := map[string]string{
		"Enterprise Value ($)": "enterprisevalue",
		"net_income":           "netincome",
		"Net-Debt.":            "netdebt",
		" Ticker ":             "ticker",
		"Margin (%)":           "margin",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeColumnName(in), in)
	}
}

func TestValidateCSV(t *testing.T) {
	p := NewCSVParser()

	assert.NoError(t, p.ValidateCSV(strings.NewReader("Symbol,EV,Net Income\n")))

	err := p.ValidateCSV(strings.NewReader("Name,EV\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Symbol")

	err = p.ValidateCSV(strings.NewReader("Ticker,Sector\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recognised fact columns")

	assert.Error(t, p.ValidateCSV(strings.NewReader("")))
}

func TestSupportedColumns(t *testing.T) {
	cols := NewCSVParser().SupportedColumns()
	assert.Contains(t, cols, "EBITDA")
	assert.Len(t, cols, 11)
}
