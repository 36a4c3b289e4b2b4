package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workedExample() FinancialFacts {
	return FinancialFacts{
		Identifier:      "ACGL",
		EnterpriseValue: Of(1e9),
		NetIncome:       Of(5e7),
		RevenueCurrent:  Of(2e8),
		RevenuePrior:    Of(1.8e8),
		EBITDA:          Of(6e7),
		TotalDebt:       Of(1e8),
		Cash:            Of(2e7),
	}
}

func rounded(t *testing.T, v Value) float64 {
	t.Helper()
	f, ok := v.Round(2).Float64()
	require.True(t, ok, "expected value to be available")
	return f
}

func TestCompute_WorkedExample(t *testing.T) {
	d := Compute(workedExample())

	assert.Equal(t, 5.00, rounded(t, d.ROEV))
	assert.Equal(t, 11.11, rounded(t, d.RevenueGrowth))
	assert.Equal(t, 25.00, rounded(t, d.NetProfitMargin))
	assert.Equal(t, 1.33, rounded(t, d.NetDebtToEBITDA))

	assert.False(t, d.PERatio.Available())
	assert.Len(t, d.Reasons, 1)
}

func TestCompute_KeepsUnroundedValues(t *testing.T) {
	d := Compute(workedExample())

	growth, ok := d.RevenueGrowth.Float64()
	require.True(t, ok)
	assert.InDelta(t, 11.111111, growth, 1e-6)
	assert.NotEqual(t, 11.11, growth)
}

func TestCompute_ROEVRequiresPositiveEnterpriseValue(t *testing.T) {
	for _, ev := range []float64{0, -1, -5e9} {
		f := workedExample()
		f.EnterpriseValue = Of(ev)

		d := Compute(f)
		assert.False(t, d.ROEV.Available(), "ev=%v", ev)
		assert.ErrorIs(t, d.Reasons[MetricROEV], ErrUnusableDenominator)

		// The rest of the record is unaffected.
		assert.True(t, d.NetProfitMargin.Available())
		assert.True(t, d.NetDebtToEBITDA.Available())
	}
}

func TestCompute_ZeroEBITDA(t *testing.T) {
	f := workedExample()
	f.EBITDA = Of(0)

	d := Compute(f)
	assert.False(t, d.NetDebtToEBITDA.Available())
	assert.True(t, d.ROEV.Available())
}

func TestCompute_MissingInputs(t *testing.T) {
	f := workedExample()
	f.NetIncome = NA

	d := Compute(f)
	assert.False(t, d.ROEV.Available())
	assert.False(t, d.NetProfitMargin.Available())
	assert.True(t, d.RevenueGrowth.Available())
	assert.True(t, d.NetDebtToEBITDA.Available())

	var missing *MissingInputError
	require.True(t, errors.As(d.Reasons[MetricROEV], &missing))
	assert.Equal(t, FieldNetIncome, missing.Field)
}

func TestCompute_ZeroRevenue(t *testing.T) {
	f := workedExample()
	f.RevenuePrior = Of(0)
	f.RevenueCurrent = Of(0)

	d := Compute(f)
	assert.False(t, d.RevenueGrowth.Available())
	assert.False(t, d.NetProfitMargin.Available())
}

func TestCompute_DebtAndCashDefaultToZero(t *testing.T) {
	f := FinancialFacts{Identifier: "X", EBITDA: Of(50), Cash: Of(100)}

	d := Compute(f)
	assert.Equal(t, -2.0, rounded(t, d.NetDebtToEBITDA))

	f.Cash = NA
	f.TotalDebt = NA
	d = Compute(f)
	assert.Equal(t, 0.0, rounded(t, d.NetDebtToEBITDA))
}

func TestCompute_NegativeNetIncome(t *testing.T) {
	f := workedExample()
	f.NetIncome = Of(-2.5e7)

	d := Compute(f)
	assert.Equal(t, -2.5, rounded(t, d.ROEV))
	assert.Equal(t, -12.5, rounded(t, d.NetProfitMargin))
}

func TestCompute_PEBasis(t *testing.T) {
	f := workedExample()
	f.Price = Of(150)
	f.EPS = Of(6)

	assert.Equal(t, 25.0, rounded(t, Compute(f).PERatio))
	assert.Equal(t, 20.0, rounded(t, NewEngine(PEBasisEnterprise).Compute(f).PERatio))

	f.EPS = Of(0)
	assert.False(t, Compute(f).PERatio.Available())

	f.NetIncome = Of(0)
	assert.False(t, NewEngine(PEBasisEnterprise).Compute(f).PERatio.Available())
}

func TestCompute_EmptyFacts(t *testing.T) {
	d := Compute(FinancialFacts{Identifier: "EMPTY"})
	for _, m := range AllMetrics {
		assert.False(t, d.Get(m).Available(), "metric %s", m)
		assert.Error(t, d.Reasons[m])
	}
}

func TestParsePEBasis(t *testing.T) {
	b, err := ParsePEBasis("")
	require.NoError(t, err)
	assert.Equal(t, PEBasisPrice, b)

	b, err = ParsePEBasis("EV")
	require.NoError(t, err)
	assert.Equal(t, PEBasisEnterprise, b)

	_, err = ParsePEBasis("forward")
	assert.Error(t, err)
}
