package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactsFromRaw(t *testing.T) {
	raw := map[string]any{
		"Enterprise Value":  "1.00B",
		"netIncomeToCommon": 5e7,
		"Total Revenue":     "200,000,000",
		"revenue_prior":     "180M",
		"EBITDA":            "60M",
		"Total Debt":        "100M",
		"total_cash":        "20M",
		"sector":            "Insurance",
	}

	f, errs := FactsFromRaw(" acgl ", raw)
	require.Empty(t, errs)
	assert.Equal(t, "ACGL", f.Identifier)

	d := Compute(f)
	assert.Equal(t, "5.00", d.ROEV.String())
	assert.Equal(t, "11.11", d.RevenueGrowth.String())
	assert.Equal(t, "25.00", d.NetProfitMargin.String())
	assert.Equal(t, "1.33", d.NetDebtToEBITDA.String())
}

func TestFactsFromRaw_ParseErrorOnlyAffectsField(t *testing.T) {
	raw := map[string]any{
		"enterprise_value": "1.2.3B",
		"net_income":       "50M",
		"revenue":          "200M",
		"ebitda":           "N/A",
		"price":            "",
	}

	f, errs := FactsFromRaw("BAD", raw)
	require.Len(t, errs, 1)
	assert.True(t, IsParseError(errs[0]))
	assert.Contains(t, errs[0].Error(), FieldEnterpriseValue)

	assert.False(t, f.EnterpriseValue.Available())
	assert.False(t, f.EBITDA.Available())
	assert.False(t, f.Price.Available())
	assert.True(t, f.NetIncome.Available())

	d := Compute(f)
	assert.False(t, d.ROEV.Available())
	assert.Equal(t, "25.00", d.NetProfitMargin.String())
}

func TestFieldFor(t *testing.T) {
	assert.Equal(t, FieldEnterpriseValue, FieldFor("Enterprise-Value"))
	assert.Equal(t, FieldEPS, FieldFor("Diluted EPS"))
	assert.Equal(t, FieldPrice, FieldFor("regularMarketPrice"))
	assert.Equal(t, "", FieldFor("sector"))
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate(FinancialFacts{}), ErrMissingIdentifier)
	assert.NoError(t, Validate(FinancialFacts{Identifier: "GOOG"}))
}
