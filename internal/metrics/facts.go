package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/user/roev/internal/magnitude"
)

// Fact field names, as used in flat records and raw inputs.
const (
	FieldIdentifier      = "identifier"
	FieldPeriod          = "period"
	FieldEnterpriseValue = "enterprise_value"
	FieldNetIncome       = "net_income"
	FieldRevenueCurrent  = "revenue_current"
	FieldRevenuePrior    = "revenue_prior"
	FieldEBITDA          = "ebitda"
	FieldTotalDebt       = "total_debt"
	FieldCash            = "cash"
	FieldPrice           = "price"
	FieldEPS             = "eps"
)

// FinancialFacts are the raw figures for one entity and one period.
type FinancialFacts struct {
	Identifier      string `json:"identifier"`
	Period          string `json:"period,omitempty"`
	EnterpriseValue Value  `json:"enterprise_value"`
	NetIncome       Value  `json:"net_income"`
	RevenueCurrent  Value  `json:"revenue_current"`
	RevenuePrior    Value  `json:"revenue_prior"`
	EBITDA          Value  `json:"ebitda"`
	TotalDebt       Value  `json:"total_debt"`
	Cash            Value  `json:"cash"`
	Price           Value  `json:"price"`
	EPS             Value  `json:"eps"`
}

// Validate rejects facts that cannot be attributed to an entity.
func Validate(f FinancialFacts) error {
	if strings.TrimSpace(f.Identifier) == "" {
		return ErrMissingIdentifier
	}
	return nil
}

// aliases maps accepted input keys to fact fields. Keys are compared
// after normalizeKey.
var aliases = map[string]string{
	"enterprisevalue":      FieldEnterpriseValue,
	"ev":                   FieldEnterpriseValue,
	"netincome":            FieldNetIncome,
	"netincometocommon":    FieldNetIncome,
	"netincomeavitocommon": FieldNetIncome,
	"revenuecurrent":       FieldRevenueCurrent,
	"revenue":              FieldRevenueCurrent,
	"totalrevenue":         FieldRevenueCurrent,
	"revenuettm":           FieldRevenueCurrent,
	"revenueprior":         FieldRevenuePrior,
	"priorrevenue":         FieldRevenuePrior,
	"revenuelastyear":      FieldRevenuePrior,
	"ebitda":               FieldEBITDA,
	"totaldebt":            FieldTotalDebt,
	"debt":                 FieldTotalDebt,
	"cash":                 FieldCash,
	"totalcash":            FieldCash,
	"price":                FieldPrice,
	"currentprice":         FieldPrice,
	"regularmarketprice":   FieldPrice,
	"eps":                  FieldEPS,
	"trailingeps":          FieldEPS,
	"dilutedeps":           FieldEPS,
}

// FieldFor resolves an input key (any casing, with spaces, underscores
// or punctuation) to a fact field name. It returns "" for unknown keys.
func FieldFor(key string) string {
	return aliases[normalizeKey(key)]
}

func normalizeKey(key string) string {
	key = strings.ToLower(key)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.', '(', ')', '%', '$', '/':
			return -1
		}
		return r
	}, key)
}

// FactsFromRaw builds facts from loosely typed inputs, such as decoded
// JSON or CSV cells. Values that fail to parse leave their field NA and
// are reported; the facts are built regardless. Unknown keys are ignored.
func FactsFromRaw(identifier string, raw map[string]any) (FinancialFacts, []error) {
	f := FinancialFacts{Identifier: strings.ToUpper(strings.TrimSpace(identifier))}
	var errs []error

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field := FieldFor(key)
		if field == "" {
			continue
		}

		val := raw[key]
		if isBlank(val) {
			continue
		}

		n, err := magnitude.Parse(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", f.Identifier, field, err))
			continue
		}
		f.set(field, Of(n))
	}

	return f, errs
}

// isBlank treats empty cells and explicit NA markers as absent rather
// than malformed.
func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		t := strings.TrimSpace(s)
		return t == "" || t == "-" || t == "--" || strings.EqualFold(t, magnitude.NotAvailable) || strings.EqualFold(t, "NA")
	}
	return false
}

func (f *FinancialFacts) set(field string, v Value) {
	switch field {
	case FieldEnterpriseValue:
		f.EnterpriseValue = v
	case FieldNetIncome:
		f.NetIncome = v
	case FieldRevenueCurrent:
		f.RevenueCurrent = v
	case FieldRevenuePrior:
		f.RevenuePrior = v
	case FieldEBITDA:
		f.EBITDA = v
	case FieldTotalDebt:
		f.TotalDebt = v
	case FieldCash:
		f.Cash = v
	case FieldPrice:
		f.Price = v
	case FieldEPS:
		f.EPS = v
	}
}

// IsParseError reports whether err came from the numeric normalizer.
func IsParseError(err error) bool {
	var pe *magnitude.ParseError
	return errors.As(err, &pe)
}
