package yahoo

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/roev/internal/common"
	"github.com/user/roev/internal/magnitude"
	"github.com/user/roev/internal/metrics"
)

// Source names recorded on a Collection.
const (
	SourceAPI  = "yahoo_api"
	SourcePage = "yahoo_page"
)

// ErrNoData is returned when no source produced anything for a symbol.
var ErrNoData = errors.New("no data collected")

// Collection is what the collector gathered for one symbol.
type Collection struct {
	Facts    metrics.FinancialFacts
	Name     string
	Sources  []string
	Warnings []error
}

// Collector assembles FinancialFacts from the API and the statistics
// page. Either may be nil.
type Collector struct {
	client          *Client
	scraper         *Scraper
	logger          *common.Logger
	preferScrapedEV bool
}

// NewCollector creates a collector.
func NewCollector(client *Client, scraper *Scraper, logger *common.Logger) *Collector {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Collector{
		client:  client,
		scraper: scraper,
		logger:  logger,
	}
}

// PreferScrapedEV makes the page's enterprise value override the API's.
func (c *Collector) PreferScrapedEV(prefer bool) *Collector {
	c.preferScrapedEV = prefer
	return c
}

// Collect gathers facts for symbol. API values come first and page
// values fill the gaps. Partial data is normal; an error is returned
// only when every configured source failed.
func (c *Collector) Collect(ctx context.Context, symbol string) (*Collection, error) {
	symbol = NormalizeSymbol(symbol)
	col := &Collection{Facts: metrics.FinancialFacts{Identifier: symbol}}

	var failures []error

	if c.client != nil {
		summary, err := c.client.Summary(ctx, symbol)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", SourceAPI, err))
		} else {
			col.Facts = summary.Facts()
			col.Name = summary.Name
			col.Sources = append(col.Sources, SourceAPI)
		}
	}

	if c.scraper != nil {
		stats, err := c.scraper.FetchKeyStatistics(ctx, symbol)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", SourcePage, err))
		} else {
			scraped, parseErrs := metrics.FactsFromRaw(symbol, stats.Raw())
			for _, pe := range parseErrs {
				col.Warnings = append(col.Warnings, fmt.Errorf("%s: %w", SourcePage, pe))
			}
			merge(&col.Facts, scraped, c.preferScrapedEV)
			col.Sources = append(col.Sources, SourcePage)
		}
	}

	if len(col.Sources) == 0 {
		if len(failures) == 0 {
			return col, fmt.Errorf("%w: %s: no sources configured", ErrNoData, symbol)
		}
		return col, fmt.Errorf("%w: %s: %w", ErrNoData, symbol, errors.Join(failures...))
	}
	col.Warnings = append(col.Warnings, failures...)

	c.logger.Debug().
		Str("ticker", symbol).
		Strs("sources", col.Sources).
		Str("enterprise_value", col.Facts.EnterpriseValue.Compact()).
		Str("net_income", col.Facts.NetIncome.Compact()).
		Int("warnings", len(col.Warnings)).
		Msg("Collected facts")

	return col, nil
}

// merge fills NA fields of dst from src. With preferEV, src's enterprise
// value replaces dst's whenever src has one. Current and prior revenue
// are taken together from one source, so growth never pairs a trailing
// figure with an annual one.
func merge(dst *metrics.FinancialFacts, src metrics.FinancialFacts, preferEV bool) {
	fill := func(d *metrics.Value, s metrics.Value) {
		if !d.Available() && s.Available() {
			*d = s
		}
	}

	if preferEV && src.EnterpriseValue.Available() {
		dst.EnterpriseValue = src.EnterpriseValue
	}
	fill(&dst.EnterpriseValue, src.EnterpriseValue)
	fill(&dst.NetIncome, src.NetIncome)
	if !dst.RevenueCurrent.Available() && !dst.RevenuePrior.Available() {
		dst.RevenueCurrent = src.RevenueCurrent
		dst.RevenuePrior = src.RevenuePrior
	}
	fill(&dst.EBITDA, src.EBITDA)
	fill(&dst.TotalDebt, src.TotalDebt)
	fill(&dst.Cash, src.Cash)
	fill(&dst.Price, src.Price)
	fill(&dst.EPS, src.EPS)
}

// ScrapeEnterpriseValue returns only the page's enterprise value, parsed.
func (c *Collector) ScrapeEnterpriseValue(ctx context.Context, symbol string) (metrics.Value, error) {
	if c.scraper == nil {
		return metrics.NA, fmt.Errorf("%w: page scraping disabled", ErrNoData)
	}
	stats, err := c.scraper.FetchKeyStatistics(ctx, symbol)
	if err != nil {
		return metrics.NA, err
	}
	raw, ok := stats.EnterpriseValue()
	if !ok {
		return metrics.NA, fmt.Errorf("%w: %s: enterprise value not on page", ErrNoData, NormalizeSymbol(symbol))
	}
	ev, err := magnitude.Parse(raw)
	if err != nil {
		return metrics.NA, err
	}
	return metrics.Of(ev), nil
}
