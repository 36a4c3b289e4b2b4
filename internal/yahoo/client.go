// Package yahoo fetches the raw facts behind the enterprise-value
// metrics from Yahoo Finance: the quoteSummary JSON API and the
// key-statistics page.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/roev/internal/common"
	"github.com/user/roev/internal/metrics"
)

const (
	DefaultAPIBaseURL  = "https://query2.finance.yahoo.com"
	DefaultPageBaseURL = "https://finance.yahoo.com"
	DefaultTimeout     = 30 * time.Second
	DefaultRateLimit   = 2 // requests per second
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxRetries = 3
)

var summaryModules = []string{
	"price",
	"financialData",
	"defaultKeyStatistics",
	"incomeStatementHistory",
}

// ErrNotFound is returned when Yahoo has no data for a symbol.
var ErrNotFound = errors.New("symbol not found")

// Client reads the quoteSummary API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	backoff    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the request rate.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = newLimiter(requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithUserAgent overrides the browser User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRetryBackoff sets the base wait after a 429 response.
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = d
	}
}

// NewClient creates a quoteSummary client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultAPIBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: newLimiter(DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		backoff: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// rawValue is Yahoo's {"raw": 1.0, "fmt": "1.00"} pair. Missing values
// arrive as {}.
type rawValue struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

func (r rawValue) value() metrics.Value {
	return metrics.Ptr(r.Raw)
}

type incomeStatement struct {
	EndDate      rawValue `json:"endDate"`
	TotalRevenue rawValue `json:"totalRevenue"`
	NetIncome    rawValue `json:"netIncome"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				RegularMarketPrice rawValue `json:"regularMarketPrice"`
				Currency           string   `json:"currency"`
				ShortName          string   `json:"shortName"`
			} `json:"price"`
			FinancialData struct {
				CurrentPrice rawValue `json:"currentPrice"`
				TotalRevenue rawValue `json:"totalRevenue"`
				EBITDA       rawValue `json:"ebitda"`
				TotalDebt    rawValue `json:"totalDebt"`
				TotalCash    rawValue `json:"totalCash"`
			} `json:"financialData"`
			DefaultKeyStatistics struct {
				EnterpriseValue   rawValue `json:"enterpriseValue"`
				NetIncomeToCommon rawValue `json:"netIncomeToCommon"`
				TrailingEPS       rawValue `json:"trailingEps"`
			} `json:"defaultKeyStatistics"`
			IncomeStatementHistory struct {
				IncomeStatementHistory []incomeStatement `json:"incomeStatementHistory"`
			} `json:"incomeStatementHistory"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// AnnualFigure is one fiscal year from the income statement history.
type AnnualFigure struct {
	EndDate   string
	Revenue   metrics.Value
	NetIncome metrics.Value
}

// Summary is the subset of quoteSummary the metrics need.
type Summary struct {
	Symbol            string
	Name              string
	Currency          string
	EnterpriseValue   metrics.Value
	NetIncomeToCommon metrics.Value
	TotalRevenue      metrics.Value
	EBITDA            metrics.Value
	TotalDebt         metrics.Value
	TotalCash         metrics.Value
	Price             metrics.Value
	TrailingEPS       metrics.Value
	// Most recent first.
	Annual []AnnualFigure
}

// Facts converts the summary into engine input. When the two latest
// annual statements both carry revenue, revenue and net income come from
// the latest statement so growth and margin cover the same fiscal year;
// otherwise the trailing figures are used and prior revenue stays NA.
func (s *Summary) Facts() metrics.FinancialFacts {
	f := metrics.FinancialFacts{
		Identifier:      s.Symbol,
		EnterpriseValue: s.EnterpriseValue,
		NetIncome:       s.NetIncomeToCommon,
		RevenueCurrent:  s.TotalRevenue,
		EBITDA:          s.EBITDA,
		TotalDebt:       s.TotalDebt,
		Cash:            s.TotalCash,
		Price:           s.Price,
		EPS:             s.TrailingEPS,
	}

	if len(s.Annual) == 0 {
		return f
	}

	latest := s.Annual[0]
	f.Period = latest.EndDate
	if len(s.Annual) > 1 && latest.Revenue.Available() && s.Annual[1].Revenue.Available() {
		f.RevenueCurrent = latest.Revenue
		f.RevenuePrior = s.Annual[1].Revenue
		if latest.NetIncome.Available() {
			f.NetIncome = latest.NetIncome
		}
		return f
	}

	if !f.RevenueCurrent.Available() {
		f.RevenueCurrent = latest.Revenue
	}
	if !f.NetIncome.Available() {
		f.NetIncome = latest.NetIncome
	}
	return f
}

// Summary fetches the quoteSummary modules for symbol.
func (c *Client) Summary(ctx context.Context, symbol string) (*Summary, error) {
	symbol = NormalizeSymbol(symbol)

	reqURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(strings.Join(summaryModules, ",")))

	start := time.Now()
	resp, err := fetch(ctx, c.httpClient, c.limiter, c.backoff, reqURL, func(req *http.Request) {
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
	})
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error().Err(err).Str("ticker", symbol).Dur("elapsed", elapsed).Msg("Yahoo quoteSummary request failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Str("ticker", symbol).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Yahoo quoteSummary non-OK response")
		return nil, fmt.Errorf("yahoo quoteSummary returned status %d for symbol %s", resp.StatusCode, symbol)
	}

	var apiResp quoteSummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if e := apiResp.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("yahoo quoteSummary error for %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(apiResp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}

	r := apiResp.QuoteSummary.Result[0]
	s := &Summary{
		Symbol:            symbol,
		Name:              r.Price.ShortName,
		Currency:          r.Price.Currency,
		EnterpriseValue:   r.DefaultKeyStatistics.EnterpriseValue.value(),
		NetIncomeToCommon: r.DefaultKeyStatistics.NetIncomeToCommon.value(),
		TotalRevenue:      r.FinancialData.TotalRevenue.value(),
		EBITDA:            r.FinancialData.EBITDA.value(),
		TotalDebt:         r.FinancialData.TotalDebt.value(),
		TotalCash:         r.FinancialData.TotalCash.value(),
		Price:             r.Price.RegularMarketPrice.value(),
		TrailingEPS:       r.DefaultKeyStatistics.TrailingEPS.value(),
	}
	if !s.Price.Available() {
		s.Price = r.FinancialData.CurrentPrice.value()
	}

	for _, st := range r.IncomeStatementHistory.IncomeStatementHistory {
		s.Annual = append(s.Annual, AnnualFigure{
			EndDate:   st.EndDate.Fmt,
			Revenue:   st.TotalRevenue.value(),
			NetIncome: st.NetIncome.value(),
		})
	}

	c.logger.Info().Str("ticker", symbol).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Yahoo quoteSummary call")

	return s, nil
}

// fetch performs a rate-limited GET, retrying 429 responses with a
// linear backoff. The caller owns the returned body.
func fetch(ctx context.Context, client *http.Client, limiter *rate.Limiter, backoff time.Duration, reqURL string, decorate func(*http.Request)) (*http.Response, error) {
	var resp *http.Response

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		decorate(req)

		resp, err = client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt == maxRetries-1 {
			break
		}

		resp.Body.Close()
		wait := time.Duration(attempt+1) * backoff
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return resp, nil
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
