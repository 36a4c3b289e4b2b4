package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/user/roev/internal/common"
	"github.com/user/roev/internal/metrics"
)

// Scraper reads the key-statistics page.
type Scraper struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *common.Logger
	backoff   time.Duration
}

// NewScraper creates a key-statistics scraper. Requests are spaced at
// least scrapeDelay apart; anything under a second is raised to one.
func NewScraper(baseURL string, scrapeDelay time.Duration, logger *common.Logger) *Scraper {
	if scrapeDelay < time.Second {
		scrapeDelay = time.Second
	}
	if baseURL == "" {
		baseURL = DefaultPageBaseURL
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Scraper{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: DefaultUserAgent,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(scrapeDelay), 1),
		logger:  logger,
		backoff: 5 * time.Second,
	}
}

// KeyStatistics maps a row label, as shown on the page, to its raw cell
// text ("2.41T", "N/A", "1,234.5").
type KeyStatistics map[string]string

// Lookup finds the value whose label starts with prefix, ignoring case
// and footnote markers. Yahoo decorates labels with periods such as
// "(ttm)" and superscript note numbers.
func (k KeyStatistics) Lookup(prefix string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(prefix))
	for label, value := range k {
		if strings.HasPrefix(strings.ToLower(label), want) {
			return value, true
		}
	}
	return "", false
}

// EnterpriseValue returns the raw enterprise value cell.
func (k KeyStatistics) EnterpriseValue() (string, bool) {
	v, ok := k.Raw()[metrics.FieldEnterpriseValue]
	if !ok {
		return "", false
	}
	return v.(string), true
}

// statisticFields maps key-statistics labels to fact fields. "Enterprise
// Value/Revenue" would also match "Enterprise Value", so longer labels
// come first and Facts stops at the first match per field.
var statisticFields = []struct {
	label string
	field string
}{
	{"Enterprise Value/", ""},
	{"Enterprise Value", metrics.FieldEnterpriseValue},
	{"Net Income Avi to Common", metrics.FieldNetIncome},
	{"Revenue (ttm)", metrics.FieldRevenueCurrent},
	{"EBITDA", metrics.FieldEBITDA},
	{"Total Debt (mrq)", metrics.FieldTotalDebt},
	{"Total Cash (mrq)", metrics.FieldCash},
	{"Diluted EPS", metrics.FieldEPS},
}

// Raw returns the statistics keyed by fact field, ready for
// metrics.FactsFromRaw.
func (k KeyStatistics) Raw() map[string]any {
	raw := make(map[string]any)
	for label, value := range k {
		lower := strings.ToLower(label)
		for _, sf := range statisticFields {
			if !strings.HasPrefix(lower, strings.ToLower(sf.label)) {
				continue
			}
			if sf.field != "" {
				raw[sf.field] = value
			}
			break
		}
	}
	return raw
}

// FetchKeyStatistics fetches and parses the key-statistics table rows.
func (s *Scraper) FetchKeyStatistics(ctx context.Context, symbol string) (KeyStatistics, error) {
	symbol = NormalizeSymbol(symbol)
	pageURL := fmt.Sprintf("%s/quote/%s/key-statistics", s.baseURL, url.PathEscape(symbol))

	start := time.Now()
	resp, err := fetch(ctx, s.client, s.limiter, s.backoff, pageURL, func(req *http.Request) {
		// Set headers to mimic browser
		req.Header.Set("User-Agent", s.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")
		req.Header.Set("Cache-Control", "no-cache")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo returned status %d for symbol %s", resp.StatusCode, symbol)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	stats := ParseKeyStatistics(doc)

	s.logger.Debug().Str("ticker", symbol).Int("rows", len(stats)).Dur("elapsed", time.Since(start)).Msg("Yahoo key-statistics scraped")

	return stats, nil
}

// ParseKeyStatistics reads every table row with at least two cells: the
// first cell is the label, the second the value.
func ParseKeyStatistics(doc *goquery.Document) KeyStatistics {
	stats := make(KeyStatistics)

	doc.Find("tr").Each(func(i int, sel *goquery.Selection) {
		cells := sel.Find("td")
		if cells.Length() < 2 {
			return
		}

		label := strings.Join(strings.Fields(cells.Eq(0).Text()), " ")
		value := strings.TrimSpace(cells.Eq(1).Text())
		if label == "" {
			return
		}
		// First occurrence wins; the valuation table repeats labels per quarter.
		if _, seen := stats[label]; !seen {
			stats[label] = value
		}
	})

	return stats
}
