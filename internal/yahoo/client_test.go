package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/roev/internal/metrics"
)

func TestSummary_ParsesResponse(t *testing.T) {
	var capturedPath, capturedModules, capturedUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedModules = r.URL.Query().Get("modules")
		capturedUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(summaryJSON))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))
	s, err := client.Summary(context.Background(), " acgl ")
	require.NoError(t, err)

	assert.Equal(t, "/v10/finance/quoteSummary/ACGL", capturedPath)
	assert.Equal(t, "price,financialData,defaultKeyStatistics,incomeStatementHistory", capturedModules)
	assert.Equal(t, DefaultUserAgent, capturedUA)

	assert.Equal(t, "ACGL", s.Symbol)
	assert.Equal(t, "Arch Capital Group Ltd.", s.Name)
	assert.Equal(t, "USD", s.Currency)
	ev, ok := s.EnterpriseValue.Float64()
	require.True(t, ok)
	assert.Equal(t, 1e9, ev)
	assert.False(t, s.EBITDA.Available(), "empty {} must read as not available")
	require.Len(t, s.Annual, 2)
	assert.Equal(t, "2022-12-31", s.Annual[1].EndDate)

	f := s.Facts()
	assert.Equal(t, "ACGL", f.Identifier)
	assert.Equal(t, "2023-12-31", f.Period)
	prior, ok := f.RevenuePrior.Float64()
	require.True(t, ok)
	assert.Equal(t, 1.8e8, prior)
	price, _ := f.Price.Float64()
	assert.Equal(t, 150.0, price)
}

func TestSummary_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.Summary(context.Background(), "IBM")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSummary_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.Summary(context.Background(), "ZZZZ")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSummary_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found"}}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.Summary(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Quote not found")
}

func TestSummary_RetriesTooManyRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(summaryJSON))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(0), WithRetryBackoff(time.Millisecond))
	_, err := client.Summary(context.Background(), "ACGL")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSummary_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(0), WithRetryBackoff(time.Millisecond))
	_, err := client.Summary(context.Background(), "ACGL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&calls))
}

func TestSummary_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(summaryJSON))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Summary(ctx, "ACGL")
	assert.Error(t, err)
}

func TestSummaryFacts_GrowthUsesConsecutiveStatements(t *testing.T) {
	s := Summary{
		Symbol:            "IONQ",
		NetIncomeToCommon: metrics.Of(-40),
		TotalRevenue:      metrics.Of(300),
		Annual: []AnnualFigure{
			{EndDate: "2024-12-31", Revenue: metrics.Of(250), NetIncome: metrics.Of(-25)},
			{EndDate: "2023-12-31", Revenue: metrics.Of(200), NetIncome: metrics.Of(-20)},
		},
	}

	f := s.Facts()
	assert.Equal(t, "2024-12-31", f.Period)
	current, _ := f.RevenueCurrent.Float64()
	assert.Equal(t, 250.0, current)
	prior, _ := f.RevenuePrior.Float64()
	assert.Equal(t, 200.0, prior)

	d := metrics.Compute(f)
	assert.Equal(t, "25.00", d.RevenueGrowth.String())
	assert.Equal(t, "-10.00", d.NetProfitMargin.String())
}

func TestSummaryFacts_TrailingWithoutStatementPair(t *testing.T) {
	s := Summary{
		Symbol:            "RDDT",
		NetIncomeToCommon: metrics.Of(-40),
		TotalRevenue:      metrics.Of(300),
		Annual: []AnnualFigure{
			{EndDate: "2024-12-31", Revenue: metrics.Of(250)},
			{EndDate: "2023-12-31", Revenue: metrics.NA},
		},
	}

	f := s.Facts()
	current, _ := f.RevenueCurrent.Float64()
	assert.Equal(t, 300.0, current)
	assert.False(t, f.RevenuePrior.Available())
	ni, _ := f.NetIncome.Float64()
	assert.Equal(t, -40.0, ni)
	assert.False(t, metrics.Compute(f).RevenueGrowth.Available())
}
