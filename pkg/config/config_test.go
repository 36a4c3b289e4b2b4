package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "https://query2.finance.yahoo.com", cfg.Yahoo.APIBaseURL)
	assert.True(t, cfg.Yahoo.APIEnabled)
	assert.Equal(t, 2*time.Second, cfg.Yahoo.ScrapeDelay)
	assert.Equal(t, "price", cfg.Metrics.PEBasis)
	assert.Equal(t, "table", cfg.Output.Format)
	assert.Equal(t, DefaultTickers, cfg.Tickers)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Commentary.Enabled)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "roev.yaml")
	yaml := `
metrics:
  pe_basis: enterprise
output:
  format: csv
  path: out.csv
tickers: [acgl, ibm]
database:
  enabled: true
  dbname: history
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_PROVIDER", "openai")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "enterprise", cfg.Metrics.PEBasis)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "out.csv", cfg.Output.Path)
	assert.Equal(t, []string{"acgl", "ibm"}, cfg.Tickers)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "history", cfg.Database.DBName)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.Commentary.Provider)
	assert.Equal(t, "sk-test", cfg.Commentary.OpenAI.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Metrics: MetricsConfig{PEBasis: "price"},
			Output:  OutputConfig{Format: "json"},
			Yahoo:   YahooConfig{APIEnabled: true},
		}
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Metrics.PEBasis = "book"
	assert.ErrorContains(t, cfg.Validate(), "pe_basis")

	cfg = valid()
	cfg.Output.Format = "xml"
	assert.ErrorContains(t, cfg.Validate(), "output.format")

	cfg = valid()
	cfg.Yahoo.APIEnabled = false
	assert.ErrorContains(t, cfg.Validate(), "yahoo")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "roev", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=roev sslmode=disable", d.DSN())
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}
