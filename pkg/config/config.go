// Package config provides configuration management for the RoEV screener.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Yahoo      YahooConfig      `mapstructure:"yahoo"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Output     OutputConfig     `mapstructure:"output"`
	Tickers    []string         `mapstructure:"tickers"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Commentary CommentaryConfig `mapstructure:"commentary"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// YahooConfig holds Yahoo Finance acquisition settings.
type YahooConfig struct {
	APIBaseURL      string        `mapstructure:"api_base_url"`
	PageBaseURL     string        `mapstructure:"page_base_url"`
	APIEnabled      bool          `mapstructure:"api_enabled"`
	ScrapeEnabled   bool          `mapstructure:"scrape_enabled"`
	PreferScrapedEV bool          `mapstructure:"prefer_scraped_ev"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second
	ScrapeDelay     time.Duration `mapstructure:"scrape_delay"`
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// MetricsConfig holds metric engine settings.
type MetricsConfig struct {
	PEBasis string `mapstructure:"pe_basis"` // price or enterprise
}

// OutputConfig holds presentation settings.
type OutputConfig struct {
	Format string `mapstructure:"format"` // table, csv, json
	Path   string `mapstructure:"path"`   // empty means stdout
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the database connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CommentaryConfig holds LLM commentary configuration.
type CommentaryConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Provider string       `mapstructure:"provider"` // ollama, openai, gemini
	Ollama   OllamaConfig `mapstructure:"ollama"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
}

// OllamaConfig holds Ollama-specific configuration.
type OllamaConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// DefaultTickers is the watch list screened when none is given.
var DefaultTickers = []string{"IONQ", "GOOG", "UBER", "RDDT", "IBM", "INTC", "ZS", "NET", "DDOG"}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists (don't error if not found)
	envFiles := []string{".env", ".env.local"}
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", envFile, err)
			}
		}
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else {
		// Look for config in default locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
			}
		}
	}

	// Read from environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind environment variables
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	// Yahoo defaults
	v.SetDefault("yahoo.api_base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("yahoo.page_base_url", "https://finance.yahoo.com")
	v.SetDefault("yahoo.api_enabled", true)
	v.SetDefault("yahoo.scrape_enabled", true)
	v.SetDefault("yahoo.prefer_scraped_ev", false)
	v.SetDefault("yahoo.rate_limit", 2.0)
	v.SetDefault("yahoo.scrape_delay", "2s")
	v.SetDefault("yahoo.timeout", "30s")
	v.SetDefault("yahoo.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	// Metrics defaults
	v.SetDefault("metrics.pe_basis", "price")

	// Output defaults
	v.SetDefault("output.format", "table")
	v.SetDefault("output.path", "")

	v.SetDefault("tickers", DefaultTickers)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "roev")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	// Commentary defaults
	v.SetDefault("commentary.enabled", false)
	v.SetDefault("commentary.provider", "ollama")
	v.SetDefault("commentary.ollama.url", "http://localhost:11434")
	v.SetDefault("commentary.ollama.model", "llama3")
	v.SetDefault("commentary.openai.model", "gpt-4o-mini")
	v.SetDefault("commentary.gemini.model", "gemini-1.5-flash")
}

// bindEnvVars binds environment variables to config keys.
func bindEnvVars(v *viper.Viper) {
	// App
	_ = v.BindEnv("app.env", "APP_ENV")
	_ = v.BindEnv("app.log_level", "LOG_LEVEL")

	// Yahoo
	_ = v.BindEnv("yahoo.api_base_url", "YAHOO_BASE_URL")
	_ = v.BindEnv("yahoo.page_base_url", "YAHOO_PAGE_URL")
	_ = v.BindEnv("yahoo.rate_limit", "YAHOO_RATE_LIMIT")
	_ = v.BindEnv("yahoo.scrape_enabled", "YAHOO_SCRAPE_ENABLED")
	_ = v.BindEnv("yahoo.prefer_scraped_ev", "YAHOO_PREFER_SCRAPED_EV")

	// Metrics
	_ = v.BindEnv("metrics.pe_basis", "PE_BASIS")

	// Output
	_ = v.BindEnv("output.format", "OUTPUT_FORMAT")
	_ = v.BindEnv("output.path", "OUTPUT_PATH")

	// Database
	_ = v.BindEnv("database.enabled", "DB_ENABLED")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.dbname", "DB_NAME")
	_ = v.BindEnv("database.sslmode", "DB_SSLMODE")

	// Server
	_ = v.BindEnv("server.port", "SERVER_PORT")

	// Commentary
	_ = v.BindEnv("commentary.enabled", "COMMENTARY_ENABLED")
	_ = v.BindEnv("commentary.provider", "LLM_PROVIDER")
	_ = v.BindEnv("commentary.ollama.url", "OLLAMA_URL")
	_ = v.BindEnv("commentary.ollama.model", "OLLAMA_MODEL")
	_ = v.BindEnv("commentary.openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("commentary.openai.model", "OPENAI_MODEL")
	_ = v.BindEnv("commentary.gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("commentary.gemini.model", "GEMINI_MODEL")
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Metrics.PEBasis) {
	case "price", "enterprise", "ev":
	default:
		return fmt.Errorf("invalid metrics.pe_basis %q (want price or enterprise)", c.Metrics.PEBasis)
	}

	switch strings.ToLower(c.Output.Format) {
	case "table", "csv", "json":
	default:
		return fmt.Errorf("invalid output.format %q (want table, csv or json)", c.Output.Format)
	}

	if !c.Yahoo.APIEnabled && !c.Yahoo.ScrapeEnabled {
		return fmt.Errorf("at least one of yahoo.api_enabled and yahoo.scrape_enabled must be set")
	}

	return nil
}

// IsDevelopment returns true if the app is in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction returns true if the app is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
