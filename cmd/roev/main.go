// Package main is the entry point for the RoEV screener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/user/roev/internal/api"
	"github.com/user/roev/internal/commentary"
	"github.com/user/roev/internal/common"
	"github.com/user/roev/internal/facts"
	"github.com/user/roev/internal/metrics"
	"github.com/user/roev/internal/report"
	"github.com/user/roev/internal/screen"
	"github.com/user/roev/internal/storage"
	"github.com/user/roev/internal/yahoo"
	"github.com/user/roev/pkg/config"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	tickers := flag.String("tickers", "", "Comma separated tickers (default: configured watch list)")
	csvPath := flag.String("csv", "", "Compute metrics from a CSV of facts instead of fetching")
	format := flag.String("format", "", "Output format: table, csv or json")
	out := flag.String("out", "", "Output file (default: stdout; csv defaults to "+report.DefaultCSVPath+")")
	serve := flag.Bool("serve", false, "Start the HTTP API instead of running once")
	withCommentary := flag.Bool("commentary", false, "Ask the configured LLM for a note on each ticker")
	flag.Parse()

	if err := run(*configPath, *tickers, *csvPath, *format, *out, *serve, *withCommentary); err != nil {
		fmt.Fprintf(os.Stderr, "roev: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, tickers, csvPath, format, out string, serve, withCommentary bool) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if format != "" {
		cfg.Output.Format = format
	}
	if out != "" {
		cfg.Output.Path = out
	}
	if withCommentary {
		cfg.Commentary.Enabled = true
	}

	logger := common.NewLogger(cfg.App.LogLevel)

	basis, err := metrics.ParsePEBasis(cfg.Metrics.PEBasis)
	if err != nil {
		return err
	}
	engine := metrics.NewEngine(basis)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []screen.Option{screen.WithLogger(logger)}

	// History is optional
	var history api.HistoryReader
	if cfg.Database.Enabled {
		repo, err := storage.NewRepository(cfg.Database.DSN(), storage.PoolOptions{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer repo.Close()
		history = repo
		opts = append(opts, screen.WithRepository(repo))
		logger.Info().Str("db", cfg.Database.DBName).Msg("History enabled")
	}

	if cfg.Commentary.Enabled {
		provider, err := commentary.NewProvider(&cfg.Commentary)
		if err != nil {
			logger.Warn().Err(err).Msg("Commentary disabled")
		} else {
			opts = append(opts, screen.WithCommentator(provider))
			logger.Info().Str("provider", provider.Name()).Msg("Commentary enabled")
		}
	}

	runner := screen.NewRunner(newCollector(cfg, logger), engine, opts...)

	if serve {
		return serveAPI(ctx, runner, history, cfg, logger)
	}

	var batch *screen.Batch
	if csvPath != "" {
		batch, err = computeCSV(ctx, runner, csvPath, logger)
	} else {
		list := cfg.Tickers
		if tickers != "" {
			list = screen.SplitTickers(tickers)
		}
		batch, err = runner.Run(ctx, list)
	}
	if batch == nil {
		return err
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Run interrupted; writing partial results")
	}
	for _, e := range batch.Errors {
		logger.Warn().Msg(e)
	}

	if werr := writeReport(batch, cfg.Output, logger); werr != nil {
		return werr
	}
	return err
}

func newCollector(cfg *config.Config, logger *common.Logger) *yahoo.Collector {
	var client *yahoo.Client
	if cfg.Yahoo.APIEnabled {
		clientOpts := []yahoo.ClientOption{
			yahoo.WithBaseURL(cfg.Yahoo.APIBaseURL),
			yahoo.WithLogger(logger),
			yahoo.WithRateLimit(cfg.Yahoo.RateLimit),
			yahoo.WithUserAgent(cfg.Yahoo.UserAgent),
		}
		if cfg.Yahoo.Timeout > 0 {
			clientOpts = append(clientOpts, yahoo.WithTimeout(cfg.Yahoo.Timeout))
		}
		client = yahoo.NewClient(clientOpts...)
	}

	var scraper *yahoo.Scraper
	if cfg.Yahoo.ScrapeEnabled {
		scraper = yahoo.NewScraper(cfg.Yahoo.PageBaseURL, cfg.Yahoo.ScrapeDelay, logger)
	}

	return yahoo.NewCollector(client, scraper, logger).PreferScrapedEV(cfg.Yahoo.PreferScrapedEV)
}

func computeCSV(ctx context.Context, runner *screen.Runner, path string, logger *common.Logger) (*screen.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()

	parsed, errs := facts.NewCSVParser().Parse(f)
	for _, e := range errs {
		logger.Warn().Err(e).Str("file", path).Msg("CSV row problem")
	}
	if len(parsed) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("no usable rows in %s: %w", path, errs[0])
	}

	return runner.ComputeFacts(ctx, screen.SourceCSV, parsed)
}

func writeReport(batch *screen.Batch, output config.OutputConfig, logger *common.Logger) error {
	presenter, err := report.New(output.Format)
	if err != nil {
		return err
	}

	path := output.Path
	if path == "" && strings.EqualFold(output.Format, report.FormatCSV) {
		path = report.DefaultCSVPath
	}

	if path == "" || path == "-" {
		return render(os.Stdout, presenter, batch, output.Format)
	}

	f, err := createOutput(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := render(f, presenter, batch, output.Format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	logger.Info().Str("path", path).Int("records", len(batch.Results)).Msg("Results saved")
	return nil
}

var createOutput = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

func render(w io.Writer, presenter report.Presenter, batch *screen.Batch, format string) error {
	if err := presenter.Render(w, batch.Records()); err != nil {
		return err
	}
	if strings.EqualFold(format, report.FormatTable) || format == "" {
		printNotes(w, batch.Results)
	}
	return nil
}

func printNotes(w io.Writer, results []screen.Result) {
	for _, r := range results {
		if r.Note == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s [%s] %s\n", r.Symbol, r.Note.Stance, r.Note.Summary)
		for _, k := range r.Note.KeyFactors {
			fmt.Fprintf(w, "  - %s\n", k)
		}
	}
}

func serveAPI(ctx context.Context, runner *screen.Runner, history api.HistoryReader, cfg *config.Config, logger *common.Logger) error {
	server := api.NewServer(runner, history, cfg, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := server.HTTPServer(addr)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("API server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
