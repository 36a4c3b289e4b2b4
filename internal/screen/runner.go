// Package screen runs the collect, compute and comment pipeline over tickers.
package screen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/roev/internal/commentary"
	"github.com/user/roev/internal/common"
	"github.com/user/roev/internal/metrics"
	"github.com/user/roev/internal/storage"
	"github.com/user/roev/internal/yahoo"
)

// Run sources.
const (
	SourceYahoo = "yahoo"
	SourceCSV   = "csv_upload"
	SourceAPI   = "api"
)

var (
	// ErrNoCollector is returned when live collection was not configured.
	ErrNoCollector = errors.New("no collector configured")
	// ErrNoCommentator is returned by Comment when no provider was configured.
	ErrNoCommentator = errors.New("no commentary provider configured")
)

// Collector gathers facts for one symbol. *yahoo.Collector implements it.
type Collector interface {
	Collect(ctx context.Context, symbol string) (*yahoo.Collection, error)
}

// History stores runs. *storage.Repository implements it.
type History interface {
	CreateRun(ctx context.Context, run *storage.Run) error
	UpdateRun(ctx context.Context, run *storage.Run) error
	SaveSnapshots(ctx context.Context, snapshots []storage.Snapshot) error
}

// Result is one ticker's outcome.
type Result struct {
	Symbol          string            `json:"symbol"`
	Name            string            `json:"name,omitempty"`
	Record          metrics.Record    `json:"record"`
	Display         map[string]string `json:"display"`
	Unavailable     map[string]string `json:"unavailable,omitempty"`
	Sources         []string          `json:"sources,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
	Note            *commentary.Note  `json:"commentary,omitempty"`
	CommentaryError string            `json:"commentary_error,omitempty"`
}

// Batch is the outcome of a run over several tickers.
type Batch struct {
	RunID      string    `json:"run_id,omitempty"`
	Source     string    `json:"source"`
	Results    []Result  `json:"results"`
	Errors     []string  `json:"errors,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Records returns the batch's records in run order.
func (b *Batch) Records() []metrics.Record {
	out := make([]metrics.Record, len(b.Results))
	for i, r := range b.Results {
		out[i] = r.Record
	}
	return out
}

// Runner wires acquisition, the metrics engine, commentary and history.
type Runner struct {
	collector   Collector
	engine      metrics.Engine
	history     History
	commentator commentary.Provider
	logger      *common.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRepository records every run in h.
func WithRepository(h History) Option {
	return func(r *Runner) {
		r.history = h
	}
}

// WithCommentator asks p for a note on every batch result.
func WithCommentator(p commentary.Provider) Option {
	return func(r *Runner) {
		r.commentator = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *common.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner. collector may be nil when only supplied
// facts will be computed.
func NewRunner(collector Collector, engine metrics.Engine, opts ...Option) *Runner {
	r := &Runner{
		collector: collector,
		engine:    engine,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = common.NewSilentLogger()
	}
	return r
}

// HasCommentator reports whether a commentary provider is configured.
func (r *Runner) HasCommentator() bool {
	return r.commentator != nil
}

// Analyze collects and computes one ticker. A failed collection still
// produces a result whose facts are all N/A; the failure is listed in
// its warnings.
func (r *Runner) Analyze(ctx context.Context, symbol string) (*Result, error) {
	if r.collector == nil {
		return nil, ErrNoCollector
	}
	symbol = normalize(symbol)
	if symbol == "" {
		return nil, metrics.ErrMissingIdentifier
	}

	res := r.analyze(ctx, symbol)
	return &res, nil
}

func (r *Runner) analyze(ctx context.Context, symbol string) Result {
	facts := metrics.FinancialFacts{Identifier: symbol}
	var (
		name     string
		sources  []string
		warnings []string
	)

	col, err := r.collector.Collect(ctx, symbol)
	if col != nil {
		facts = col.Facts
		name = col.Name
		sources = col.Sources
		for _, w := range col.Warnings {
			warnings = append(warnings, w.Error())
		}
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("ticker", symbol).Msg("Collection failed")
		warnings = append(warnings, err.Error())
	}
	if facts.Identifier == "" {
		facts.Identifier = symbol
	}

	res := r.newResult(facts)
	res.Name = name
	res.Sources = sources
	res.Warnings = warnings
	return res
}

func (r *Runner) newResult(facts metrics.FinancialFacts) Result {
	return resultFromRecord(metrics.Record{Facts: facts, Metrics: r.engine.Compute(facts)})
}

func resultFromRecord(rec metrics.Record) Result {
	var unavailable map[string]string
	for m, reason := range rec.Metrics.Reasons {
		if unavailable == nil {
			unavailable = make(map[string]string)
		}
		unavailable[string(m)] = reason.Error()
	}

	return Result{
		Symbol:      rec.Identifier(),
		Record:      rec,
		Display:     rec.Flatten(),
		Unavailable: unavailable,
	}
}

// Comment asks the configured provider for a note on res.
func (r *Runner) Comment(ctx context.Context, res *Result) error {
	if r.commentator == nil {
		return ErrNoCommentator
	}

	note, err := r.commentator.Comment(ctx, commentary.Request{Record: res.Record, Name: res.Name})
	if err != nil {
		res.CommentaryError = err.Error()
		return fmt.Errorf("failed to get commentary for %s: %w", res.Symbol, err)
	}
	res.Note = note
	return nil
}

// Run collects and computes every symbol, one at a time. Symbols are
// upper-cased and de-duplicated. One ticker's failure never stops the
// others. When ctx is cancelled the batch stops between tickers and the
// partial batch is returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, symbols []string) (*Batch, error) {
	if r.collector == nil {
		return nil, ErrNoCollector
	}

	tickers := Normalize(symbols)
	batch := &Batch{Source: SourceYahoo, StartedAt: time.Now().UTC()}
	run := r.startRun(ctx, SourceYahoo, tickers)

	r.logger.Info().Int("tickers", len(tickers)).Msg("Starting screening run")

	var runErr error
	for i, symbol := range tickers {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		r.logger.Info().Str("ticker", symbol).Int("n", i+1).Int("of", len(tickers)).Msg("Analyzing")
		res := r.analyze(ctx, symbol)
		if len(res.Sources) == 0 {
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: no data collected", symbol))
		}
		batch.Results = append(batch.Results, res)
	}

	r.commentAll(ctx, batch)
	batch.FinishedAt = time.Now().UTC()
	r.finishRun(ctx, run, batch, runErr)

	r.logger.Info().
		Int("results", len(batch.Results)).
		Int("errors", len(batch.Errors)).
		Dur("elapsed", batch.FinishedAt.Sub(batch.StartedAt)).
		Msg("Screening run finished")

	return batch, runErr
}

// ComputeFacts computes supplied facts, such as a CSV upload. Invalid
// entries are reported in the batch errors by position.
func (r *Runner) ComputeFacts(ctx context.Context, source string, facts []metrics.FinancialFacts) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &Batch{Source: source, StartedAt: time.Now().UTC()}

	ids := make([]string, 0, len(facts))
	for _, f := range facts {
		if f.Identifier != "" {
			ids = append(ids, f.Identifier)
		}
	}
	run := r.startRun(ctx, source, ids)

	normalized := make([]metrics.FinancialFacts, len(facts))
	for i, f := range facts {
		f.Identifier = normalize(f.Identifier)
		normalized[i] = f
	}

	records, errs := metrics.ComputeBatch(r.engine, normalized)
	for _, err := range errs {
		batch.Errors = append(batch.Errors, err.Error())
	}
	for _, rec := range records {
		batch.Results = append(batch.Results, resultFromRecord(rec))
	}

	r.commentAll(ctx, batch)
	batch.FinishedAt = time.Now().UTC()
	r.finishRun(ctx, run, batch, nil)

	return batch, nil
}

func (r *Runner) commentAll(ctx context.Context, batch *Batch) {
	if r.commentator == nil {
		return
	}
	for i := range batch.Results {
		if ctx.Err() != nil {
			return
		}
		if err := r.Comment(ctx, &batch.Results[i]); err != nil {
			r.logger.Warn().Err(err).Str("ticker", batch.Results[i].Symbol).Msg("Commentary failed")
		}
	}
}

func (r *Runner) startRun(ctx context.Context, source string, tickers []string) *storage.Run {
	if r.history == nil {
		return nil
	}
	run := storage.NewRun(source, tickers)
	if err := r.history.CreateRun(ctx, run); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to record run; history disabled for this run")
		return nil
	}
	return run
}

func (r *Runner) finishRun(ctx context.Context, run *storage.Run, batch *Batch, runErr error) {
	if run == nil {
		return
	}
	batch.RunID = run.ID

	// Persist even when the run's own context was cancelled.
	ctx = context.WithoutCancel(ctx)

	snaps := make([]storage.Snapshot, len(batch.Results))
	for i, res := range batch.Results {
		snaps[i] = storage.SnapshotFromRecord(run.ID, res.Record, batch.FinishedAt)
	}

	status := storage.RunCompleted
	var errMsg error
	switch {
	case runErr != nil:
		status = storage.RunCancelled
		errMsg = runErr
	case len(batch.Results) == 0 && len(batch.Errors) > 0:
		status = storage.RunFailed
		errMsg = errors.New(strings.Join(batch.Errors, "; "))
	case len(batch.Errors) > 0:
		status = storage.RunPartial
		errMsg = errors.New(strings.Join(batch.Errors, "; "))
	}

	if err := r.history.SaveSnapshots(ctx, snaps); err != nil {
		r.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to save snapshots")
		status = storage.RunFailed
		errMsg = err
	}

	run.Finish(status, len(snaps), errMsg)
	if err := r.history.UpdateRun(ctx, run); err != nil {
		r.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to update run")
	}
}

// Normalize upper-cases, trims and de-duplicates symbols, keeping the
// first occurrence's position. Blank entries are dropped.
func Normalize(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = normalize(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// SplitTickers parses a comma or whitespace separated ticker list.
func SplitTickers(s string) []string {
	return Normalize(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == ';'
	}))
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
