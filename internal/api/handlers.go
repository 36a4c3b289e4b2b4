package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/roev/internal/metrics"
	"github.com/user/roev/internal/screen"
	"github.com/user/roev/internal/storage"
)

const maxScreenTickers = 50

var errHistoryDisabled = gin.H{"error": "history disabled"}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	History   bool   `json:"history"`
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		History:   s.history != nil,
	})
}

// handleGetMetrics collects and computes one ticker.
func (s *Server) handleGetMetrics(c *gin.Context) {
	result, err := s.runner.Analyze(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, metrics.ErrMissingIdentifier):
			status = http.StatusBadRequest
		case errors.Is(err, screen.ErrNoCollector):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if c.Query("commentary") == "true" {
		// Commentary is best effort; the metrics are returned regardless.
		if err := s.runner.Comment(c.Request.Context(), result); err != nil {
			s.logger.Warn().Err(err).Str("ticker", result.Symbol).Msg("Commentary failed")
			if result.CommentaryError == "" {
				result.CommentaryError = err.Error()
			}
		}
	}

	c.JSON(http.StatusOK, result)
}

// ComputeRequest carries caller-supplied facts. Each entry maps field
// names (or their aliases) to numbers or magnitude strings.
type ComputeRequest struct {
	Facts []map[string]any `json:"facts" binding:"required"`
}

// handleComputeMetrics computes metrics for supplied facts.
func (s *Server) handleComputeMetrics(c *gin.Context) {
	var req ComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "facts are required"})
		return
	}

	supplied := make([]metrics.FinancialFacts, 0, len(req.Facts))
	var warnings []string
	for i, raw := range req.Facts {
		f, errs := metrics.FactsFromRaw(identifierOf(raw), raw)
		if p, ok := raw[metrics.FieldPeriod].(string); ok {
			f.Period = p
		}
		for _, e := range errs {
			warnings = append(warnings, "facts["+strconv.Itoa(i)+"]: "+e.Error())
		}
		supplied = append(supplied, f)
	}

	batch, err := s.runner.ComputeFacts(c.Request.Context(), screen.SourceAPI, supplied)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batch":         batch,
		"by_identifier": keyedValues(batch.Records()),
		"warnings":      warnings,
	})
}

// keyedValues maps each identifier to its rounded metrics.
func keyedValues(records []metrics.Record) map[string]map[string]metrics.Value {
	indexed := metrics.Index(records)
	out := make(map[string]map[string]metrics.Value, len(indexed))
	for id, rec := range indexed {
		out[id] = rec.Values()
	}
	return out
}

// identifierOf finds the entity symbol under any accepted key.
func identifierOf(raw map[string]any) string {
	for _, key := range []string{metrics.FieldIdentifier, "symbol", "ticker"} {
		if v, ok := raw[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ScreenRequest represents a batch screening request.
type ScreenRequest struct {
	Tickers []string      `json:"tickers"`
	Filter  screen.Filter `json:"filter"`
	SortBy  string        `json:"sort_by"`
}

// handleScreen collects and computes a list of tickers.
func (s *Server) handleScreen(c *gin.Context) {
	var req ScreenRequest

	// Body is optional; an empty list screens the configured tickers.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	tickers := screen.Normalize(req.Tickers)
	if len(tickers) == 0 {
		tickers = screen.Normalize(s.config.Tickers)
	}
	if len(tickers) > maxScreenTickers {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at most " + strconv.Itoa(maxScreenTickers) + " tickers per request"})
		return
	}

	batch, err := s.runner.Run(c.Request.Context(), tickers)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, screen.ErrNoCollector) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	results := req.Filter.Apply(batch.Results)
	if req.SortBy != "" {
		if err := screen.Rank(results, metrics.Metric(req.SortBy)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":   batch.RunID,
		"results":  results,
		"screened": len(batch.Results),
		"matched":  len(results),
		"errors":   batch.Errors,
	})
}

// handleUpload computes metrics for an uploaded CSV of facts.
func (s *Server) handleUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}

	if err := s.csvParser.ValidateCSV(bytes.NewReader(data)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parsed, parseErrs := s.csvParser.Parse(bytes.NewReader(data))
	warnings := make([]string, len(parseErrs))
	for i, e := range parseErrs {
		warnings[i] = e.Error()
	}

	batch, err := s.runner.ComputeFacts(c.Request.Context(), screen.SourceCSV, parsed)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info().Str("filename", header.Filename).Int("rows", len(parsed)).Int("warnings", len(warnings)).Msg("CSV processed")

	c.JSON(http.StatusOK, gin.H{
		"filename": header.Filename,
		"records":  len(batch.Results),
		"batch":    batch,
		"warnings": warnings,
	})
}

// handleGetColumns returns supported CSV columns and the output columns.
func (s *Server) handleGetColumns(c *gin.Context) {
	output := make([]string, len(metrics.Columns))
	for i, col := range metrics.Columns {
		output[i] = col.Title
	}
	c.JSON(http.StatusOK, gin.H{
		"columns": s.csvParser.SupportedColumns(),
		"output":  output,
	})
}

// SnapshotView is a stored snapshot with its display form.
type SnapshotView struct {
	storage.Snapshot
	Display map[string]string `json:"display"`
}

// handleGetHistory lists a symbol's stored snapshots.
func (s *Server) handleGetHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, errHistoryDisabled)
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	snaps, err := s.history.ListSnapshots(c.Request.Context(), symbol, queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]SnapshotView, len(snaps))
	for i, snap := range snaps {
		views[i] = SnapshotView{Snapshot: snap, Display: snap.Record().Flatten()}
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"snapshots": views,
		"count":     len(views),
	})
}

// handleListRuns lists recent runs.
func (s *Server) handleListRuns(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, errHistoryDisabled)
		return
	}

	runs, err := s.history.ListRuns(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns one run with its snapshots.
func (s *Server) handleGetRun(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, errHistoryDisabled)
		return
	}

	run, err := s.history.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// queryLimit reads ?limit=, defaulting to 20 and capped at 100.
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}
