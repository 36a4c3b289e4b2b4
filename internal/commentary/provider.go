// Package commentary asks an LLM for a short reading of computed metrics.
package commentary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/roev/internal/metrics"
	"github.com/user/roev/pkg/config"
)

// Request carries one computed record to the model.
type Request struct {
	Record metrics.Record
	Name   string
}

// Note is the model's answer.
type Note struct {
	Provider   string   `json:"provider"`
	Stance     string   `json:"stance"` // FAVOURABLE, NEUTRAL, UNFAVOURABLE
	Summary    string   `json:"summary"`
	KeyFactors []string `json:"key_factors"`
}

// Provider defines the interface for LLM providers.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Comment returns a note on the record's metrics.
	Comment(ctx context.Context, req Request) (*Note, error)

	// IsAvailable checks if the provider is available.
	IsAvailable(ctx context.Context) bool
}

const systemInstruction = "You are an equity analyst reviewing valuation and profitability ratios. Always respond with valid JSON only."

// NewProvider creates a new LLM provider based on configuration.
func NewProvider(cfg *config.CommentaryConfig) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key is required")
		}
		return NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.Model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

// buildPrompt lists the flattened record in column order.
func buildPrompt(req Request) string {
	var b strings.Builder

	name := req.Name
	if name == "" {
		name = req.Record.Identifier()
	}
	fmt.Fprintf(&b, "Review the following metrics for %s (%s).\n\n", name, req.Record.Identifier())

	flat := req.Record.Flatten()
	for _, c := range metrics.Columns[1:] {
		fmt.Fprintf(&b, "- %s: %s\n", c.Title, flat[c.Key])
	}

	b.WriteString(`
Values of N/A could not be computed from the available data; do not guess them.

Provide your reading in the following JSON format:
{
  "stance": "FAVOURABLE" or "NEUTRAL" or "UNFAVOURABLE",
  "summary": "<two or three sentences>",
  "key_factors": ["factor1", "factor2", ...]
}

Respond ONLY with the JSON, no additional text.`)

	return b.String()
}

// parseNote extracts the note from a model response and stamps the provider.
func parseNote(provider, response string) (*Note, error) {
	var note Note
	if err := parseJSONResponse(response, &note); err != nil {
		return nil, fmt.Errorf("failed to parse commentary response: %w", err)
	}
	note.Provider = provider
	note.Stance = strings.ToUpper(strings.TrimSpace(note.Stance))
	return &note, nil
}

// parseJSONResponse extracts and parses JSON from the LLM response.
func parseJSONResponse(response string, v interface{}) error {
	response = strings.TrimSpace(response)

	// Look for JSON object
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("no JSON found in response: %s", response)
	}

	jsonStr := response[start : end+1]

	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w (json: %s)", err, jsonStr)
	}

	return nil
}
