// Package ai writes short candidate summaries with a local model and falls back to
// a deterministic summary whenever the model is unavailable or its output is
// rejected.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/pkg/ollama"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by ai. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Generator is the subset of the Ollama client the engine uses.
type Generator interface {
	GenerateJSON(ctx context.Context, model, prompt string) (ollama.GenerateResult, error)
}

// Summarizer produces a display summary for a candidate. It never fails.
type Summarizer interface {
	Summarize(ctx context.Context, c models.Candidate) string
}

// SummaryResponse is the structured output expected from the model.
type SummaryResponse struct {
	Summary string `json:"summary"`

	// Raw captures the original model output for auditing/logging.
	Raw string `json:"-"`
}

// Engine wraps a Generator and validates its output against a JSON schema.
type Engine struct {
	gen    Generator
	cfg    config.EngineConfig
	prompt *ollama.Prompt
	loader *Loader
}

// NewEngine builds an engine. With a nil generator or an empty model name every
// summary is the fallback.
func NewEngine(ctx context.Context, gen Generator, cfg config.EngineConfig) (*Engine, error) {
	if cfg.Template.Version == "" {
		cfg.Template.Version = "v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Template.Template == "" {
		tpl, err := defaultPrompt(cfg.Template.Version)
		if err != nil {
			return nil, err
		}
		cfg.Template.Template = tpl
	}
	prompt, err := ollama.ParsePrompt(cfg.Template.Template)
	if err != nil {
		return nil, err
	}
	if cfg.Template.SchemaVersion == "" {
		cfg.Template.SchemaVersion = cfg.Template.Version
	}

	loader, err := NewLoader(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create loader: %w", err)
	}
	if _, ok := loader.GetSchema(cfg.Template.SchemaVersion); !ok {
		return nil, fmt.Errorf("no schema found for version %s", cfg.Template.SchemaVersion)
	}

	return &Engine{gen: gen, cfg: cfg, prompt: prompt, loader: loader}, nil
}

// Enabled reports whether summaries are requested from a model.
func (e *Engine) Enabled() bool {
	return e != nil && e.gen != nil && e.cfg.Model != ""
}

// Generate asks the model for a summary and validates the response. Callers
// that need a summary regardless should use Summarize.
func (e *Engine) Generate(ctx context.Context, c models.Candidate) (*SummaryResponse, error) {
	if !e.Enabled() {
		return nil, errors.New("summarizer disabled")
	}

	prompt, err := e.prompt.Render(map[string]any{"Candidate": c, "Context": BuildContext(c)})
	if err != nil {
		return nil, err
	}

	ctxReq, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.gen.GenerateJSON(ctxReq, e.cfg.Model, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	resp, err := ParseSummary(out.Text)
	if err != nil {
		logger.Warn("ai parse error", slog.Any("err", err), slog.String("raw", out.Text))
		return nil, fmt.Errorf("parse response: %w", err)
	}

	schema, ok := e.loader.GetSchema(e.cfg.Template.SchemaVersion)
	if !ok || schema == nil {
		return nil, fmt.Errorf("no schema found for version %s", e.cfg.Template.SchemaVersion)
	}
	verrs, err := schema.ValidateBytes(ctxReq, []byte(extractJSON(out.Text)))
	if err != nil {
		return nil, fmt.Errorf("schema validate error: %w", err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return nil, fmt.Errorf("response does not match schema: %s", sb.String())
	}

	resp.Summary = strings.TrimSpace(resp.Summary)
	return resp, nil
}

// Summarize returns the model summary or, on any failure, the fallback.
func (e *Engine) Summarize(ctx context.Context, c models.Candidate) string {
	if !e.Enabled() {
		return Fallback(c)
	}

	resp, err := e.Generate(ctx, c)
	if err != nil {
		logger.Warn("using fallback summary", slog.Int64("candidate_id", c.CandidateID), slog.Any("err", err))
		return Fallback(c)
	}
	return resp.Summary
}

// SummarizeAll summarizes candidates concurrently, keeping input order.
func SummarizeAll(ctx context.Context, s Summarizer, cs []models.Candidate) []string {
	out := make([]string, len(cs))
	if s == nil {
		for i, c := range cs {
			out[i] = Fallback(c)
		}
		return out
	}

	var wg sync.WaitGroup
	for i, c := range cs {
		wg.Add(1)
		go func(i int, c models.Candidate) {
			defer wg.Done()
			out[i] = s.Summarize(ctx, c)
		}(i, c)
	}
	wg.Wait()
	return out
}

// ParseSummary extracts a JSON object from arbitrary model output and unmarshals it.
func ParseSummary(s string) (*SummaryResponse, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty response")
	}

	j := extractJSON(s)
	if j == "" {
		return nil, errors.New("no JSON object found in response")
	}

	var r SummaryResponse
	if err := json.Unmarshal([]byte(j), &r); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	r.Raw = s
	return &r, nil
}

// extractJSON returns the substring from the first '{' to the last '}' in the input.
// Model outputs often wrap JSON in text or markdown fences.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}
