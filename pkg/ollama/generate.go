package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/garnizeh/talentmail/internal/upstream"
)

// Summary completions are short and mildly creative.
var summaryOptions = map[string]any{
	"temperature": 0.7,
	"num_predict": 150,
}

// GenerateResult is the concatenated completion plus the final stream chunk.
type GenerateResult struct {
	Text    string
	Model   string
	Latency time.Duration
	Raw     json.RawMessage
}

// Generate returns the completion for prompt as free text.
func (c *Client) Generate(ctx context.Context, model, prompt string) (GenerateResult, error) {
	return c.generate(ctx, &api.GenerateRequest{Model: model, Prompt: prompt, Options: summaryOptions})
}

// GenerateJSON constrains the model to emit a single JSON document.
func (c *Client) GenerateJSON(ctx context.Context, model, prompt string) (GenerateResult, error) {
	return c.generate(ctx, &api.GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Format:  json.RawMessage(`"json"`),
		Options: summaryOptions,
	})
}

func (c *Client) generate(ctx context.Context, req *api.GenerateRequest) (GenerateResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := upstream.Sleep(ctx, c.cfg.Backoff*time.Duration(attempt)); err != nil {
				return GenerateResult{}, err
			}
		}
		if err := c.breaker.allow(); err != nil {
			return GenerateResult{}, err
		}

		res, err := c.once(ctx, req)
		if err == nil {
			c.breaker.success()
			return res, nil
		}
		lastErr = err
		c.breaker.failure()
		logger.Warn("ollama generate failed", slog.String("model", req.Model), slog.Int("attempt", attempt+1), slog.Any("err", err))
	}
	return GenerateResult{}, fmt.Errorf("generate failed after %d attempts: %w", c.cfg.Retries+1, lastErr)
}

func (c *Client) once(ctx context.Context, req *api.GenerateRequest) (GenerateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var (
		text strings.Builder
		last api.GenerateResponse
	)
	start := time.Now()
	err := c.api.Generate(ctx, req, func(r api.GenerateResponse) error {
		text.WriteString(r.Response)
		last = r
		return nil
	})
	if err != nil {
		return GenerateResult{}, err
	}

	raw, _ := json.Marshal(last)
	return GenerateResult{Text: text.String(), Model: req.Model, Latency: time.Since(start), Raw: raw}, nil
}
