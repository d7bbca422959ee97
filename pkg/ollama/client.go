// Package ollama is a small client for a local Ollama server, tuned for short
// JSON completions. Calls are retried with linear backoff and guarded by a
// circuit breaker so a dead server fails fast.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/garnizeh/talentmail/internal/config"
)

var ErrModelNotFound = errors.New("ollama model not installed")

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/ollama. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

type Client struct {
	api     *api.Client
	http    *http.Client
	cfg     config.OllamaConfig
	breaker *breaker
	closed  atomic.Bool
}

func NewClient(cfg config.OllamaConfig, httpClient *http.Client) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	logger.Info("ollama client created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return &Client{
		api:     api.NewClient(u, httpClient),
		http:    httpClient,
		cfg:     cfg,
		breaker: newBreaker(cfg.CircuitFailureThreshold, cfg.CircuitReset),
	}, nil
}

// NewDefaultClient uses a dedicated transport without an overall request
// timeout; per-call deadlines come from cfg.Timeout.
func NewDefaultClient(cfg config.OllamaConfig) (*Client, error) {
	return NewClient(cfg, &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	})
}

// Close releases idle connections. It is safe to call more than once.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if tr, ok := c.http.Transport.(interface{ CloseIdleConnections() }); ok {
		tr.CloseIdleConnections()
	}
	return nil
}

// Models lists the names of the installed models.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	if err := c.breaker.allow(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.List(ctx)
	if err != nil {
		c.breaker.failure()
		return nil, fmt.Errorf("list models: %w", err)
	}
	c.breaker.success()

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// ResolveModel returns preferred when it is installed, otherwise the first
// installed model among the configured defaults. Names without a tag match
// their ":latest" variant.
func (c *Client) ResolveModel(ctx context.Context, preferred string) (string, error) {
	installed, err := c.Models(ctx)
	if err != nil {
		return "", err
	}

	has := func(name string) bool {
		if !strings.Contains(name, ":") {
			name += ":latest"
		}
		return slices.Contains(installed, name)
	}

	for _, name := range append([]string{preferred}, c.cfg.DefaultModelNames...) {
		if name != "" && has(name) {
			if name != preferred {
				logger.Warn("ollama model substituted", slog.String("wanted", preferred), slog.String("using", name))
			}
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrModelNotFound, preferred)
}
