package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/garnizeh/talentmail/api"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	api.SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { api.SetLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil))) })
	return &buf
}

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusConflict, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, c := range cases {
		t.Run(http.StatusText(c.status), func(t *testing.T) {
			buf := captureLogs(t)
			h := api.RequestIDMiddleware(api.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
			})))

			req := httptest.NewRequest(http.MethodPost, "/api/alist/send", nil)
			req.Header.Set("X-Request-ID", "rid-1")
			h.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("decode log line %q: %v", buf.String(), err)
			}
			if entry["level"] != c.level || entry["status"] != float64(c.status) {
				t.Fatalf("unexpected log entry: %v", entry)
			}
			if entry["path"] != "/api/alist/send" || entry["request_id"] != "rid-1" {
				t.Fatalf("missing request attributes: %v", entry)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	h := api.CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/xpose/generate", nil))
	if w.Code != http.StatusNoContent || called {
		t.Fatalf("preflight: want 204 without calling next, got %d (called=%v)", w.Code, called)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing allow-origin header")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if !called {
		t.Fatalf("GET must reach the handler")
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Fatalf("unexpected allow-methods: %q", w.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	captureLogs(t)
	h := api.RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON error, got %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] != "Internal Server Error" {
		t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := api.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = api.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if seen != "abc-123" || w.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("incoming id not kept: ctx=%q header=%q", seen, w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "abc-123" {
		t.Fatalf("expected a generated id, got %q", seen)
	}
	if w.Header().Get("X-Request-ID") != seen {
		t.Fatalf("response header must echo the generated id")
	}
}

type authorizer bool

func (a authorizer) IsAuthorized(ctx context.Context) bool { return bool(a) }

func TestRequireAuthorized(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name       string
		authorized bool
		wantStatus int
	}{
		{name: "NotAuthorized", authorized: false, wantStatus: http.StatusUnauthorized},
		{name: "Authorized", authorized: true, wantStatus: http.StatusOK},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			api.RequireAuthorized(authorizer(c.authorized))(next).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/alist/generate", nil))
			if w.Code != c.wantStatus {
				t.Fatalf("want %d got %d", c.wantStatus, w.Code)
			}
			if !c.authorized && !strings.Contains(w.Body.String(), "/auth/jobadder") {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
		})
	}
}
