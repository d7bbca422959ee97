package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/talentmail/internal/upstream"
)

func TestDoJSON_DecodesAndSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct{ OK bool }
	h := http.Header{}
	h.Set("api-key", "k")
	err := upstream.DoJSON(context.Background(), srv.Client(), "mail", http.MethodPost, srv.URL, h, map[string]int{"a": 1}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestDoJSON_NonSuccessIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	defer srv.Close()

	err := upstream.DoJSON(context.Background(), srv.Client(), "cms", http.MethodGet, srv.URL, nil, nil, nil)
	require.Error(t, err)

	var ue *upstream.Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "cms", ue.Service)
	assert.Equal(t, http.StatusTeapot, ue.Status)
	assert.Equal(t, "nope", ue.Body)
	assert.True(t, upstream.IsStatus(err, http.StatusTeapot))
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := upstream.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
