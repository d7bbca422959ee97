package cms_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/talentmail/internal/cms"
	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/models"
)

const postsJSON = `[
 {"id":10,"title":{"rendered":"Hiring in 2024"},"excerpt":{"rendered":"<p>Trends &amp; tips</p>\n"},"link":"https://blog/10","date":"2024-06-01T10:00:00",
  "_embedded":{"wp:featuredmedia":[{"source_url":"https://img/10.jpg"}]}},
 {"id":11,"title":{"rendered":"Second"},"excerpt":{"rendered":"<p>Plain</p>"},"link":"https://blog/11","date":"2024-05-01T10:00:00"}
]`

func newServer(t *testing.T, status int) (*cms.Client, *[]string) {
	t.Helper()
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Path+"?"+r.URL.RawQuery)
		if status != http.StatusOK {
			http.Error(w, `{"code":"rest_post_invalid_id"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/wp/v2/posts":
			_, _ = w.Write([]byte(postsJSON))
		case "/wp/v2/posts/10":
			_, _ = w.Write([]byte(`{"id":10,"title":{"rendered":"Hiring in 2024"},"excerpt":{"rendered":"<p>x</p>"},"link":"https://blog/10","date":"d"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return cms.New(config.CMSConfig{BaseURL: srv.URL + "/wp/v2/", CategoryID: 6}, srv.Client(), nil), &queries
}

func TestLatest(t *testing.T) {
	c, queries := newServer(t, http.StatusOK)

	got, err := c.Latest(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.Article{
		ID:            10,
		Title:         "Hiring in 2024",
		Excerpt:       "Trends & tips",
		Link:          "https://blog/10",
		Date:          "2024-06-01T10:00:00",
		FeaturedImage: "https://img/10.jpg",
	}, got[0])
	assert.Empty(t, got[1].FeaturedImage)
	assert.Equal(t, "/wp/v2/posts?_embed=true&categories=6&per_page=5", (*queries)[0])
}

func TestAll(t *testing.T) {
	c, queries := newServer(t, http.StatusOK)

	got, err := c.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.ArticleRef{{ID: 10, Title: "Hiring in 2024"}, {ID: 11, Title: "Second"}}, got)
	assert.Equal(t, "/wp/v2/posts?categories=6&per_page=100", (*queries)[0])
}

func TestArticle(t *testing.T) {
	c, _ := newServer(t, http.StatusOK)

	a, err := c.Article(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "x", a.Excerpt)

	missing, err := c.Article(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpstreamFailure(t *testing.T) {
	c, _ := newServer(t, http.StatusBadGateway)

	_, err := c.Latest(context.Background(), 5)
	assert.Error(t, err)
}
