// Package cms reads articles from the WordPress REST API.
package cms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/format"
	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/internal/upstream"
)

const service = "wordpress"

type Client struct {
	baseURL  string
	category int
	http     *http.Client
	logger   *slog.Logger
}

func New(cfg config.CMSConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		category: cfg.CategoryID,
		http:     httpClient,
		logger:   logger,
	}
}

type rendered struct {
	Rendered string `json:"rendered"`
}

type post struct {
	ID       int64    `json:"id"`
	Title    rendered `json:"title"`
	Excerpt  rendered `json:"excerpt"`
	Link     string   `json:"link"`
	Date     string   `json:"date"`
	Embedded struct {
		FeaturedMedia []struct {
			SourceURL string `json:"source_url"`
		} `json:"wp:featuredmedia"`
	} `json:"_embedded"`
}

func (p post) article() models.Article {
	a := models.Article{
		ID:      p.ID,
		Title:   p.Title.Rendered,
		Excerpt: format.StripHTML(p.Excerpt.Rendered),
		Link:    p.Link,
		Date:    p.Date,
	}
	if len(p.Embedded.FeaturedMedia) > 0 {
		a.FeaturedImage = p.Embedded.FeaturedMedia[0].SourceURL
	}
	return a
}

func (c *Client) posts(ctx context.Context, q url.Values) ([]post, error) {
	var out []post
	u := c.baseURL + "/posts?" + q.Encode()
	if err := upstream.DoJSON(ctx, c.http, service, http.MethodGet, u, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Latest returns the newest n articles of the configured category, newest first.
func (c *Client) Latest(ctx context.Context, n int) ([]models.Article, error) {
	ps, err := c.posts(ctx, url.Values{
		"categories": {strconv.Itoa(c.category)},
		"per_page":   {strconv.Itoa(n)},
		"_embed":     {"true"},
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Article, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.article())
	}
	c.logger.Debug("fetched latest articles", slog.Int("count", len(out)))
	return out, nil
}

// All lists up to 100 articles as id/title pairs.
func (c *Client) All(ctx context.Context) ([]models.ArticleRef, error) {
	ps, err := c.posts(ctx, url.Values{
		"categories": {strconv.Itoa(c.category)},
		"per_page":   {"100"},
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.ArticleRef, 0, len(ps))
	for _, p := range ps {
		out = append(out, models.ArticleRef{ID: p.ID, Title: p.Title.Rendered})
	}
	return out, nil
}

// Article returns nil, nil when the post does not exist.
func (c *Client) Article(ctx context.Context, id int64) (*models.Article, error) {
	var p post
	u := fmt.Sprintf("%s/posts/%d?_embed=true", c.baseURL, id)
	if err := upstream.DoJSON(ctx, c.http, service, http.MethodGet, u, nil, nil, &p); err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	a := p.article()
	return &a, nil
}
