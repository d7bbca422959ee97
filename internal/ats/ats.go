// Package ats is the JobAdder REST client. It owns the OAuth2 token lifecycle and
// refreshes the access token transparently before each call.
package ats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/internal/upstream"
	"github.com/garnizeh/talentmail/pkg/repository"
)

const (
	Provider = "jobadder"
	service  = "jobadder"

	// refreshSkew refreshes tokens this long before they expire.
	refreshSkew = 5 * time.Minute
)

// ErrNotAuthorized means no usable token pair exists; the operator must run the
// authorization flow again.
var ErrNotAuthorized = errors.New("ats: not authorized")

// ErrUnknownBoard means the configured job board is not one of the account's boards.
var ErrUnknownBoard = errors.New("ats: unknown job board")

// Record is a loosely typed ATS resource (note, activity, application).
type Record = map[string]any

type Client struct {
	oauth   *oauth2.Config
	baseURL string
	http    *http.Client
	tokens  repository.TokenRepo
	logger  *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

func New(cfg config.ATSConfig, tokens repository.TokenRepo, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"read", "offline_access"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
		logger:  logger,
		now:     time.Now,
	}
}

// AuthCodeURL is the consent page the operator is redirected to.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

func (c *Client) expiry(t *oauth2.Token) int64 {
	if t.Expiry.IsZero() {
		return c.now().Add(time.Hour).UnixMilli()
	}
	return t.Expiry.UnixMilli()
}

// Exchange trades an authorization code for tokens and persists them.
func (c *Client) Exchange(ctx context.Context, code string) error {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	set := models.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    c.expiry(tok),
	}
	if err := c.tokens.SaveTokens(ctx, Provider, set); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}

	c.logger.Info("ats authorization complete")
	return nil
}

// IsAuthorized reports whether both an access and a refresh token are stored.
func (c *Client) IsAuthorized(ctx context.Context) bool {
	t, err := c.tokens.LoadTokens(ctx, Provider)
	if err != nil || t == nil {
		return false
	}
	return t.AccessToken != "" && t.RefreshToken != ""
}

// AccessToken returns a valid access token, refreshing when it is within five
// minutes of expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.tokens.LoadTokens(ctx, Provider)
	if err != nil {
		return "", fmt.Errorf("load tokens: %w", err)
	}
	if t == nil || t.AccessToken == "" {
		return "", ErrNotAuthorized
	}
	if c.now().UnixMilli() < t.ExpiresAt-refreshSkew.Milliseconds() {
		return t.AccessToken, nil
	}
	if t.RefreshToken == "" {
		return "", ErrNotAuthorized
	}

	c.logger.Info("ats token expired, refreshing")
	tok, err := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: t.RefreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotAuthorized, err)
	}

	next := models.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    c.expiry(tok),
	}
	if next.RefreshToken == "" {
		next.RefreshToken = t.RefreshToken
	}
	if err := c.tokens.SaveTokens(ctx, Provider, next); err != nil {
		c.logger.Error("failed to persist refreshed tokens", slog.Any("err", err))
	}

	return next.AccessToken, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)

	return upstream.DoJSON(ctx, c.http, service, http.MethodGet, u, h, nil, out)
}

type jobList struct {
	Items []models.Job `json:"items"`
}

type recordList struct {
	Items []Record `json:"items"`
}

// LiveJobs lists open jobs.
func (c *Client) LiveJobs(ctx context.Context) ([]models.Job, error) {
	var out jobList
	q := url.Values{"status": {"Open"}, "limit": {"100"}}
	if err := c.get(ctx, "/jobs", q, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("fetched live jobs", slog.Int("count", len(out.Items)))
	return out.Items, nil
}

func (c *Client) Job(ctx context.Context, id int64) (*models.Job, error) {
	var j models.Job
	if err := c.get(ctx, "/jobs/"+strconv.FormatInt(id, 10), nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

func (c *Client) JobBoards(ctx context.Context) ([]models.JobBoard, error) {
	var out struct {
		Items []models.JobBoard `json:"items"`
	}
	if err := c.get(ctx, "/jobboards", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) JobAds(ctx context.Context, boardID int64) ([]models.Job, error) {
	var out jobList
	if err := c.get(ctx, fmt.Sprintf("/jobboards/%d/ads", boardID), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// BoardAds checks that boardID belongs to the account and returns its current ads.
func (c *Client) BoardAds(ctx context.Context, boardID int64) ([]models.Job, error) {
	boards, err := c.JobBoards(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(boards, func(b models.JobBoard) bool { return b.BoardID == boardID }) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBoard, boardID)
	}
	return c.JobAds(ctx, boardID)
}

func (c *Client) JobBoardAd(ctx context.Context, boardID, adID int64) (*models.Job, error) {
	var j models.Job
	if err := c.get(ctx, fmt.Sprintf("/jobboards/%d/ads/%d", boardID, adID), nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

func since(t time.Time) string {
	return ">" + t.UTC().Format(time.DateOnly)
}

// Notes lists notes of one type created after the given day.
func (c *Client) Notes(ctx context.Context, noteType string, after time.Time, limit int) ([]Record, error) {
	q := url.Values{
		"type":      {noteType},
		"createdAt": {since(after)},
		"limit":     {strconv.Itoa(limit)},
	}
	var out recordList
	if err := c.get(ctx, "/notes", q, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// RecentNotes lists notes of any type created after the given day.
func (c *Client) RecentNotes(ctx context.Context, after time.Time, limit int) ([]Record, error) {
	q := url.Values{
		"createdAt": {since(after)},
		"limit":     {strconv.Itoa(limit)},
	}
	var out recordList
	if err := c.get(ctx, "/notes", q, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Note(ctx context.Context, id string) (Record, error) {
	var r Record
	if err := c.get(ctx, "/notes/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Activities(ctx context.Context, after time.Time, limit int) ([]Record, error) {
	q := url.Values{
		"createdAt": {since(after)},
		"limit":     {strconv.Itoa(limit)},
	}
	var out recordList
	if err := c.get(ctx, "/activities", q, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Application(ctx context.Context, id int64) (Record, error) {
	var r Record
	if err := c.get(ctx, "/applications/"+strconv.FormatInt(id, 10), nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Candidate(ctx context.Context, id int64) (*models.Candidate, error) {
	var cand models.Candidate
	if err := c.get(ctx, "/candidates/"+strconv.FormatInt(id, 10), nil, &cand); err != nil {
		return nil, err
	}
	return &cand, nil
}
