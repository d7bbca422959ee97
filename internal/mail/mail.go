// Package mail is the Brevo client: opt-in contact lookup and template batch sends.
package mail

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
	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/internal/upstream"
)

const (
	service  = "brevo"
	pageSize = 500
	maxBatch = 1000
)

type Client struct {
	cfg    config.MailConfig
	http   *http.Client
	logger *slog.Logger
}

func New(cfg config.MailConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBatch {
		cfg.BatchSize = maxBatch
	}
	if cfg.OptInAttribute == "" {
		cfg.OptInAttribute = "JOB_ALERTS"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

func (c *Client) TestMode() bool { return c.cfg.TestMode }

// TestRecipient is the configured QA inbox, if any.
func (c *Client) TestRecipient() (models.Recipient, bool) {
	if c.cfg.TestEmail == "" {
		return models.Recipient{}, false
	}
	return models.Recipient{Email: c.cfg.TestEmail, Name: "Test User"}, true
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("api-key", c.cfg.APIKey)
	return h
}

type contact struct {
	Email      string         `json:"email"`
	Attributes map[string]any `json:"attributes"`
}

func optedIn(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Yes" || t == "yes"
	case bool:
		return t
	}
	return false
}

func attr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

// OptInRecipients pages through all contacts and keeps those flagged with the opt-in
// attribute. In test mode only the test recipient is returned.
func (c *Client) OptInRecipients(ctx context.Context) ([]models.Recipient, error) {
	if c.cfg.TestMode {
		if r, ok := c.TestRecipient(); ok {
			c.logger.Info("test mode: using test recipient only", slog.String("email", r.Email))
			return []models.Recipient{r}, nil
		}
	}

	var (
		out    []models.Recipient
		total  int
		offset int
	)
	for {
		q := url.Values{"limit": {strconv.Itoa(pageSize)}, "offset": {strconv.Itoa(offset)}}
		var page struct {
			Contacts []contact `json:"contacts"`
		}
		if err := upstream.DoJSON(ctx, c.http, service, http.MethodGet, c.cfg.BaseURL+"/contacts?"+q.Encode(), c.header(), nil, &page); err != nil {
			return nil, err
		}

		total += len(page.Contacts)
		for _, ct := range page.Contacts {
			if ct.Email == "" || !optedIn(ct.Attributes[c.cfg.OptInAttribute]) {
				continue
			}
			name := strings.TrimSpace(attr(ct.Attributes, "FIRSTNAME") + " " + attr(ct.Attributes, "LASTNAME"))
			if name == "" {
				name = ct.Email
			}
			out = append(out, models.Recipient{Email: ct.Email, Name: name})
		}

		if len(page.Contacts) < pageSize {
			break
		}
		offset += pageSize
	}

	c.logger.Info("fetched opt-in contacts", slog.Int("count", len(out)), slog.Int("total", total))
	return out, nil
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type messageVersion struct {
	To     []address `json:"to"`
	Params any       `json:"params,omitempty"`
}

type sendRequest struct {
	TemplateID      int64            `json:"templateId"`
	Sender          *address         `json:"sender,omitempty"`
	MessageVersions []messageVersion `json:"messageVersions"`
}

// Send delivers the template to every recipient with the same params, in batches
// of at most BatchSize with a pause between batches. A failed batch aborts the send.
func (c *Client) Send(ctx context.Context, recipients []models.Recipient, templateID int64, params any) error {
	if len(recipients) == 0 {
		c.logger.Warn("no recipients to send to")
		return nil
	}
	if c.cfg.TestMode {
		c.logger.Info("test mode active", slog.Int("count", len(recipients)))
	}

	var sender *address
	if c.cfg.SenderEmail != "" {
		sender = &address{Email: c.cfg.SenderEmail, Name: c.cfg.SenderName}
	}

	size := c.cfg.BatchSize
	batches := (len(recipients) + size - 1) / size
	for i := 0; i < batches; i++ {
		if i > 0 {
			if err := upstream.Sleep(ctx, c.cfg.BatchPause); err != nil {
				return err
			}
		}

		end := min((i+1)*size, len(recipients))
		batch := recipients[i*size : end]

		req := sendRequest{TemplateID: templateID, Sender: sender}
		for _, r := range batch {
			req.MessageVersions = append(req.MessageVersions, messageVersion{
				To:     []address{{Email: r.Email, Name: r.Name}},
				Params: params,
			})
		}

		if err := upstream.DoJSON(ctx, c.http, service, http.MethodPost, c.cfg.BaseURL+"/smtp/email", c.header(), req, nil); err != nil {
			return fmt.Errorf("batch %d/%d: %w", i+1, batches, err)
		}
		c.logger.Info("batch sent", slog.Int("batch", i+1), slog.Int("batches", batches), slog.Int("count", len(batch)))
	}

	return nil
}
