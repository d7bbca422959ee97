package campaign

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/talentmail/internal/models"
)

// ArticleSender mails a single CMS article outside the newsletter cycle.
type ArticleSender struct {
	Articles ArticleSource
	Mailer   Mailer
	Template int64
}

// List returns id/title pairs of every article in the newsletter category.
func (a *ArticleSender) List(ctx context.Context) ([]models.ArticleRef, error) {
	return a.Articles.All(ctx)
}

func (a *ArticleSender) load(ctx context.Context, id int64) (*models.Article, error) {
	if a.Template <= 0 {
		return nil, fmt.Errorf("%w: single article template not configured", ErrConfig)
	}
	art, err := a.Articles.Article(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch article %d: %w", id, err)
	}
	if art == nil {
		return nil, fmt.Errorf("%w: article %d not found", ErrNoMaterial, id)
	}
	return art, nil
}

// Send mails the article to every opt-in recipient. In test mode the mailer
// only returns the test recipient.
func (a *ArticleSender) Send(ctx context.Context, id int64) Result {
	art, err := a.load(ctx, id)
	if err != nil {
		return failed(err, nil)
	}
	recipients, err := a.Mailer.OptInRecipients(ctx)
	if err != nil {
		return failed(fmt.Errorf("fetch recipients: %w", err), nil)
	}
	if len(recipients) == 0 {
		return failed(fmt.Errorf("%w: no contacts opted in", ErrNoRecipients), nil)
	}
	return a.deliver(ctx, art, recipients)
}

// SendTest mails the article to the test recipient only.
func (a *ArticleSender) SendTest(ctx context.Context, id int64) Result {
	art, err := a.load(ctx, id)
	if err != nil {
		return failed(err, nil)
	}
	to, found := a.Mailer.TestRecipient()
	if !found {
		return failed(fmt.Errorf("%w: test email not configured", ErrConfig), nil)
	}
	return a.deliver(ctx, art, []models.Recipient{to})
}

func (a *ArticleSender) deliver(ctx context.Context, art *models.Article, to []models.Recipient) Result {
	if err := a.Mailer.Send(ctx, to, a.Template, map[string]any{"article": art}); err != nil {
		logger.Error("article send failed", slog.Int64("article_id", art.ID), slog.Any("err", err))
		return failed(fmt.Errorf("send article: %w", err), nil)
	}
	logger.Info("article sent", slog.Int64("article_id", art.ID), slog.Int("count", len(to)))
	return ok(fmt.Sprintf("Article sent to %d recipients", len(to)), art)
}
