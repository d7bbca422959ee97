package campaign

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/talentmail/internal/format"
	"github.com/garnizeh/talentmail/internal/models"
)

const (
	newsletterArticles = 5
	newsletterJobs     = 5
)

// ArticleSource reads published articles from the CMS.
type ArticleSource interface {
	Latest(ctx context.Context, n int) ([]models.Article, error)
	All(ctx context.Context) ([]models.ArticleRef, error)
	Article(ctx context.Context, id int64) (*models.Article, error)
}

// JobSource reads jobs from the ATS.
type JobSource interface {
	LiveJobs(ctx context.Context) ([]models.Job, error)
	Job(ctx context.Context, id int64) (*models.Job, error)
	JobBoardAd(ctx context.Context, boardID, adID int64) (*models.Job, error)
}

// NewsletterSource builds the content newsletter: the latest articles plus a
// handful of live jobs.
type NewsletterSource struct {
	Articles  ArticleSource
	Jobs      JobSource
	Formatter *format.Formatter
	Template  int64
}

func (n *NewsletterSource) Campaign() models.Campaign { return models.CampaignNewsletter }
func (n *NewsletterSource) Label() string             { return "Xpose newsletter" }
func (n *NewsletterSource) TemplateID() int64         { return n.Template }

func (n *NewsletterSource) Generate(ctx context.Context, s *models.CampaignState) (string, error) {
	articles, err := n.Articles.Latest(ctx, newsletterArticles)
	if err != nil {
		return "", fmt.Errorf("fetch articles: %w", err)
	}
	if len(articles) == 0 {
		return "", fmt.Errorf("%w: no articles found", ErrNoMaterial)
	}

	// Jobs are optional content; a failure leaves the section empty.
	var jobs []models.Job
	if n.Jobs != nil {
		jobs, err = n.Jobs.LiveJobs(ctx)
		if err != nil {
			logger.Warn("newsletter jobs unavailable", slog.Any("err", err))
			jobs = nil
		}
	}
	if len(jobs) > newsletterJobs {
		jobs = jobs[:newsletterJobs]
	}

	f := n.Formatter
	if f == nil {
		f = format.New("", "")
	}

	featured := articles[0]
	s.FeaturedArticle = &featured
	s.RecentArticles = append([]models.Article(nil), articles[1:]...)
	s.Jobs = f.Jobs(jobs)
	s.PoolSize = len(articles)

	return fmt.Sprintf("Generated newsletter with %d articles and %d jobs", len(articles), len(s.Jobs)), nil
}

func (n *NewsletterSource) Params(s models.CampaignState) any {
	recent := s.RecentArticles
	if recent == nil {
		recent = []models.Article{}
	}
	jobs := s.Jobs
	if jobs == nil {
		jobs = []models.JobItem{}
	}
	return map[string]any{
		"featuredArticle": s.FeaturedArticle,
		"recentArticles":  recent,
		"jobs":            jobs,
	}
}
