// Package preview renders campaign emails to HTML for review before sending.
// It reads only local state and makes no mail platform calls.
package preview

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/garnizeh/talentmail/internal/format"
	"github.com/garnizeh/talentmail/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	// ErrNoData means the campaign has nothing generated to preview.
	ErrNoData = errors.New("no preview data")
	// ErrNotFound means the requested article or job does not exist.
	ErrNotFound = errors.New("not found")
)

// Contact placeholders used in every preview.
var previewContact = map[string]string{
	"FIRSTNAME": "Preview",
	"LASTNAME":  "User",
	"EMAIL":     "preview@example.com",
}

type ArticleFinder interface {
	Article(ctx context.Context, id int64) (*models.Article, error)
}

type JobFinder interface {
	Job(ctx context.Context, id int64) (*models.Job, error)
}

type Service struct {
	Articles  ArticleFinder
	Jobs      JobFinder
	Formatter *format.Formatter

	fsys     fs.FS
	renderer Renderer

	mu    sync.RWMutex
	cache map[string]string
}

// New returns a Service over the embedded templates. A non-nil fsys overrides
// them; it must hold templates/<name>.html.
func New(articles ArticleFinder, jobs JobFinder, f *format.Formatter, fsys fs.FS) *Service {
	if fsys == nil {
		fsys = templateFS
	}
	if f == nil {
		f = format.New("", "")
	}
	return &Service{
		Articles:  articles,
		Jobs:      jobs,
		Formatter: f,
		fsys:      fsys,
		renderer: Renderer{Defaults: map[string]string{
			"contact.FIRSTNAME": "there",
		}},
		cache: map[string]string{},
	}
}

func (s *Service) template(name string) (string, error) {
	s.mu.RLock()
	t, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	b, err := fs.ReadFile(s.fsys, "templates/"+name+".html")
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	s.mu.Lock()
	s.cache[name] = string(b)
	s.mu.Unlock()
	return string(b), nil
}

func (s *Service) render(name string, params any) (string, error) {
	tpl, err := s.template(name)
	if err != nil {
		return "", err
	}
	bag := NewBag(map[string]any{"contact": previewContact, "params": params})
	return s.renderer.Render(tpl, bag), nil
}

// Digest renders the candidate digest from a generated snapshot.
func (s *Service) Digest(st models.CampaignState) (string, error) {
	if len(st.Candidates) == 0 {
		return "", fmt.Errorf("%w: no A-List generated, generate first", ErrNoData)
	}
	return s.render("alist", map[string]any{"candidates": st.Candidates})
}

// Newsletter renders the content newsletter from a generated snapshot.
func (s *Service) Newsletter(st models.CampaignState) (string, error) {
	if st.FeaturedArticle == nil {
		return "", fmt.Errorf("%w: no newsletter generated, generate first", ErrNoData)
	}
	return s.render("newsletter", map[string]any{
		"featuredArticle": st.FeaturedArticle,
		"recentArticles":  st.RecentArticles,
		"jobs":            st.Jobs,
	})
}

// Article renders the single article email for a CMS post.
func (s *Service) Article(ctx context.Context, id int64) (string, error) {
	if s.Articles == nil {
		return "", fmt.Errorf("%w: article %d", ErrNotFound, id)
	}
	a, err := s.Articles.Article(ctx, id)
	if err != nil {
		return "", fmt.Errorf("fetch article %d: %w", id, err)
	}
	if a == nil {
		return "", fmt.Errorf("%w: article %d", ErrNotFound, id)
	}
	return s.render("article", map[string]any{"article": a})
}

// Job renders the single job alert for an ATS job.
func (s *Service) Job(ctx context.Context, id int64) (string, error) {
	if s.Jobs == nil {
		return "", fmt.Errorf("%w: job %d", ErrNotFound, id)
	}
	j, err := s.Jobs.Job(ctx, id)
	if err != nil {
		return "", fmt.Errorf("fetch job %d: %w", id, err)
	}
	if j == nil {
		return "", fmt.Errorf("%w: job %d", ErrNotFound, id)
	}
	return s.render("job", s.Formatter.Job(*j))
}
