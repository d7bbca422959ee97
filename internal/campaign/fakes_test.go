package campaign_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garnizeh/talentmail/internal/models"
)

type sent struct {
	To       []models.Recipient
	Template int64
	Params   any
}

type fakeMailer struct {
	mu         sync.Mutex
	recipients []models.Recipient
	test       *models.Recipient
	listErr    error
	sendErr    error
	sends      []sent
	listCalls  int
}

func newMailer(n int) *fakeMailer {
	m := &fakeMailer{test: &models.Recipient{Email: "qa@example.com", Name: "Test User"}}
	for i := range n {
		m.recipients = append(m.recipients, models.Recipient{Email: fmt.Sprintf("r%d@example.com", i)})
	}
	return m
}

func (m *fakeMailer) OptInRecipients(ctx context.Context) ([]models.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return m.recipients, m.listErr
}

func (m *fakeMailer) TestRecipient() (models.Recipient, bool) {
	if m.test == nil {
		return models.Recipient{}, false
	}
	return *m.test, true
}

func (m *fakeMailer) Send(ctx context.Context, to []models.Recipient, templateID int64, params any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sends = append(m.sends, sent{To: to, Template: templateID, Params: params})
	return nil
}

func (m *fakeMailer) Sends() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sent(nil), m.sends...)
}

type fakeDiscoverer struct {
	pool []models.Candidate
	err  error
}

func (f *fakeDiscoverer) Discover(ctx context.Context, windowDays int) ([]models.Candidate, error) {
	return f.pool, f.err
}

func pool(n int) []models.Candidate {
	out := make([]models.Candidate, n)
	for i := range out {
		out[i] = models.Candidate{
			CandidateID: int64(100 + i),
			FirstName:   "Cand",
			LastName:    fmt.Sprint(i),
			Employment:  models.Employment{Current: &models.Position{Position: "Estimator"}},
		}
	}
	return out
}

type fakeJobs struct {
	live    []models.Job
	liveErr error
	byID    map[int64]models.Job
	board   map[int64]models.Job
}

func (f *fakeJobs) LiveJobs(ctx context.Context) ([]models.Job, error) {
	return f.live, f.liveErr
}

func (f *fakeJobs) Job(ctx context.Context, id int64) (*models.Job, error) {
	j, ok := f.byID[id]
	if !ok {
		return nil, errors.New("job lookup failed")
	}
	return &j, nil
}

func (f *fakeJobs) JobBoardAd(ctx context.Context, boardID, adID int64) (*models.Job, error) {
	j, ok := f.board[adID]
	if !ok {
		return nil, errors.New("ad lookup failed")
	}
	return &j, nil
}

func jobs(n int) []models.Job {
	out := make([]models.Job, n)
	for i := range out {
		out[i] = models.Job{JobID: int64(i + 1), AdID: int64(500 + i), Title: fmt.Sprintf("Job %d", i+1)}
	}
	return out
}

type fakeArticles struct {
	latest []models.Article
	err    error
}

func (f *fakeArticles) Latest(ctx context.Context, n int) ([]models.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.latest) > n {
		return f.latest[:n], nil
	}
	return f.latest, nil
}

func (f *fakeArticles) All(ctx context.Context) ([]models.ArticleRef, error) {
	out := make([]models.ArticleRef, 0, len(f.latest))
	for _, a := range f.latest {
		out = append(out, models.ArticleRef{ID: a.ID, Title: a.Title})
	}
	return out, nil
}

func (f *fakeArticles) Article(ctx context.Context, id int64) (*models.Article, error) {
	for _, a := range f.latest {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func articles(n int) []models.Article {
	out := make([]models.Article, n)
	for i := range out {
		out[i] = models.Article{ID: int64(i + 1), Title: fmt.Sprintf("Post %d", i+1)}
	}
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Notify(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
	return nil
}

func (n *fakeNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}
