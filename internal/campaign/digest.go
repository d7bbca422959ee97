package campaign

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/garnizeh/talentmail/internal/ai"
	"github.com/garnizeh/talentmail/internal/discovery"
	"github.com/garnizeh/talentmail/internal/format"
	"github.com/garnizeh/talentmail/internal/models"
)

// Discoverer finds recently interviewed candidates.
type Discoverer interface {
	Discover(ctx context.Context, windowDays int) ([]models.Candidate, error)
}

// DigestSource builds the candidate digest: a random selection of recently
// interviewed candidates with summaries.
type DigestSource struct {
	Discoverer  Discoverer
	Summarizer  ai.Summarizer
	Formatter   *format.Formatter
	WindowDays  int
	SelectCount int
	Template    int64
	// Rand drives the selection. Nil uses the global source.
	Rand *rand.Rand
}

func (d *DigestSource) Campaign() models.Campaign { return models.CampaignDigest }
func (d *DigestSource) Label() string             { return "A-List" }
func (d *DigestSource) TemplateID() int64         { return d.Template }

func (d *DigestSource) Generate(ctx context.Context, s *models.CampaignState) (string, error) {
	window := d.WindowDays
	if window <= 0 {
		window = 21
	}
	k := d.SelectCount
	if k <= 0 {
		k = 5
	}

	pool, err := d.Discoverer.Discover(ctx, window)
	if err != nil {
		return "", fmt.Errorf("discover candidates: %w", err)
	}
	if len(pool) == 0 {
		return "", fmt.Errorf("%w: no candidates found with interviews in the last %d days", ErrNoMaterial, window)
	}

	picked := discovery.SelectRandom(pool, k, d.Rand)
	summaries := ai.SummarizeAll(ctx, d.Summarizer, picked)

	f := d.Formatter
	if f == nil {
		f = format.New("", "")
	}
	items := make([]models.CandidateItem, len(picked))
	for i, c := range picked {
		items[i] = f.Candidate(c, i+1, summaries[i])
	}

	s.Candidates = items
	s.PoolSize = len(pool)
	return fmt.Sprintf("Generated A-List with %d candidates from pool of %d", len(items), len(pool)), nil
}

func (d *DigestSource) Params(s models.CampaignState) any {
	return map[string]any{"candidates": s.Candidates}
}
