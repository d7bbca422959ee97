package mock

import (
	"context"
	"sync"

	"github.com/garnizeh/talentmail/internal/models"
)

// Test helpers and mocks
type Mocks struct {
	Tokens *TokenRepo
	States *StateRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		Tokens: &TokenRepo{},
		States: NewStateRepo(),
	}
}

type TokenRepo struct {
	mu      sync.Mutex
	Stored  map[string]models.TokenSet
	LoadErr error
	SaveErr error
	Saves   int
}

func (m *TokenRepo) LoadTokens(ctx context.Context, provider string) (*models.TokenSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	t, ok := m.Stored[provider]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *TokenRepo) SaveTokens(ctx context.Context, provider string, t models.TokenSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.Stored == nil {
		m.Stored = map[string]models.TokenSet{}
	}
	m.Stored[provider] = t
	m.Saves++
	return nil
}

// Get returns the stored tokens for provider.
func (m *TokenRepo) Get(provider string) (models.TokenSet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Stored[provider]
	return t, ok
}

type StateRepo struct {
	mu      sync.Mutex
	stored  map[models.Campaign]models.CampaignState
	LoadErr error
	SaveErr error
	saves   []models.CampaignState
}

func NewStateRepo() *StateRepo {
	return &StateRepo{stored: map[models.Campaign]models.CampaignState{}}
}

func (m *StateRepo) LoadState(ctx context.Context, c models.Campaign) (models.CampaignState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return models.CampaignState{}, m.LoadErr
	}
	s, ok := m.stored[c]
	if !ok {
		return models.EmptyState(c), nil
	}
	return s, nil
}

func (m *StateRepo) SaveState(ctx context.Context, s models.CampaignState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.stored[s.Campaign] = s
	m.saves = append(m.saves, s)
	return nil
}

// SetSaveErr changes the save failure under the lock, for use while
// background transitions may be running.
func (m *StateRepo) SetSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveErr = err
}

// Put seeds a snapshot without recording a save.
func (m *StateRepo) Put(s models.CampaignState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[s.Campaign] = s
}

// Saves returns a copy of every snapshot saved so far.
func (m *StateRepo) Saves() []models.CampaignState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CampaignState, len(m.saves))
	copy(out, m.saves)
	return out
}

// ListStateHistory replays recorded saves for c, newest first.
func (m *StateRepo) ListStateHistory(ctx context.Context, c models.Campaign, limit int) ([]models.StateHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StateHistory
	for i := len(m.saves) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		s := m.saves[i]
		if s.Campaign != c {
			continue
		}
		out = append(out, models.StateHistory{ID: int64(i + 1), Campaign: s.Campaign, State: s.State})
	}
	return out, nil
}
