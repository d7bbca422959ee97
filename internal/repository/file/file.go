// Package file stores tokens and campaign snapshots as pretty-printed JSON files.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/pkg/repository"
)

var _ repository.TokenRepo = (*Store)(nil)
var _ repository.StateRepo = (*Store)(nil)

// Store keeps one file per campaign and per token provider under dir.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) statePath(c models.Campaign) string {
	return filepath.Join(s.dir, fmt.Sprintf(".%s-state.json", c))
}

func (s *Store) tokenPath(provider string) string {
	return filepath.Join(s.dir, fmt.Sprintf(".%s-tokens.json", provider))
}

func (s *Store) LoadState(ctx context.Context, c models.Campaign) (models.CampaignState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.statePath(c))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("could not read state file, using EMPTY", slog.String("campaign", string(c)), slog.Any("err", err))
		}
		return models.EmptyState(c), nil
	}

	var st models.CampaignState
	if err := json.Unmarshal(data, &st); err != nil || st.State == "" {
		s.logger.Warn("unparsable state file, using EMPTY", slog.String("campaign", string(c)), slog.Any("err", err))
		return models.EmptyState(c), nil
	}
	st.Campaign = c
	return st, nil
}

func (s *Store) SaveState(ctx context.Context, st models.CampaignState) error {
	if !st.Campaign.Valid() {
		return fmt.Errorf("unknown campaign %q", st.Campaign)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(s.statePath(st.Campaign), st)
}

func (s *Store) LoadTokens(ctx context.Context, provider string) (*models.TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.tokenPath(provider))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var t models.TokenSet
	if err := json.Unmarshal(data, &t); err != nil {
		s.logger.Warn("unparsable token file", slog.String("provider", provider), slog.Any("err", err))
		return nil, nil
	}
	return &t, nil
}

func (s *Store) SaveTokens(ctx context.Context, provider string, t models.TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(s.tokenPath(provider), t)
}

// writeJSON replaces path atomically via a temp file in the same directory.
func (s *Store) writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
