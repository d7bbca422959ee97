package repository

import (
	"context"

	"github.com/garnizeh/talentmail/internal/models"
)

// Repository interfaces for persisted state. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

// TokenRepo persists OAuth2 tokens per integration. LoadTokens returns nil, nil
// when nothing has been stored yet.
type TokenRepo interface {
	LoadTokens(ctx context.Context, provider string) (*models.TokenSet, error)
	SaveTokens(ctx context.Context, provider string, t models.TokenSet) error
}

// StateRepo persists one snapshot per campaign. LoadState never fails on a
// missing or unreadable snapshot: it returns the EMPTY default instead.
type StateRepo interface {
	LoadState(ctx context.Context, c models.Campaign) (models.CampaignState, error)
	SaveState(ctx context.Context, s models.CampaignState) error
}

// StateHistoryRepo exposes the audit trail of saved snapshots.
type StateHistoryRepo interface {
	ListStateHistory(ctx context.Context, c models.Campaign, limit int) ([]models.StateHistory, error)
}
