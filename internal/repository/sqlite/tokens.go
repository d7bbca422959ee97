package sqlite

import (
	"context"
	"database/sql"

	"github.com/garnizeh/talentmail/internal/models"
)

func (r *SQLiteRepo) LoadTokens(ctx context.Context, provider string) (*models.TokenSet, error) {
	row := r.conn.QueryRow(ctx, `SELECT access_token, refresh_token, expires_at FROM oauth_tokens WHERE provider = ?`, provider)
	var t models.TokenSet
	if err := row.Scan(&t.AccessToken, &t.RefreshToken, &t.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteRepo) SaveTokens(ctx context.Context, provider string, t models.TokenSet) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at, updated) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET access_token = excluded.access_token, refresh_token = excluded.refresh_token, expires_at = excluded.expires_at, updated = excluded.updated`,
		provider, t.AccessToken, t.RefreshToken, t.ExpiresAt, r.stamp())
	return err
}
