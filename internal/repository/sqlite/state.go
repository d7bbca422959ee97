package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/garnizeh/talentmail/internal/models"
)

// LoadState returns the stored snapshot for c, or the EMPTY default when the
// row is missing or its JSON cannot be decoded.
func (r *SQLiteRepo) LoadState(ctx context.Context, c models.Campaign) (models.CampaignState, error) {
	row := r.conn.QueryRow(ctx, `SELECT snapshot_json FROM campaign_states WHERE campaign = ?`, c)
	var snapshot string
	if err := row.Scan(&snapshot); err != nil {
		if err == sql.ErrNoRows {
			return models.EmptyState(c), nil
		}
		return models.CampaignState{}, err
	}

	var s models.CampaignState
	if err := json.Unmarshal([]byte(snapshot), &s); err != nil || s.State == "" {
		r.logger.Warn("unreadable campaign snapshot, using EMPTY", slog.String("campaign", string(c)), slog.Any("err", err))
		return models.EmptyState(c), nil
	}
	s.Campaign = c
	return s, nil
}

// SaveState upserts the snapshot, appends it to the history and prunes the
// history beyond Retention, all in one transaction.
func (r *SQLiteRepo) SaveState(ctx context.Context, s models.CampaignState) error {
	if !s.Campaign.Valid() {
		return fmt.Errorf("unknown campaign %q", s.Campaign)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	snapshot := string(b)

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var curVersion sql.NullInt64
	exists := true
	if err := tx.QueryRowContext(ctx, `SELECT version FROM campaign_states WHERE campaign = ?`, s.Campaign).Scan(&curVersion); err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("query existing state: %w", err)
		}
		exists = false
	}

	now := r.stamp()
	var newVersion int64 = 1
	if exists {
		newVersion = curVersion.Int64 + 1
		if _, err := tx.ExecContext(ctx, `UPDATE campaign_states SET state = ?, snapshot_json = ?, version = ?, updated = ? WHERE campaign = ?`, s.State, snapshot, newVersion, now, s.Campaign); err != nil {
			return fmt.Errorf("update state: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `INSERT INTO campaign_states (campaign, state, snapshot_json, version, updated) VALUES (?, ?, ?, ?, ?)`, s.Campaign, s.State, snapshot, newVersion, now); err != nil {
			return fmt.Errorf("insert state: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO campaign_state_history (campaign, state, snapshot_json, version, created) VALUES (?, ?, ?, ?, ?)`, s.Campaign, s.State, snapshot, newVersion, now); err != nil {
		return fmt.Errorf("create state history: %w", err)
	}
	if r.Retention > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_state_history WHERE campaign = ? AND id NOT IN (
			SELECT id FROM campaign_state_history WHERE campaign = ? ORDER BY id DESC LIMIT ?)`, s.Campaign, s.Campaign, r.Retention); err != nil {
			return fmt.Errorf("prune state history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// ListStateHistory returns saved snapshots for c, newest first.
func (r *SQLiteRepo) ListStateHistory(ctx context.Context, c models.Campaign, limit int) ([]models.StateHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.conn.QueryRows(ctx, `SELECT id, campaign, state, snapshot_json, created FROM campaign_state_history WHERE campaign = ? ORDER BY id DESC LIMIT ?`, c, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StateHistory
	for rows.Next() {
		var h models.StateHistory
		if err := rows.Scan(&h.ID, &h.Campaign, &h.State, &h.SnapshotJSON, &h.Created); err != nil {
			return nil, err
		}
		out = append(out, h)
	}

	return out, rows.Err()
}
