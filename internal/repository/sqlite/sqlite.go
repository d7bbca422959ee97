// Package sqlite stores OAuth tokens and campaign snapshots in SQLite. Every
// saved snapshot is also appended to a per-campaign history for auditing.
package sqlite

import (
	"io"
	"log/slog"
	"time"

	"github.com/garnizeh/talentmail/internal/db"
	"github.com/garnizeh/talentmail/pkg/repository"
)

const defaultRetention = 200

type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
	now    func() time.Time

	// Retention is the number of history rows kept per campaign.
	Retention int
}

var (
	_ repository.TokenRepo        = (*SQLiteRepo)(nil)
	_ repository.StateRepo        = (*SQLiteRepo)(nil)
	_ repository.StateHistoryRepo = (*SQLiteRepo)(nil)
)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &SQLiteRepo{conn: conn, logger: logger, now: time.Now, Retention: defaultRetention}
}

func (r *SQLiteRepo) stamp() int64 {
	return r.now().UTC().UnixMilli()
}
