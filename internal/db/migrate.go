package db

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
)

const createMigrations = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied INTEGER NOT NULL
)`

// Migrate applies the migrations/*.sql files of fsys that schema_migrations
// does not list yet, in lexical order. Each file commits together with its
// bookkeeping row, so a failed file is retried on the next run.
func Migrate(ctx context.Context, d *DB, fsys fs.FS) error {
	if _, err := d.Exec(ctx, createMigrations); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	done, err := Applied(ctx, d)
	if err != nil {
		return err
	}

	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(files)

	for _, f := range files {
		version := strings.TrimSuffix(path.Base(f), ".sql")
		if slices.Contains(done, version) {
			continue
		}
		if err := apply(ctx, d, fsys, f, version); err != nil {
			return err
		}
		d.logger.Info("migration applied", slog.String("version", version))
	}
	return nil
}

func apply(ctx context.Context, d *DB, fsys fs.FS, file, version string) error {
	body, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("exec migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, unixepoch())`, version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

// Applied lists the recorded migration versions in order.
func Applied(ctx context.Context, d *DB) ([]string, error) {
	rows, err := d.QueryRows(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
