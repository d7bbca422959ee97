// Package db embeds the SQLite schema migrations applied at startup and by
// scripts/db_init.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
