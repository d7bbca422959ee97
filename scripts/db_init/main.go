package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	dbfs "github.com/garnizeh/talentmail/db"
	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/db"
)

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}

	applied, err := db.Applied(ctx, database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration listing error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Database %s initialized, migrations: %s\n", cfg.DatabasePath, strings.Join(applied, ", "))
}
