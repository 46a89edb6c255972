package postgres

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/pressly/goose/v3"
)

// Migrations holds the outbox schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const (
	// MigrationsDir is the directory inside Migrations that holds the SQL files.
	MigrationsDir = "migrations"
	// MigrationsTable is the goose version table owned by the relay.
	MigrationsTable = "goose_outbox_relay"
)

// RunMigrations applies pending migrations from an embedded filesystem.
// The fsys should contain SQL files in the subdir directory (typically "migrations").
// tableName must be unique per schema owner so that goose version tracking
// doesn't collide when several services share a database.
// Opens a temporary database/sql connection (separate from the pgxpool) because
// goose requires database/sql. The connection is closed after migration completes.
func RunMigrations(databaseURL string, fsys fs.FS, subdir, tableName string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migration: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(fsys)
	goose.SetTableName(tableName)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, subdir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
