package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/angelmondragon/shopcart-backend/pkg/config"
	"github.com/pressly/goose/v3"
)

// DefaultDir is where `create` writes new migrations on disk; one subdirectory per dialect.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*/*.sql
var embedded embed.FS

// Embedded exposes the compiled-in migration tree (postgres/ and sqlite/).
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("migrations fs: %v", err))
	}
	return sub
}

func gooseDialect(dialect string) goose.Dialect {
	if dialect == config.DBDriverSQLite {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// NewProvider builds a goose provider over the embedded migrations for dialect.
func NewProvider(db *sql.DB, dialect string) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	fsys, err := fs.Sub(Embedded(), dialectDir(dialect))
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", dialect, err)
	}
	provider, err := goose.NewProvider(gooseDialect(dialect), db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

func dialectDir(dialect string) string {
	if dialect == config.DBDriverSQLite {
		return config.DBDriverSQLite
	}
	return config.DBDriverPostgres
}

// Run executes up or down against the embedded migrations.
func Run(ctx context.Context, db *sql.DB, dialect string, command string) error {
	provider, err := NewProvider(db, dialect)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		if _, err := provider.Up(ctx); err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
	case "down":
		if _, err := provider.Down(ctx); err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
	default:
		return fmt.Errorf("unsupported migrate command %q", command)
	}
	return nil
}

// Status lists every known migration and whether it has been applied.
func Status(ctx context.Context, db *sql.DB, dialect string) ([]*goose.MigrationStatus, error) {
	provider, err := NewProvider(db, dialect)
	if err != nil {
		return nil, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	return statuses, nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dialect string, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	provider, err := NewProvider(db, dialect)
	if err != nil {
		return err
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil

	case current < target:
		if _, err := provider.UpTo(ctx, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil

	default:
		if _, err := provider.DownTo(ctx, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}
