package db

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema means a previous migration failed halfway and needs a manual fix.
var ErrDirtySchema = errors.New("database schema is dirty")

func newMigrator(dsn string) (*migrate.Migrate, error) {
	conn, err := openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open db for migrations: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migration source: %w", err)
	}
	drv, err := postgres.WithInstance(conn, &postgres.Config{MigrationsTable: "mall_schema_migrations"})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, "postgres", drv)
}

// RunMigrations brings the schema, including the stock trigger, up to date.
func RunMigrations(dsn string, logger *log.Logger) error {
	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Printf("schema has no migrations applied")
		return nil
	case err != nil:
		return fmt.Errorf("schema version: %w", err)
	case dirty:
		return fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	}
	logger.Printf("schema at version %d", version)
	return nil
}
