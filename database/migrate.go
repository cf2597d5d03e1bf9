package database

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"gamehall/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrationsWithURL applies all pending migrations against the given
// database, used by test harnesses that bring up their own instance
func RunMigrationsWithURL(databaseURL string) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// MigrateUp applies all pending migrations
func MigrateUp() error {
	m, err := newMigrator(config.Get().DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No pending migrations")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Println("Migrations applied")
	return nil
}

// MigrateDown rolls back the given number of migrations
func MigrateDown(steps string) error {
	m, err := newMigrator(config.Get().DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	var n int
	if _, err := fmt.Sscanf(steps, "%d", &n); err != nil || n < 1 {
		return fmt.Errorf("invalid step count %q", steps)
	}

	if err := m.Steps(-n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("Nothing to roll back")
			return nil
		}
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	log.Printf("Rolled back %d migration(s)", n)
	return nil
}

// MigrateStatus prints the current migration version
func MigrateStatus() error {
	m, err := newMigrator(config.Get().DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("No migrations applied yet")
			return nil
		}
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	log.Printf("Migration version: %d (dirty: %v)", version, dirty)
	return nil
}
