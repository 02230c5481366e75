package pgx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies all pending migrations found in dir to the database.
func Migrate(databaseURL, dir string) error {
	source := dir
	if !strings.Contains(source, "://") {
		source = "file://" + source
	}
	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("[Store][Postgres] Migrations applied", "version", version, "dirty", dirty)
	return nil
}
