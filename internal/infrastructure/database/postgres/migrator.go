package postgres

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	apperrors "github.com/moleculab/synthon-sieve/pkg/errors"
)

// Migrate applies all pending schema migrations from sourceURL (e.g.
// "file://migrations") against the database at dsn.  An already up-to-date
// schema is not an error.
func Migrate(sourceURL, dsn string) error {
	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "open migrations")
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "apply migrations")
	}
	return nil
}
