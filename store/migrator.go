package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

// The schema is a single table, so the migrator only bootstraps fresh
// installations from the embedded LATEST.sql of the active driver.
// Incremental migrations can be layered on later with the same file layout:
// store/migration/{driver}/LATEST.sql.

//go:embed migration
var migrationFS embed.FS

// LatestSchemaFileName is the name of the latest schema file, used to
// initialize fresh installations with the current schema.
const LatestSchemaFileName = "LATEST.sql"

// Migrate applies the latest schema if the database is not initialized yet.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return nil
	}

	filePath := fmt.Sprintf("migration/%s/%s", s.profile.Driver, LatestSchemaFileName)
	buf, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema file %q", filePath)
	}

	if _, err := s.driver.GetDB().ExecContext(ctx, string(buf)); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}

	slog.Info("database initialized",
		slog.String("driver", s.profile.Driver),
		slog.String("schema", filePath))
	return nil
}
