package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var baselineSQL string

// migration moves the database from version-1 to version.
type migration struct {
	version int
	name    string
	sql     string
}

// migrations are applied in order; the database's PRAGMA user_version
// records the last one applied.
var migrations = []migration{
	{version: 1, name: "baseline", sql: baselineSQL},
	{version: 2, name: "session index", sql: `
DROP TABLE IF EXISTS schema_version;
CREATE INDEX IF NOT EXISTS idx_upload_history_session ON upload_history(session_id);
`},
}

// ErrSchemaTooNew reports a database written by a newer lcdbridge.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

func latestVersion() int {
	return migrations[len(migrations)-1].version
}

func (s *Store) userVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// migrate applies every migration newer than the database.
func (s *Store) migrate(ctx context.Context) error {
	current, err := s.userVersion(ctx)
	if err != nil {
		return err
	}
	if current > latestVersion() {
		return fmt.Errorf("%w: %s has version %d, this build knows %d",
			ErrSchemaTooNew, s.path, current, latestVersion())
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	// PRAGMA arguments cannot be bound.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("record schema version %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}
	return nil
}
