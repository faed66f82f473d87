package store

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"database/sql"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// migrate applies the dialect's embedded migrations in filename order.
// Each migration is stamped by name plus content hash, so editing an
// already-applied file is detected as a new migration rather than skipped.
func (d *sqlStore) migrate(ctx context.Context) error {
	if _, err := d.sql.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  id TEXT PRIMARY KEY,
  applied_at BIGINT NOT NULL
)`); err != nil {
		return err
	}

	dir := "migrations/" + d.dialect
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrationsFS.ReadFile(dir + "/" + name)
		if err != nil {
			return err
		}
		h := sha256.Sum256(body)
		id := name + ":" + hex.EncodeToString(h[:])

		applied, err := d.migrationApplied(ctx, id)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := d.applyMigration(ctx, id, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (d *sqlStore) migrationApplied(ctx context.Context, id string) (bool, error) {
	var v string
	err := d.sql.QueryRowContext(ctx, d.q(
		"SELECT id FROM schema_migrations WHERE id = ?"), id).Scan(&v)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}

func (d *sqlStore) applyMigration(ctx context.Context, id, body string) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, d.q(
		"INSERT INTO schema_migrations(id, applied_at) VALUES(?, ?)"), id, nowUnix()); err != nil {
		return err
	}
	return tx.Commit()
}
