package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// migration is a single forward-only schema step. Index+1 is its version.
type migration struct {
	name string
	up   string
}

// migrations is the ordered schema history. Append only; never edit a shipped entry.
var migrations = []migration{
	{
		name: "baseline",
		up: `
		CREATE TABLE IF NOT EXISTS item (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			image TEXT NOT NULL DEFAULT 'default.jpg',
			available INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	},
	{
		name: "item_category",
		up:   `ALTER TABLE item ADD COLUMN category TEXT NOT NULL DEFAULT '';`,
	},
}

// LatestSchemaVersion returns the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return len(migrations)
}

// SchemaVersion returns the applied schema version, or 0 for a fresh database.
// PRE: db is a valid database connection
// POST: returns the highest recorded version
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("schema version lookup: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("schema version read: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB applies every pending migration in its own transaction.
// A file-backed database with pending migrations is copied to
// <dbPath>.bak-v<current> first.
// PRE: db is a valid database connection; dbPath is the file behind db or ":memory:"
// POST: schema is at LatestSchemaVersion()
func MigrateDB(db *sql.DB, dbPath string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current > LatestSchemaVersion() {
		return fmt.Errorf("database schema v%d is newer than this binary (v%d)", current, LatestSchemaVersion())
	}
	if current == LatestSchemaVersion() {
		return nil
	}

	if current > 0 && dbPath != "" && dbPath != ":memory:" {
		// fold the WAL into the main file so the copy is complete
		db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
		if err := backupFile(dbPath, fmt.Sprintf("%s.bak-v%d", dbPath, current)); err != nil {
			return fmt.Errorf("failed to back up database before migrating: %w", err)
		}
	}

	for i := current; i < len(migrations); i++ {
		m := migrations[i]
		version := i + 1
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", version, m.name, err)
		}
		if _, err := tx.Exec(m.up); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version, name) VALUES (?, ?)`, version, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): record version: %w", version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d (%s): commit: %w", version, m.name, err)
		}
		slog.Info("schema_migrated", "version", version, "name", m.name)
	}
	return nil
}

func backupFile(src, dst string) error {
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
