package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var (
	ErrQuakeNotFound = errors.New("quake not found")
)

type DB struct {
	*sql.DB
}

// New creates a new database connection and initializes schema
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection keeps the pragmas below in effect for every query.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	d := &DB{db}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return d, nil
}

// initSchema creates database tables if they don't exist
func (db *DB) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS quakes (
			external_id TEXT PRIMARY KEY,
			feed_url TEXT NOT NULL,
			title TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			attribution TEXT NOT NULL DEFAULT '',
			published_at TIMESTAMP,
			latitude REAL,
			longitude REAL,
			distance_km REAL,
			magnitude REAL,
			first_seen TIMESTAMP NOT NULL,
			last_seen TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS quake_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('generated', 'updated', 'removed')),
			at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS viewed_quakes (
			external_id TEXT PRIMARY KEY,
			viewed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (external_id) REFERENCES quakes(external_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_quakes_published_at ON quakes(published_at);
		CREATE INDEX IF NOT EXISTS idx_quake_events_external_id ON quake_events(external_id);
		CREATE INDEX IF NOT EXISTS idx_quake_events_at ON quake_events(at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}
