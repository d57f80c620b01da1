// Package persistence provides SQLite-based storage of simulation runs.
// The engine never imports it; callers record cycles as they come out of a run.
package persistence

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; sqlite serializes anyway.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.pragmas(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pragmas: %w", err)
	}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) pragmas() error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.conn.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		cycles INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		config_json TEXT NOT NULL,
		final_cycle INTEGER NOT NULL DEFAULT 0,
		alive_regions INTEGER NOT NULL DEFAULT 0,
		total_population REAL NOT NULL DEFAULT 0,
		total_trades INTEGER NOT NULL DEFAULT 0,
		total_events INTEGER NOT NULL DEFAULT 0,
		climate_stress REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS cycles (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cycle INTEGER NOT NULL,
		season TEXT NOT NULL,
		trade_count INTEGER NOT NULL,
		event_count INTEGER NOT NULL,
		collapse_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, cycle)
	);

	CREATE TABLE IF NOT EXISTS region_history (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cycle INTEGER NOT NULL,
		region TEXT NOT NULL,
		water REAL NOT NULL,
		food REAL NOT NULL,
		energy REAL NOT NULL,
		land REAL NOT NULL,
		population REAL NOT NULL,
		happiness REAL NOT NULL,
		tech_level REAL NOT NULL,
		action TEXT NOT NULL,
		PRIMARY KEY (run_id, cycle, region)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cycle INTEGER NOT NULL,
		type TEXT NOT NULL,
		region TEXT NOT NULL,
		season TEXT NOT NULL,
		severity REAL NOT NULL,
		is_global INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cycle INTEGER NOT NULL,
		buyer TEXT NOT NULL,
		seller TEXT NOT NULL,
		resource_bought TEXT NOT NULL,
		amount REAL NOT NULL,
		resource_sold TEXT NOT NULL,
		exchange_amount REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS regions (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		biome TEXT NOT NULL,
		alive INTEGER NOT NULL,
		collapse_cycle INTEGER NOT NULL,
		population REAL NOT NULL,
		happiness REAL NOT NULL,
		tech_level REAL NOT NULL,
		resources_json TEXT NOT NULL,
		max_resources_json TEXT NOT NULL,
		neighbors_json TEXT NOT NULL,
		PRIMARY KEY (run_id, name)
	);

	CREATE TABLE IF NOT EXISTS relationships (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		region_a TEXT NOT NULL,
		region_b TEXT NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (run_id, region_a, region_b)
	);

	CREATE TABLE IF NOT EXISTS agents (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		region TEXT NOT NULL,
		epsilon REAL NOT NULL,
		states_visited INTEGER NOT NULL,
		decisions INTEGER NOT NULL,
		dominant_strategy TEXT NOT NULL,
		average_reward REAL NOT NULL,
		PRIMARY KEY (run_id, region)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_cycle ON events(run_id, cycle);
	CREATE INDEX IF NOT EXISTS idx_trades_run_cycle ON trades(run_id, cycle);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// CreateRun registers a run before its first cycle is recorded.
func (db *DB) CreateRun(id string, seed int64, cycles int, configJSON string) error {
	_, err := db.conn.Exec(
		`INSERT INTO runs (id, seed, cycles, started_at, config_json) VALUES (?, ?, ?, ?, ?)`,
		id, seed, cycles, time.Now().UTC().Format(time.RFC3339), configJSON,
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", id, err)
	}
	slog.Debug("run registered", "run", id, "seed", seed)
	return nil
}

// DeleteRun removes a run and everything recorded for it.
func (db *DB) DeleteRun(id string) error {
	_, err := db.conn.Exec("DELETE FROM runs WHERE id = ?", id)
	return err
}

// SaveMeta stores a key-value pair in database metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
