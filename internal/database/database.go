// Package database provides the local library cache database
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates all required tables
func (db *DB) Migrate() error {
	schema := `
	-- Accounts that have logged in on this machine
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		display_name VARCHAR(255),
		url TEXT,
		cover_url TEXT,
		developer BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMP NOT NULL
	);

	-- Games seen through my-games, owned keys or collections
	CREATE TABLE IF NOT EXISTS games (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		short_text TEXT,
		url TEXT NOT NULL,
		cover_url TEXT,
		classification VARCHAR(50),
		min_price BIGINT NOT NULL DEFAULT 0,
		p_windows BOOLEAN NOT NULL DEFAULT FALSE,
		p_linux BOOLEAN NOT NULL DEFAULT FALSE,
		p_osx BOOLEAN NOT NULL DEFAULT FALSE,
		p_android BOOLEAN NOT NULL DEFAULT FALSE,
		data JSONB,
		updated_at TIMESTAMP NOT NULL
	);

	-- Which user develops which game
	CREATE TABLE IF NOT EXISTS developed_games (
		user_id BIGINT NOT NULL,
		game_id BIGINT NOT NULL REFERENCES games(id),
		PRIMARY KEY (user_id, game_id)
	);

	-- Purchases (download keys)
	CREATE TABLE IF NOT EXISTS owned_keys (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		game_id BIGINT NOT NULL REFERENCES games(id),
		downloads BIGINT NOT NULL DEFAULT 0,
		created_at VARCHAR(64),
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS collections (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		title TEXT NOT NULL,
		games_count BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	);

	-- One row per library sync
	CREATE TABLE IF NOT EXISTS sync_runs (
		id UUID PRIMARY KEY,
		user_id BIGINT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		games INTEGER NOT NULL DEFAULT 0,
		owned_keys INTEGER NOT NULL DEFAULT 0,
		collections INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_owned_keys_user ON owned_keys(user_id);
	CREATE INDEX IF NOT EXISTS idx_owned_keys_game ON owned_keys(game_id);
	CREATE INDEX IF NOT EXISTS idx_collections_user ON collections(user_id);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Reset drops all tables (for testing)
func (db *DB) Reset() error {
	_, err := db.Exec(`
		DROP TABLE IF EXISTS sync_runs CASCADE;
		DROP TABLE IF EXISTS collections CASCADE;
		DROP TABLE IF EXISTS owned_keys CASCADE;
		DROP TABLE IF EXISTS developed_games CASCADE;
		DROP TABLE IF EXISTS games CASCADE;
		DROP TABLE IF EXISTS users CASCADE;
	`)
	return err
}

// CleanData truncates all tables without dropping them (for testing)
func (db *DB) CleanData() error {
	_, err := db.Exec(`
		TRUNCATE TABLE sync_runs, collections, owned_keys, developed_games,
		               games, users CASCADE;
	`)
	return err
}
