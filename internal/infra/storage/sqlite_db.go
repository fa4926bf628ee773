package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// PoolConfig bounds the connection pool of the database handle.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// InitSQLite initializes the local SQLite database and creates the necessary schemas
// for persisting game summaries and the immutable event log.
func InitSQLite(dbPath string, pool PoolConfig) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	// Create tables
	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS games (
			game_id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'active',
			turn INTEGER NOT NULL DEFAULT 0,
			cured INTEGER NOT NULL DEFAULT 0,
			panic_level INTEGER NOT NULL DEFAULT 0,
			infection_rate INTEGER NOT NULL,
			seed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			event_type TEXT NOT NULL,
			turn INTEGER NOT NULL,
			payload TEXT NOT NULL,
			UNIQUE (game_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_game_id ON events(game_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(game_id, event_type);`,
		`CREATE INDEX IF NOT EXISTS idx_games_updated ON games(updated_at);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
