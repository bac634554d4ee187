// Package database implements the reservation, policy and override
// stores on SQLite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"mesabook/internal/capacity"
)

// DB wraps the sql connection pool.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// querier is the subset of sql.DB / sql.Tx the queries run against.
// Having one implementation parameterized over it avoids duplicate
// transactional and non-transactional copies of every read.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewDB opens the database at path and creates tables if they don't
// exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL for concurrent readers, busy timeout for writer contention,
	// and immediate transactions so the admission path takes the write
	// lock at BEGIN instead of racing for it at commit.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS restaurants (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			slot_interval INTEGER NOT NULL DEFAULT 30,
			min_party_size INTEGER NOT NULL DEFAULT 1,
			max_party_size INTEGER NOT NULL DEFAULT 12,
			max_covers_per_slot INTEGER,
			max_covers_per_day INTEGER,
			allow_overbooking BOOLEAN NOT NULL DEFAULT 0,
			overbooking_pct INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS operating_hours (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			restaurant_id INTEGER NOT NULL,
			weekday INTEGER NOT NULL,
			open_time TEXT NOT NULL DEFAULT '',
			close_time TEXT NOT NULL DEFAULT '',
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			UNIQUE(restaurant_id, weekday),
			FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
		)`,

		`CREATE TABLE IF NOT EXISTS slot_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			restaurant_id INTEGER NOT NULL,
			weekday INTEGER NOT NULL,
			slot TEXT NOT NULL,
			max_covers INTEGER NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(restaurant_id, weekday, slot),
			FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			restaurant_id INTEGER NOT NULL,
			confirmation_code TEXT UNIQUE NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			party_size INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed',
			customer_name TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			comment TEXT NOT NULL DEFAULT '',
			overbook_warning BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			version INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_reservations_day ON reservations(restaurant_id, date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_slot ON reservations(restaurant_id, date, time, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_slot ON slot_overrides(restaurant_id, weekday, slot)`,
		`CREATE INDEX IF NOT EXISTS idx_hours_restaurant ON operating_hours(restaurant_id, weekday)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Tx is the store view inside one transaction.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a single immediate transaction. Any error
// rolls back; busy/locked failures are surfaced as serialization
// conflicts so callers can retry the whole check-then-write sequence.
func (db *DB) WithTx(ctx context.Context, fn func(tx capacity.ReservationTx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapConflict(fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Tx{tx: tx}); err != nil {
		return mapConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return mapConflict(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// mapConflict translates sqlite contention errors into the retryable
// serialization-conflict sentinel.
func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return fmt.Errorf("%w: %v", capacity.ErrSerializationConflict, err)
	}
	return err
}

var (
	_ capacity.TxRunner           = (*DB)(nil)
	_ capacity.ReservationTx      = (*Tx)(nil)
	_ capacity.CoverCounter       = (*DB)(nil)
	_ capacity.PolicyRepository   = (*DB)(nil)
	_ capacity.OverrideRepository = (*DB)(nil)
)
