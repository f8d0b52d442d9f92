// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain. Queries go through sqlx, which scans rows straight into the
// `db`-tagged model structs.
//
// The schema is created at startup with CREATE TABLE IF NOT EXISTS. There is
// no versioned migration mechanism.
package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sqlx connection pool and implements both
// repository.UserRepository and repository.TripRepository.
type DB struct {
	conn *sqlx.DB
	now  func() time.Time
}

// New opens (creating if needed) the database at dbPath and creates the
// schema.
//
// dbPath examples:
//   - "data/travel.db" → file-based database
//   - ":memory:"       → in-memory database, used by tests
//
// Foreign keys are enabled through the DSN so that every pooled connection
// gets the pragma, not only the first one.
func New(dbPath string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is a separate, empty database.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a trip or user is being written.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := NewWithConn(conn)
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// NewWithConn wraps an existing connection without touching the schema.
// Tests use it with go-sqlmock.
func NewWithConn(conn *sqlx.DB) *DB {
	return &DB{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// image, cost and rating are nullable: NULL means "not supplied".
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS trips (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       TEXT NOT NULL,
			description TEXT NOT NULL,
			location    TEXT NOT NULL,
			image       TEXT,
			cost        REAL,
			places      TEXT NOT NULL,
			rating      INTEGER,
			user_id     INTEGER NOT NULL REFERENCES users(id),
			created_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trips_created_at ON trips(created_at);
		CREATE INDEX IF NOT EXISTS idx_trips_user_id ON trips(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating trips table: %w", err)
	}

	return nil
}
