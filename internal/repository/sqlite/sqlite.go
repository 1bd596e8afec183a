// Package sqlite implements the repository interfaces on an embedded SQLite
// database via the pure-Go modernc.org/sqlite driver (no CGo, so the binary
// cross-compiles cleanly).
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/codelove/codelove/internal/apperror"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool. Per-entity repositories share the pool
// via the Users/Submissions/Problems accessors, which keeps the Create
// method names from colliding on one receiver.
type DB struct {
	conn *sql.DB
}

// Users returns the user repository backed by this connection.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Submissions returns the submission repository backed by this connection.
func (db *DB) Submissions() *SubmissionDB { return &SubmissionDB{conn: db.conn} }

// Problems returns the problem repository backed by this connection.
func (db *DB) Problems() *ProblemDB { return &ProblemDB{conn: db.conn} }

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection so a bad path fails here, not on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads during writes; SQLite's default locking
	// would serialize every request in a web server.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always defer it next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	// users: email and handle carry the authoritative uniqueness
	// constraints. external_id is unique only when set — the partial index
	// lets any number of unlinked ("") rows coexist.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			external_id  TEXT NOT NULL DEFAULT '',
			email        TEXT NOT NULL UNIQUE,
			handle       TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_external_id
			ON users(external_id) WHERE external_id != '';
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL REFERENCES users(id),
			problem_slug TEXT NOT NULL,
			status       TEXT NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_submissions_user_created
			ON submissions(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating submissions table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS problems (
			id         TEXT PRIMARY KEY,
			slug       TEXT NOT NULL UNIQUE,
			title      TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			topic      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating problems table: %w", err)
	}

	if err := db.seedProblems(); err != nil {
		return fmt.Errorf("seeding problems: %w", err)
	}

	return nil
}

// uniqueConflict maps a driver UNIQUE-violation error to a field-specific
// apperror.Conflict. The driver reports violations as
// "UNIQUE constraint failed: <table>.<column>"; matching on the column name
// is how we tell the caller which field raced.
//
// Returns nil if err is not a uniqueness violation.
func uniqueConflict(err error) *apperror.AppError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	switch {
	case strings.Contains(msg, "users.email"):
		return apperror.Conflict("email", "Email already registered")
	case strings.Contains(msg, "users.handle"):
		return apperror.Conflict("handle", "Username already taken")
	case strings.Contains(msg, "users.external_id"), strings.Contains(msg, "idx_users_external_id"):
		return apperror.Conflict("externalId", "External identity already linked to another account")
	default:
		return apperror.Conflict("", "record already exists")
	}
}
