// Package database is the SQLite store behind the microblog service.
//
// Lookups that find nothing return (nil, nil); callers decide whether that
// is a 404. Timestamps are stored as INTEGER unix nanoseconds in UTC.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"microblog/internal/logging"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

// ErrDuplicate is returned when an insert violates a UNIQUE constraint.
var ErrDuplicate = errors.New("database: duplicate value")

// DB wraps the connection pool.
type DB struct {
	conn *sql.DB
}

// Open connects to the SQLite file at path and creates the schema.
func Open(path string) (*DB, error) {
	// modernc.org/sqlite applies _pragma parameters on every new connection,
	// so foreign keys (and with them ON DELETE CASCADE) are always enforced.
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging %s: %w", path, err)
	}

	db := &DB{conn: conn}
	if err = db.createTables(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	logging.Info().Str("path", path).Msg("database ready")
	return db, nil
}

// Close releases the connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

func (d *DB) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT NOT NULL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password TEXT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS microblogs (
			id TEXT NOT NULL PRIMARY KEY,
			content TEXT NOT NULL DEFAULT '',
			user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS images (
			id TEXT NOT NULL PRIMARY KEY,
			url TEXT NOT NULL,
			alt_text TEXT NULL,
			microblog_id TEXT NOT NULL REFERENCES microblogs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS likes (
			id TEXT NOT NULL PRIMARY KEY,
			microblog_id TEXT NOT NULL REFERENCES microblogs(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT NOT NULL PRIMARY KEY,
			content TEXT NOT NULL,
			microblog_id TEXT NOT NULL REFERENCES microblogs(id) ON DELETE CASCADE,
			user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
			guest_name TEXT NULL,
			guest_email TEXT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_microblogs_created_at ON microblogs (created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_images_microblog_id ON images (microblog_id);`,
		`CREATE INDEX IF NOT EXISTS idx_likes_microblog_id ON likes (microblog_id);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_microblog_id ON comments (microblog_id, created_at);`,
	}
	for _, s := range stmts {
		if _, err := d.conn.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
