package store

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// dialect captures the driver-specific pieces of the store: the sqlx driver
// name, the schema DDL, and unique-constraint violation detection. The
// credential store runs on SQLite by default; Postgres and MySQL are
// supported for deployments that already operate one.
type dialect struct {
	driverName string
	migrations []string
}

var dialects = map[string]dialect{
	"sqlite": {
		driverName: "sqlite",
		migrations: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'user',
				last_login_at DATETIME,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS auth_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER,
				action TEXT NOT NULL,
				success INTEGER NOT NULL,
				ip_address TEXT NOT NULL DEFAULT 'unknown',
				user_agent TEXT NOT NULL DEFAULT 'unknown',
				error_reason TEXT,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS revoked_tokens (
				jti TEXT PRIMARY KEY,
				user_id INTEGER NOT NULL,
				revoked_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_auth_events_created_at ON auth_events(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_auth_events_action ON auth_events(action)`,
		},
	},
	"postgres": {
		driverName: "pgx",
		migrations: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'user',
				last_login_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS auth_events (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT,
				action TEXT NOT NULL,
				success BOOLEAN NOT NULL,
				ip_address TEXT NOT NULL DEFAULT 'unknown',
				user_agent TEXT NOT NULL DEFAULT 'unknown',
				error_reason TEXT,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS revoked_tokens (
				jti TEXT PRIMARY KEY,
				user_id BIGINT NOT NULL,
				revoked_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_auth_events_created_at ON auth_events(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_auth_events_action ON auth_events(action)`,
		},
	},
	"mysql": {
		driverName: "mysql",
		migrations: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				role VARCHAR(16) NOT NULL DEFAULT 'user',
				last_login_at DATETIME(6),
				created_at DATETIME(6) NOT NULL,
				UNIQUE KEY idx_users_email (email)
			)`,
			`CREATE TABLE IF NOT EXISTS auth_events (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				user_id BIGINT,
				action VARCHAR(32) NOT NULL,
				success BOOLEAN NOT NULL,
				ip_address VARCHAR(64) NOT NULL DEFAULT 'unknown',
				user_agent VARCHAR(512) NOT NULL DEFAULT 'unknown',
				error_reason TEXT,
				created_at DATETIME(6) NOT NULL,
				KEY idx_auth_events_created_at (created_at),
				KEY idx_auth_events_action (action)
			)`,
			`CREATE TABLE IF NOT EXISTS revoked_tokens (
				jti VARCHAR(64) PRIMARY KEY,
				user_id BIGINT NOT NULL,
				revoked_at DATETIME(6) NOT NULL,
				expires_at DATETIME(6) NOT NULL
			)`,
		},
	},
}

// isUniqueViolation reports whether err is a unique-constraint violation from
// any of the supported drivers. The unique index on users.email is the real
// correctness guard for concurrent registrations, so this classification is
// what turns a driver error into ErrEmailExists.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	// modernc.org/sqlite reports constraint violations as plain text.
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
