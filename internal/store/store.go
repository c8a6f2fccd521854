package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/taskloop/authd/internal/model"
)

// Config selects the backing database for the credential store.
type Config struct {
	Driver string // "sqlite" (default), "postgres", or "mysql"
	DSN    string // connection string; for sqlite, a file path or empty for in-memory
}

// Store is the credential store: the single source of truth for user
// identities, plus the append-only audit log and the token revocation set.
// It is constructed once at startup and injected into everything that needs
// it; there is no package-level database handle.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the configured database and runs migrations. An empty
// config opens an in-memory SQLite store, which is what the tests use.
func Open(cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	dsn := cfg.DSN
	if driver == "sqlite" {
		if dsn == "" {
			dsn = ":memory:?_journal_mode=WAL"
		} else {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	}

	db, err := sqlx.Connect(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if driver == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(d); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// User CRUD
// ---------------------------------------------------------------------------

// CreateUser inserts a new user. The ID and CreatedAt fields on u are
// populated after a successful insert. Returns ErrEmailExists if the email is
// already taken; the unique index is the guard, not an application-level
// check, so two concurrent creates for the same email yield exactly one
// success.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.CreatedAt = time.Now().UTC()
	if u.Role == "" {
		u.Role = model.RoleUser
	}

	if s.driver == "postgres" {
		const q = `INSERT INTO users (name, email, password_hash, role, created_at)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`
		err := s.db.QueryRowxContext(ctx, q, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt).Scan(&u.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrEmailExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	}

	const q = `INSERT INTO users (name, email, password_hash, role, created_at)
		VALUES (:name, :email, :password_hash, :role, :created_at)`
	result, err := s.db.NamedExecContext(ctx, q, u)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get user id: %w", err)
	}
	u.ID = id
	return nil
}

// GetUserByEmail returns the user with the given email, or ErrNotFound.
// Email comparison is exact (case-sensitive as stored).
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.GetContext(ctx, &u, s.db.Rebind("SELECT * FROM users WHERE email = ?"), email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// GetUserByID returns the user with the given id, or ErrNotFound.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := s.db.GetContext(ctx, &u, s.db.Rebind("SELECT * FROM users WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// UpdateUser writes the user's name, email, password hash, and role back to
// the store. Returns ErrNotFound if the id is absent and ErrEmailExists if
// the new email collides with a different row.
func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	const q = `UPDATE users SET name = :name, email = :email,
		password_hash = :password_hash, role = :role WHERE id = :id`
	result, err := s.db.NamedExecContext(ctx, q, u)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if n == 0 {
		// MySQL reports rows changed, not rows matched, so an update that
		// re-submits identical values lands here for a row that exists.
		if _, err := s.GetUserByID(ctx, u.ID); err != nil {
			return ErrNotFound
		}
	}
	return nil
}

// DeleteUser removes a user by id. Accounts holding the administrator role
// are never deletable; attempting it returns ErrAdminProtected regardless of
// who asks.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM users WHERE id = ? AND role <> ?"), id, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish a protected admin from a missing row.
		if _, err := s.GetUserByID(ctx, id); err == nil {
			return ErrAdminProtected
		}
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin sets last_login_at to now. Callers treat failure as
// best-effort: a login must not fail because this write did.
func (s *Store) TouchLastLogin(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE users SET last_login_at = ? WHERE id = ?"), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch last login rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.SelectContext(ctx, &users, "SELECT * FROM users ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CountUsers returns the total number of user rows.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// CountByRole returns the number of users holding the given role.
func (s *Store) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count,
		s.db.Rebind("SELECT COUNT(*) FROM users WHERE role = ?"), role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}

// PromoteByEmail grants the administrator role to the account with the given
// email. Returns false without error if no such account exists; bootstrap
// seeding calls this for every configured admin address.
func (s *Store) PromoteByEmail(ctx context.Context, email string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE users SET role = ? WHERE email = ?"), model.RoleAdmin, email)
	if err != nil {
		return false, fmt.Errorf("promote user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("promote user rows affected: %w", err)
	}
	return n > 0, nil
}
