package store

import (
	"context"
	"fmt"
	"time"

	"github.com/taskloop/authd/internal/model"
)

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// InsertEvent appends one row to the audit log. The ID and CreatedAt fields
// on e are populated after a successful insert. Rows are never updated or
// deleted; there is deliberately no update or delete operation here.
func (s *Store) InsertEvent(ctx context.Context, e *model.AuthEvent) error {
	e.CreatedAt = time.Now().UTC()
	if e.IPAddress == "" {
		e.IPAddress = "unknown"
	}
	if e.UserAgent == "" {
		e.UserAgent = "unknown"
	}

	if s.driver == "postgres" {
		const q = `INSERT INTO auth_events (user_id, action, success, ip_address, user_agent, error_reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
		err := s.db.QueryRowxContext(ctx, q,
			e.UserID, e.Action, e.Success, e.IPAddress, e.UserAgent, e.ErrorReason, e.CreatedAt).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("insert auth event: %w", err)
		}
		return nil
	}

	const q = `INSERT INTO auth_events (user_id, action, success, ip_address, user_agent, error_reason, created_at)
		VALUES (:user_id, :action, :success, :ip_address, :user_agent, :error_reason, :created_at)`
	result, err := s.db.NamedExecContext(ctx, q, e)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get auth event id: %w", err)
	}
	e.ID = id
	return nil
}

// RecentEvents returns the newest limit audit rows, timestamp descending.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]model.AuthEvent, error) {
	var events []model.AuthEvent
	err := s.db.SelectContext(ctx, &events,
		s.db.Rebind("SELECT * FROM auth_events ORDER BY created_at DESC, id DESC LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("recent auth events: %w", err)
	}
	return events, nil
}

// CountLoginsSince returns the number of successful login events recorded at
// or after t. Used by the admin statistics overview for the trailing-24h
// login count.
func (s *Store) CountLoginsSince(ctx context.Context, t time.Time) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count,
		s.db.Rebind("SELECT COUNT(*) FROM auth_events WHERE action = ? AND success = ? AND created_at >= ?"),
		model.ActionLogin, true, t)
	if err != nil {
		return 0, fmt.Errorf("count logins: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Token revocation set
// ---------------------------------------------------------------------------

// RevokeToken records a token id as revoked until its expiry. Logout calls
// this; Verify consults it. Re-revoking the same jti is a no-op.
func (s *Store) RevokeToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	var q string
	switch s.driver {
	case "mysql":
		q = "INSERT IGNORE INTO revoked_tokens (jti, user_id, revoked_at, expires_at) VALUES (?, ?, ?, ?)"
	default:
		q = "INSERT INTO revoked_tokens (jti, user_id, revoked_at, expires_at) VALUES (?, ?, ?, ?) ON CONFLICT (jti) DO NOTHING"
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(q), jti, userID, time.Now().UTC(), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether the given token id is in the revocation set.
func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		s.db.Rebind("SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?"), jti)
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return count > 0, nil
}

// PurgeExpiredTokens removes revocation rows whose tokens have expired on
// their own; keeping them any longer buys nothing. Returns the number of
// rows removed.
func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM revoked_tokens WHERE expires_at < ?"), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens rows affected: %w", err)
	}
	return n, nil
}
