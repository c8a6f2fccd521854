package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskloop/authd/internal/audit"
	"github.com/taskloop/authd/internal/auth"
	"github.com/taskloop/authd/internal/model"
	"github.com/taskloop/authd/internal/store"
)

// MinPasswordLength is the minimum accepted password length. Checked before
// hashing so attacker-controlled input never reaches bcrypt unvalidated.
const MinPasswordLength = 6

var (
	ErrMissingFields      = errors.New("name, email and password are required")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")

	// ErrInvalidCredentials is returned for both unknown-email and
	// wrong-password logins. The text is identical on purpose: error
	// messages must not reveal whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// RequestMeta carries best-effort provenance from the transport into the
// audit log.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// UserUpdate is a partial update applied by the admin surface. Nil fields
// are left unchanged.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *model.Role
}

// AuthService implements every gateway operation as a pure input -> result
// function. Both transports (the persistent server and the per-invocation
// function) call into the same instance type, so their behavior cannot
// drift.
type AuthService struct {
	store  *store.Store
	tokens *auth.Tokens
	policy auth.Policy
	audit  *audit.Recorder
	logger *slog.Logger
}

func NewAuthService(st *store.Store, tokens *auth.Tokens, policy auth.Policy, rec *audit.Recorder, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:  st,
		tokens: tokens,
		policy: policy,
		audit:  rec,
		logger: logger,
	}
}

// Tokens exposes the token verifier for the authentication middleware.
func (s *AuthService) Tokens() *auth.Tokens {
	return s.tokens
}

// Policy exposes the authorization policy for the admin middleware.
func (s *AuthService) Policy() auth.Policy {
	return s.policy
}

// Store exposes the credential store; the middleware needs it to resolve a
// token subject to a live account.
func (s *AuthService) Store() *store.Store {
	return s.store
}

// ---------------------------------------------------------------------------
// Self-service operations
// ---------------------------------------------------------------------------

// Register creates a new account, issues a session token, and returns the
// public view plus token.
func (s *AuthService) Register(ctx context.Context, name, email, password string, meta RequestMeta) (*model.AuthResponse, error) {
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	u := &model.User{Name: name, Email: email, PasswordHash: hash, Role: model.RoleUser}
	if err := s.store.CreateUser(ctx, u); err != nil {
		s.audit.Record(ctx, audit.Entry{
			Action:      model.ActionRegister,
			Success:     false,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
			ErrorReason: err.Error(),
		})
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:    &u.ID,
		Action:    model.ActionRegister,
		Success:   true,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})

	token, err := s.tokens.Issue(ctx, u.ID, u.Email, u.Name)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &model.AuthResponse{Token: token, User: u.Public()}, nil
}

// Login verifies credentials and issues a session token. An unknown email
// and a wrong password produce the same error; the only difference is the
// audit trail, where an unresolved subject is recorded with a nil user id.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*model.AuthResponse, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.audit.Record(ctx, audit.Entry{
				Action:      model.ActionLoginAttempt,
				Success:     false,
				IPAddress:   meta.IPAddress,
				UserAgent:   meta.UserAgent,
				ErrorReason: "unknown email",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login lookup: %w", err)
	}

	if !auth.VerifyPassword(password, u.PasswordHash) {
		s.audit.Record(ctx, audit.Entry{
			UserID:      &u.ID,
			Action:      model.ActionLogin,
			Success:     false,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
			ErrorReason: "password mismatch",
		})
		return nil, ErrInvalidCredentials
	}

	// Best-effort: a failed timestamp update must not fail the login.
	if err := s.store.TouchLastLogin(ctx, u.ID); err != nil {
		s.logger.Error("failed to update last login", "user_id", u.ID, "error", err)
	} else {
		now := time.Now().UTC()
		u.LastLoginAt = &now
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:    &u.ID,
		Action:    model.ActionLogin,
		Success:   true,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})

	token, err := s.tokens.Issue(ctx, u.ID, u.Email, u.Name)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &model.AuthResponse{Token: token, User: u.Public()}, nil
}

// Logout revokes the presented token for the remainder of its validity
// window. The claims have already been verified by the transport.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims, meta RequestMeta) error {
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		s.audit.Record(ctx, audit.Entry{
			UserID:      &claims.UserID,
			Action:      model.ActionLogout,
			Success:     false,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
			ErrorReason: err.Error(),
		})
		return fmt.Errorf("revoke token: %w", err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:    &claims.UserID,
		Action:    model.ActionLogout,
		Success:   true,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	return nil
}

// Profile returns the public view of the token subject. A still-valid token
// whose account has been deleted yields store.ErrNotFound.
func (s *AuthService) Profile(ctx context.Context, claims *auth.Claims) (*model.PublicUser, error) {
	u, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// RecentEvents returns the newest limit audit rows.
func (s *AuthService) RecentEvents(ctx context.Context, limit int) ([]model.AuthEvent, error) {
	return s.audit.Recent(ctx, limit)
}

// ---------------------------------------------------------------------------
// Administrative operations
// ---------------------------------------------------------------------------

// ListUsers returns the public view of every account.
func (s *AuthService) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicUser, len(users))
	for i := range users {
		out[i] = users[i].Public()
	}
	return out, nil
}

// GetUser returns the public view of one account by id.
func (s *AuthService) GetUser(ctx context.Context, id int64) (*model.PublicUser, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// CreateUser creates an account on behalf of an administrator. The audit
// event is attributed to the acting admin, not the new account.
func (s *AuthService) CreateUser(ctx context.Context, actor *model.User, name, email, password string, role model.Role, meta RequestMeta) (*model.PublicUser, error) {
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if role == "" {
		role = model.RoleUser
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	u := &model.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	if err := s.store.CreateUser(ctx, u); err != nil {
		s.recordAdmin(ctx, actor, model.ActionAdminCreateUser, false, meta, err)
		return nil, err
	}
	s.recordAdmin(ctx, actor, model.ActionAdminCreateUser, true, meta, nil)

	pub := u.Public()
	return &pub, nil
}

// UpdateUser applies a partial update to an account on behalf of an
// administrator.
func (s *AuthService) UpdateUser(ctx context.Context, actor *model.User, id int64, upd UserUpdate, meta RequestMeta) (*model.PublicUser, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		s.recordAdmin(ctx, actor, model.ActionAdminUpdateUser, false, meta, err)
		return nil, err
	}

	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.Password != nil {
		if len(*upd.Password) < MinPasswordLength {
			return nil, ErrPasswordTooShort
		}
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		u.PasswordHash = hash
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		s.recordAdmin(ctx, actor, model.ActionAdminUpdateUser, false, meta, err)
		return nil, err
	}
	s.recordAdmin(ctx, actor, model.ActionAdminUpdateUser, true, meta, nil)

	pub := u.Public()
	return &pub, nil
}

// DeleteUser removes an account on behalf of an administrator. Accounts
// holding the admin role are refused with store.ErrAdminProtected, for any
// caller including another administrator.
func (s *AuthService) DeleteUser(ctx context.Context, actor *model.User, id int64, meta RequestMeta) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		s.recordAdmin(ctx, actor, model.ActionAdminDeleteUser, false, meta, err)
		return err
	}
	s.recordAdmin(ctx, actor, model.ActionAdminDeleteUser, true, meta, nil)
	return nil
}

// Stats computes the administrative overview. The role counts always satisfy
// total == admins + regular.
func (s *AuthService) Stats(ctx context.Context) (*model.UserStats, error) {
	total, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	admins, err := s.store.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	logins, err := s.store.CountLoginsSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	return &model.UserStats{
		TotalUsers:   total,
		AdminUsers:   admins,
		RegularUsers: total - admins,
		RecentLogins: logins,
	}, nil
}

func (s *AuthService) recordAdmin(ctx context.Context, actor *model.User, action model.Action, success bool, meta RequestMeta, cause error) {
	e := audit.Entry{
		Action:    action,
		Success:   success,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if actor != nil {
		e.UserID = &actor.ID
	}
	if cause != nil {
		e.ErrorReason = cause.Error()
	}
	s.audit.Record(ctx, e)
}
