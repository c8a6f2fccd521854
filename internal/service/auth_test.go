package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/taskloop/authd/internal/audit"
	"github.com/taskloop/authd/internal/auth"
	"github.com/taskloop/authd/internal/model"
	"github.com/taskloop/authd/internal/store"
)

func newTestService(t *testing.T) (*AuthService, *store.Store) {
	t.Helper()
	st, err := store.Open(store.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokens("test-secret", time.Hour, st)
	rec := audit.NewRecorder(st, logger)
	return NewAuthService(st, tokens, auth.RolePolicy{}, rec, logger), st
}

func lastEvent(t *testing.T, st *store.Store) model.AuthEvent {
	t.Helper()
	events, err := st.RecentEvents(context.Background(), 1)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no audit events recorded")
	}
	return events[0]
}

func TestRegisterAndLogin(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	meta := RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test"}

	resp, err := svc.Register(ctx, "Alice", "alice@x.com", "secret1", meta)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a session token")
	}
	if resp.User.Email != "alice@x.com" {
		t.Errorf("got email %q, want alice@x.com", resp.User.Email)
	}
	if resp.User.Role != model.RoleUser {
		t.Errorf("self-registration must create role %q, got %q", model.RoleUser, resp.User.Role)
	}
	if resp.User.LastLoginAt != nil {
		t.Error("fresh account should have nil last login")
	}

	e := lastEvent(t, st)
	if e.Action != model.ActionRegister || !e.Success {
		t.Errorf("expected successful register event, got %s success=%v", e.Action, e.Success)
	}

	login, err := svc.Login(ctx, "alice@x.com", "secret1", meta)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.Token == "" {
		t.Error("expected a session token")
	}
	if login.User.LastLoginAt == nil {
		t.Error("login response should carry the updated last login")
	}

	e = lastEvent(t, st)
	if e.Action != model.ActionLogin || !e.Success {
		t.Errorf("expected successful login event, got %s success=%v", e.Action, e.Success)
	}
	if e.IPAddress != "10.0.0.1" || e.UserAgent != "test" {
		t.Errorf("request meta not recorded: %q/%q", e.IPAddress, e.UserAgent)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := RequestMeta{}

	if _, err := svc.Register(ctx, "", "a@x.com", "secret1", meta); !errors.Is(err, ErrMissingFields) {
		t.Errorf("missing name: got %v, want ErrMissingFields", err)
	}
	if _, err := svc.Register(ctx, "A", "a@x.com", "short", meta); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short password: got %v, want ErrPasswordTooShort", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	meta := RequestMeta{}

	if _, err := svc.Register(ctx, "Alice", "alice@x.com", "secret1", meta); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(ctx, "Clone", "alice@x.com", "secret2", meta)
	if !errors.Is(err, store.ErrEmailExists) {
		t.Fatalf("got %v, want ErrEmailExists", err)
	}

	e := lastEvent(t, st)
	if e.Action != model.ActionRegister || e.Success {
		t.Errorf("expected failed register event, got %s success=%v", e.Action, e.Success)
	}
}

func TestLoginFailureParity(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	meta := RequestMeta{}

	if _, err := svc.Register(ctx, "Alice", "alice@x.com", "secret1", meta); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Unknown email and wrong password must be indistinguishable to the
	// caller.
	_, errUnknown := svc.Login(ctx, "nobody@x.com", "secret1", meta)
	unknownEvent := lastEvent(t, st)
	_, errWrong := svc.Login(ctx, "alice@x.com", "wrong-pass", meta)
	wrongEvent := lastEvent(t, st)

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v, want ErrInvalidCredentials", errUnknown)
	}
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("error text differs: %q vs %q", errUnknown, errWrong)
	}

	// The audit trail is where the two cases differ.
	if unknownEvent.Action != model.ActionLoginAttempt || unknownEvent.UserID != nil {
		t.Errorf("unknown email event: action=%s user_id=%v", unknownEvent.Action, unknownEvent.UserID)
	}
	if wrongEvent.Action != model.ActionLogin || wrongEvent.UserID == nil {
		t.Errorf("wrong password event: action=%s user_id=%v", wrongEvent.Action, wrongEvent.UserID)
	}
	if wrongEvent.Success || unknownEvent.Success {
		t.Error("failed logins recorded as successful")
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := RequestMeta{}

	resp, err := svc.Register(ctx, "Alice", "alice@x.com", "secret1", meta)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	claims, err := svc.Tokens().Verify(ctx, resp.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if err := svc.Logout(ctx, claims, meta); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Tokens().Verify(ctx, resp.Token); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Errorf("got %v, want ErrTokenRevoked after logout", err)
	}
}

func TestProfileAfterAccountDeleted(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	meta := RequestMeta{}

	resp, err := svc.Register(ctx, "Alice", "alice@x.com", "secret1", meta)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	claims, _ := svc.Tokens().Verify(ctx, resp.Token)

	if err := st.DeleteUser(ctx, resp.User.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := svc.Profile(ctx, claims); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound for a deleted subject", err)
	}
}

func TestAdminUserManagement(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	meta := RequestMeta{}

	hash, _ := auth.HashPassword("admin-pass")
	admin := &model.User{Name: "Root", Email: "root@x.com", PasswordHash: hash, Role: model.RoleAdmin}
	if err := st.CreateUser(ctx, admin); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	created, err := svc.CreateUser(ctx, admin, "Bob", "bob@x.com", "secret1", model.RoleUser, meta)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	e := lastEvent(t, st)
	if e.Action != model.ActionAdminCreateUser || *e.UserID != admin.ID {
		t.Errorf("admin create event must be attributed to the actor, got action=%s user_id=%v", e.Action, e.UserID)
	}

	newName := "Robert"
	updated, err := svc.UpdateUser(ctx, admin, created.ID, UserUpdate{Name: &newName}, meta)
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.Name != "Robert" {
		t.Errorf("got name %q, want Robert", updated.Name)
	}
	if updated.Email != "bob@x.com" {
		t.Errorf("partial update touched email: %q", updated.Email)
	}

	if err := svc.DeleteUser(ctx, admin, created.ID, meta); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := svc.DeleteUser(ctx, admin, admin.ID, meta); !errors.Is(err, store.ErrAdminProtected) {
		t.Errorf("got %v, want ErrAdminProtected", err)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := RequestMeta{}

	resp, err := svc.Register(ctx, "Alice", "alice@x.com", "secret1", meta)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	newPass := "rotated-pass"
	if _, err := svc.UpdateUser(ctx, nil, resp.User.ID, UserUpdate{Password: &newPass}, meta); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	if _, err := svc.Login(ctx, "alice@x.com", "secret1", meta); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@x.com", "rotated-pass", meta); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	short := "tiny"
	if _, err := svc.UpdateUser(ctx, nil, resp.User.ID, UserUpdate{Password: &short}, meta); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("got %v, want ErrPasswordTooShort", err)
	}
}

func TestStats(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	meta := RequestMeta{}

	hash, _ := auth.HashPassword("admin-pass")
	admin := &model.User{Name: "Root", Email: "root@x.com", PasswordHash: hash, Role: model.RoleAdmin}
	if err := st.CreateUser(ctx, admin); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := svc.Register(ctx, "Alice", "alice@x.com", "secret1", meta); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@x.com", "secret1", meta); err != nil {
		t.Fatalf("Login: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalUsers != 2 {
		t.Errorf("got %d total users, want 2", stats.TotalUsers)
	}
	if stats.AdminUsers != 1 {
		t.Errorf("got %d admins, want 1", stats.AdminUsers)
	}
	if stats.TotalUsers != stats.AdminUsers+stats.RegularUsers {
		t.Errorf("role counts do not add up: %d != %d + %d",
			stats.TotalUsers, stats.AdminUsers, stats.RegularUsers)
	}
	if stats.RecentLogins != 1 {
		t.Errorf("got %d recent logins, want 1", stats.RecentLogins)
	}
}
