package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/taskloop/authd/internal/model"
)

func TestInsertEventDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &model.AuthEvent{Action: model.ActionLoginAttempt, Success: false}
	if err := s.InsertEvent(ctx, e); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if e.ID == 0 {
		t.Fatal("expected non-zero event ID")
	}

	events, err := s.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].IPAddress != "unknown" || events[0].UserAgent != "unknown" {
		t.Errorf("empty ip/agent should default to unknown, got %q/%q",
			events[0].IPAddress, events[0].UserAgent)
	}
	if events[0].UserID != nil {
		t.Error("expected nil user_id for an unresolved subject")
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestRecentEventsOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		uid := int64(i + 1)
		e := &model.AuthEvent{
			UserID:    &uid,
			Action:    model.ActionLogin,
			Success:   true,
			IPAddress: fmt.Sprintf("10.0.0.%d", i),
			UserAgent: "test",
		}
		if err := s.InsertEvent(ctx, e); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
	}

	events, err := s.RecentEvents(ctx, 3)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	// Newest first.
	for i := 1; i < len(events); i++ {
		if events[i].ID > events[i-1].ID {
			t.Fatalf("events out of order: id %d before %d", events[i-1].ID, events[i].ID)
		}
	}
	if *events[0].UserID != 5 {
		t.Errorf("newest event should be last inserted, got user_id %d", *events[0].UserID)
	}
}

func TestCountLoginsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	uid := int64(1)
	for i := 0; i < 3; i++ {
		if err := s.InsertEvent(ctx, &model.AuthEvent{
			UserID: &uid, Action: model.ActionLogin, Success: true,
		}); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
	}
	// Failed logins and other actions must not count.
	if err := s.InsertEvent(ctx, &model.AuthEvent{
		UserID: &uid, Action: model.ActionLogin, Success: false,
	}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if err := s.InsertEvent(ctx, &model.AuthEvent{
		UserID: &uid, Action: model.ActionRegister, Success: true,
	}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	n, err := s.CountLoginsSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountLoginsSince: %v", err)
	}
	if n != 3 {
		t.Errorf("got %d logins, want 3", n)
	}

	n, err = s.CountLoginsSince(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CountLoginsSince: %v", err)
	}
	if n != 0 {
		t.Errorf("got %d logins with a future cutoff, want 0", n)
	}
}

func TestTokenRevocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exp := time.Now().Add(time.Hour)
	if err := s.RevokeToken(ctx, "jti-1", 1, exp); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	// Revoking twice is a no-op, not an error.
	if err := s.RevokeToken(ctx, "jti-1", 1, exp); err != nil {
		t.Fatalf("second RevokeToken: %v", err)
	}

	revoked, err := s.IsTokenRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if !revoked {
		t.Error("expected jti-1 to be revoked")
	}

	revoked, err = s.IsTokenRevoked(ctx, "jti-2")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("jti-2 was never revoked")
	}
}

func TestPurgeExpiredTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	if err := s.RevokeToken(ctx, "stale", 1, now.Add(-time.Minute)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if err := s.RevokeToken(ctx, "live", 1, now.Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	purged, err := s.PurgeExpiredTokens(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpiredTokens: %v", err)
	}
	if purged != 1 {
		t.Errorf("got %d purged, want 1", purged)
	}

	// The live entry must survive the purge.
	revoked, _ := s.IsTokenRevoked(ctx, "live")
	if !revoked {
		t.Error("live revocation entry was purged early")
	}
	revoked, _ = s.IsTokenRevoked(ctx, "stale")
	if revoked {
		t.Error("stale revocation entry should be gone")
	}
}
