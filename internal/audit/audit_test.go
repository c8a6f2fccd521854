package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/taskloop/authd/internal/model"
)

type fakeEventStore struct {
	inserted []model.AuthEvent
	failWith error
}

func (f *fakeEventStore) InsertEvent(_ context.Context, e *model.AuthEvent) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.inserted = append(f.inserted, *e)
	return nil
}

func (f *fakeEventStore) RecentEvents(context.Context, int) ([]model.AuthEvent, error) {
	return f.inserted, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecord(t *testing.T) {
	fs := &fakeEventStore{}
	rec := NewRecorder(fs, discardLogger())

	uid := int64(7)
	rec.Record(context.Background(), Entry{
		UserID:      &uid,
		Action:      model.ActionLogin,
		Success:     false,
		IPAddress:   "10.0.0.1",
		UserAgent:   "test",
		ErrorReason: "password mismatch",
	})

	if len(fs.inserted) != 1 {
		t.Fatalf("got %d inserted events, want 1", len(fs.inserted))
	}
	e := fs.inserted[0]
	if e.Action != model.ActionLogin || e.Success {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.ErrorReason == nil || *e.ErrorReason != "password mismatch" {
		t.Errorf("error reason not recorded: %v", e.ErrorReason)
	}
}

func TestRecordEmptyReasonIsNil(t *testing.T) {
	fs := &fakeEventStore{}
	rec := NewRecorder(fs, discardLogger())

	rec.Record(context.Background(), Entry{Action: model.ActionLogin, Success: true})
	if fs.inserted[0].ErrorReason != nil {
		t.Error("empty reason should map to a null column, not an empty string")
	}
}

// A broken audit store must never surface to the caller.
func TestRecordSwallowsStoreErrors(t *testing.T) {
	fs := &fakeEventStore{failWith: errors.New("disk full")}
	rec := NewRecorder(fs, discardLogger())

	// Must not panic or propagate anything.
	rec.Record(context.Background(), Entry{Action: model.ActionRegister, Success: true})
}
