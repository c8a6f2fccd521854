// Package audit records authentication events as a best-effort side channel.
// A failed audit write is reported to the operator log and swallowed: it must
// never turn a successful authentication into a user-visible failure.
package audit

import (
	"context"
	"log/slog"

	"github.com/taskloop/authd/internal/model"
)

// EventStore is the persistence capability the recorder needs.
type EventStore interface {
	InsertEvent(ctx context.Context, e *model.AuthEvent) error
	RecentEvents(ctx context.Context, limit int) ([]model.AuthEvent, error)
}

// Entry describes one authentication event to record.
type Entry struct {
	UserID      *int64
	Action      model.Action
	Success     bool
	IPAddress   string
	UserAgent   string
	ErrorReason string
}

// Recorder appends entries to the audit log.
type Recorder struct {
	store  EventStore
	logger *slog.Logger
}

func NewRecorder(store EventStore, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends one audit row. Errors are logged, never returned.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	event := &model.AuthEvent{
		UserID:    e.UserID,
		Action:    e.Action,
		Success:   e.Success,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
	}
	if e.ErrorReason != "" {
		reason := e.ErrorReason
		event.ErrorReason = &reason
	}
	if err := r.store.InsertEvent(ctx, event); err != nil {
		r.logger.Error("audit write failed",
			"action", e.Action,
			"success", e.Success,
			"error", err,
		)
	}
}

// Recent returns the newest limit audit rows, timestamp descending.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]model.AuthEvent, error) {
	return r.store.RecentEvents(ctx, limit)
}
