// Package faas is the stateless embodiment of the auth gateway: every
// invocation opens a fresh store connection, serves exactly one request
// through the same route table as the persistent server, and closes the
// store again. There is no shared memory across invocations and no built-in
// rate limiter; deployments must enforce an equivalent request limit at the
// fronting gateway.
package faas

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskloop/authd/internal/audit"
	"github.com/taskloop/authd/internal/auth"
	"github.com/taskloop/authd/internal/server"
	"github.com/taskloop/authd/internal/service"
	"github.com/taskloop/authd/internal/store"
)

// DefaultEventsLimit is the ceiling for the security-events view in this
// embodiment.
const DefaultEventsLimit = 50

// Config carries everything one invocation needs to assemble the gateway.
type Config struct {
	Store       store.Config
	JWTSecret   string
	TokenTTL    time.Duration
	EventsLimit int
}

// NewHandler returns an http.Handler that performs the full per-invocation
// lifecycle. A cloud-function adapter wraps this directly; `authd invoke`
// serves it locally for testing.
func NewHandler(cfg Config, logger *slog.Logger) http.Handler {
	eventsLimit := cfg.EventsLimit
	if eventsLimit <= 0 {
		eventsLimit = DefaultEventsLimit
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, err := store.Open(cfg.Store)
		if err != nil {
			logger.Error("invocation store open failed", "error", err)
			http.Error(w, `{"error":{"code":500,"message":"Internal server error"}}`, http.StatusInternalServerError)
			return
		}
		defer st.Close()

		// No background purge loop exists here, so sweep opportunistically.
		if _, err := st.PurgeExpiredTokens(r.Context(), time.Now()); err != nil {
			logger.Error("token purge failed", "error", err)
		}

		tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, st)
		rec := audit.NewRecorder(st, logger)
		svc := service.NewAuthService(st, tokens, auth.RolePolicy{}, rec, logger)

		mux := chi.NewRouter()
		server.Mount(mux, svc, logger, eventsLimit)
		mux.ServeHTTP(w, r)
	})
}
