package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/taskloop/authd/internal/handler"
	"github.com/taskloop/authd/internal/server/middleware"
	"github.com/taskloop/authd/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Fixed-window request limit per client IP.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// EventsLimit is the ceiling for the security-events view.
	EventsLimit int

	// TokenPurgeInterval controls the background sweep of expired
	// revocation entries.
	TokenPurgeInterval time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ShutdownTimeout:    30 * time.Second,
		CORSOrigins:        []string{"*"},
		RateLimitRequests:  100,
		RateLimitWindow:    15 * time.Minute,
		EventsLimit:        100,
		TokenPurgeInterval: time.Hour,
	}
}

// Server is the persistent embodiment of the auth gateway: a long-lived
// process holding one store connection, serving the full route table until
// shut down.
type Server struct {
	cfg        Config
	router     chi.Router
	svc        *service.AuthService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired. Call
// ListenAndServe to start accepting connections.
func New(cfg Config, svc *service.AuthService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.RateLimitRequests > 0 {
		r.Use(middleware.RateLimit(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	Mount(r, s.svc, s.logger, s.cfg.EventsLimit)

	s.router = r
}

// Mount attaches the full API route table to r. Both embodiments call this,
// so the route table cannot drift between them.
func Mount(r chi.Router, svc *service.AuthService, logger *slog.Logger, eventsLimit int) {
	authHandler := handler.NewAuthHandler(svc, logger, eventsLimit)
	usersHandler := handler.NewUsersHandler(svc, logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(svc, logger))
				r.Post("/logout", authHandler.Logout)
				r.Get("/profile", authHandler.Profile)
				r.Get("/events", authHandler.Events)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.Authenticate(svc, logger))
			r.Use(middleware.RequireAdmin(svc))

			r.Get("/", usersHandler.List)
			r.Post("/", usersHandler.Create)
			r.Get("/stats/overview", usersHandler.Stats)
			r.Get("/{id}", usersHandler.Get)
			r.Put("/{id}", usersHandler.Update)
			r.Delete("/{id}", usersHandler.Delete)
		})
	})
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the store is
// reachable, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.svc.Store().Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe starts the HTTP server and blocks until SIGINT or SIGTERM,
// then drains in-flight requests before returning. A background loop sweeps
// expired token-revocation entries while the server runs.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.purgeLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// purgeLoop periodically removes revocation entries whose tokens have
// expired on their own.
func (s *Server) purgeLoop(ctx context.Context) {
	interval := s.cfg.TokenPurgeInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.svc.Store().PurgeExpiredTokens(ctx, time.Now())
			if err != nil {
				s.logger.Error("token purge failed", "error", err)
			} else if n > 0 {
				s.logger.Info("purged expired revocation entries", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
