package handler

import (
	"log/slog"
	"net/http"

	"github.com/taskloop/authd/internal/server/middleware"
	"github.com/taskloop/authd/internal/service"
)

// AuthHandler exposes the self-service authentication surface: register,
// login, logout, profile, and the security-events view.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger

	// eventsLimit is both the default and the ceiling for the events view.
	// The persistent server uses 100, the stateless embodiment 50.
	eventsLimit int
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger, eventsLimit int) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger, eventsLimit: eventsLimit}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password, requestMeta(r))
	if err != nil {
		// A taken email reports 400 on this surface, matching the
		// original clients; the admin surface reports 409.
		mapError(h.logger, w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and returns a session token.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.svc.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		mapError(h.logger, w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the presented token. Requires a valid bearer token in both
// embodiments.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.svc.Logout(r.Context(), claims, requestMeta(r)); err != nil {
		mapError(h.logger, w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out",
	})
}

// Profile returns the public view of the token subject. Returns 404 when the
// account was deleted after the token was issued.
// GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.svc.Profile(r.Context(), claims)
	if err != nil {
		mapError(h.logger, w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Events returns recent authentication events, newest first. The limit query
// parameter is clamped to the embodiment's ceiling.
// GET /api/auth/events
func (h *AuthHandler) Events(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", h.eventsLimit)
	if limit <= 0 || limit > h.eventsLimit {
		limit = h.eventsLimit
	}

	events, err := h.svc.RecentEvents(r.Context(), limit)
	if err != nil {
		mapError(h.logger, w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
